package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock 可手动推进的测试时钟
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(quotas map[string]Quota) (*Limiter, *fixedClock) {
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewLimiter(quotas, DefaultFallbackQuota)
	limiter.now = clock.Now
	return limiter, clock
}

func TestLimiter_QuotaExhaustion(t *testing.T) {
	limiter, clock := newTestLimiter(map[string]Quota{
		"generate_email": {MaxRequests: 5, Window: time.Minute},
	})

	// 窗口内前 5 次全部放行
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("1.2.3.4", "generate_email"), "request %d should pass", i+1)
		clock.Advance(2 * time.Second)
	}

	// 第 6 次拒绝
	assert.False(t, limiter.Allow("1.2.3.4", "generate_email"))

	// 拒绝的请求不计入窗口：依旧拒绝而不是累加
	assert.False(t, limiter.Allow("1.2.3.4", "generate_email"))
}

func TestLimiter_WindowReplenish(t *testing.T) {
	limiter, clock := newTestLimiter(map[string]Quota{
		"delete_account": {MaxRequests: 3, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow("10.0.0.1", "delete_account"))
		clock.Advance(time.Second)
	}
	require.False(t, limiter.Allow("10.0.0.1", "delete_account"))

	// 窗口流逝后配额完全恢复
	clock.Advance(time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1", "delete_account"), "request %d after replenish", i+1)
		clock.Advance(time.Second)
	}
	assert.False(t, limiter.Allow("10.0.0.1", "delete_account"))
}

func TestLimiter_DefaultQuotaForUnknownOperation(t *testing.T) {
	limiter, _ := newTestLimiter(nil)

	q := limiter.Quota("get_domains")
	assert.Equal(t, DefaultFallbackQuota, q)

	for i := 0; i < DefaultFallbackQuota.MaxRequests; i++ {
		require.True(t, limiter.Allow("1.1.1.1", "get_domains"))
	}
	assert.False(t, limiter.Allow("1.1.1.1", "get_domains"))
}

func TestLimiter_ClientsAndOperationsIsolated(t *testing.T) {
	limiter, _ := newTestLimiter(map[string]Quota{
		"generate_email": {MaxRequests: 1, Window: time.Minute},
	})

	require.True(t, limiter.Allow("a", "generate_email"))
	require.False(t, limiter.Allow("a", "generate_email"))

	// 其他客户端不受影响
	assert.True(t, limiter.Allow("b", "generate_email"))

	// 同一客户端的其他操作不受影响
	assert.True(t, limiter.Allow("a", "get_emails"))
}

func TestLimiter_BucketCoalescing(t *testing.T) {
	limiter, clock := newTestLimiter(map[string]Quota{
		"get_emails": {MaxRequests: 100, Window: time.Minute},
	})

	// 同一秒内的请求合并进同一个桶
	for i := 0; i < 50; i++ {
		require.True(t, limiter.Allow("c", "get_emails"))
	}
	limiter.mu.Lock()
	buckets := limiter.windows[key{client: "c", operation: "get_emails"}]
	limiter.mu.Unlock()
	assert.Len(t, buckets, 1)
	assert.Equal(t, 50, buckets[0].count)

	// 跨秒后追加新桶
	clock.Advance(time.Second)
	require.True(t, limiter.Allow("c", "get_emails"))
	limiter.mu.Lock()
	buckets = limiter.windows[key{client: "c", operation: "get_emails"}]
	limiter.mu.Unlock()
	assert.Len(t, buckets, 2)
}

func TestLimiter_ConcurrentNoOverAdmission(t *testing.T) {
	const max = 30
	limiter, _ := newTestLimiter(map[string]Quota{
		"delete_email": {MaxRequests: max, Window: time.Minute},
	})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)

	// 并发发起两倍于配额的请求，恰好 max 个被放行
	for i := 0; i < max*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("9.9.9.9", "delete_email") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, max, allowed)
}

func TestLimiter_RejectionDoesNotRecord(t *testing.T) {
	limiter, clock := newTestLimiter(map[string]Quota{
		"generate_email": {MaxRequests: 2, Window: 10 * time.Second},
	})

	require.True(t, limiter.Allow("x", "generate_email"))
	require.True(t, limiter.Allow("x", "generate_email"))

	// 连续拒绝不会延长窗口
	for i := 0; i < 20; i++ {
		require.False(t, limiter.Allow("x", "generate_email"))
	}

	clock.Advance(11 * time.Second)
	assert.True(t, limiter.Allow("x", "generate_email"))
}
