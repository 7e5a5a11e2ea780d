// Package ratelimit 实现按 (客户端, 操作) 维度的滑动窗口限流。
//
// 窗口内的请求按秒聚合成桶，既能近似滑动窗口语义，又能在高频请求下
// 约束内存增长。状态只存在于进程内，重启后清零。
package ratelimit

import (
	"sync"
	"time"
)

// Quota 定义单个操作的限流配额。
type Quota struct {
	MaxRequests int           // 窗口内允许的最大请求数
	Window      time.Duration // 窗口长度
}

// DefaultQuotas 各操作的默认配额表。
func DefaultQuotas() map[string]Quota {
	return map[string]Quota{
		"generate_email":    {MaxRequests: 5, Window: time.Minute},
		"get_emails":        {MaxRequests: 60, Window: time.Minute},
		"get_email_content": {MaxRequests: 60, Window: time.Minute},
		"delete_email":      {MaxRequests: 30, Window: time.Minute},
		"delete_account":    {MaxRequests: 5, Window: time.Minute},
	}
}

// DefaultFallbackQuota 未在配额表中配置的操作使用的兜底配额。
var DefaultFallbackQuota = Quota{MaxRequests: 20, Window: time.Minute}

// bucket 同一秒内的请求聚合计数。
type bucket struct {
	ts    time.Time
	count int
}

// key 限流状态的复合键。
type key struct {
	client    string
	operation string
}

// Limiter 进程内滑动窗口限流器。
//
// 检查与记录在同一个临界区内完成：两个并发请求不可能同时观察到
// 剩余额度并双双放行。
type Limiter struct {
	mu       sync.Mutex
	quotas   map[string]Quota
	fallback Quota
	windows  map[key][]bucket
	now      func() time.Time // 测试时可替换的时钟
}

// NewLimiter 创建限流器。quotas 为 nil 时使用默认配额表。
func NewLimiter(quotas map[string]Quota, fallback Quota) *Limiter {
	if quotas == nil {
		quotas = DefaultQuotas()
	}
	if fallback.MaxRequests <= 0 || fallback.Window <= 0 {
		fallback = DefaultFallbackQuota
	}
	return &Limiter{
		quotas:   quotas,
		fallback: fallback,
		windows:  make(map[key][]bucket),
		now:      time.Now,
	}
}

// Allow 判断客户端对指定操作的请求是否放行。
//
// 超出配额时直接拒绝且不记录本次请求；放行时记录：与最后一个桶
// 间隔不足 1 秒则累加计数，否则追加新桶。
func (l *Limiter) Allow(clientID, operation string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	quota, ok := l.quotas[operation]
	if !ok {
		quota = l.fallback
	}

	now := l.now()
	k := key{client: clientID, operation: operation}

	// 淘汰窗口外的桶
	buckets := l.windows[k]
	kept := buckets[:0]
	for _, b := range buckets {
		if now.Sub(b.ts) < quota.Window {
			kept = append(kept, b)
		}
	}

	recent := 0
	for _, b := range kept {
		recent += b.count
	}

	if recent >= quota.MaxRequests {
		if len(kept) == 0 {
			delete(l.windows, k)
		} else {
			l.windows[k] = kept
		}
		return false
	}

	if n := len(kept); n > 0 && now.Sub(kept[n-1].ts) < time.Second {
		kept[n-1].count++
	} else {
		kept = append(kept, bucket{ts: now, count: 1})
	}
	l.windows[k] = kept

	return true
}

// Quota 返回指定操作生效的配额。
func (l *Limiter) Quota(operation string) Quota {
	l.mu.Lock()
	defer l.mu.Unlock()

	if q, ok := l.quotas[operation]; ok {
		return q
	}
	return l.fallback
}
