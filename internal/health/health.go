// Package health 提供基于 heptiolabs/healthcheck 的存活与就绪探针。
package health

import (
	"time"

	"github.com/heptiolabs/healthcheck"

	"mailproxy/backend/internal/storage"
)

// NewHandler 创建健康检查处理器。
//
// 存活探针关注进程自身（goroutine 泄漏）；就绪探针检查存储可用性
// 与上游服务可达性，providerBaseURL 为空时跳过上游检查。
func NewHandler(store storage.Store, providerBaseURL string) healthcheck.Handler {
	h := healthcheck.NewHandler()

	h.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(200))

	if store != nil {
		h.AddReadinessCheck("storage", store.Health)
	}
	if providerBaseURL != "" {
		h.AddReadinessCheck("provider",
			healthcheck.HTTPGetCheck(providerBaseURL+"/domains", 5*time.Second))
	}

	return h
}
