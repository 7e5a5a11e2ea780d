package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailproxy/backend/internal/config"
	"mailproxy/backend/internal/middleware"
	"mailproxy/backend/internal/monitoring"
	"mailproxy/backend/internal/ratelimit"
	"mailproxy/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	accounts   *service.AccountService
	messages   *service.MessageService
	domains    *service.DomainService
	accountTTL time.Duration
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config   *config.Config
	Accounts *service.AccountService
	Messages *service.MessageService
	Domains  *service.DomainService
	Limiter  *ratelimit.Limiter
	Metrics  *monitoring.Metrics
	Health   healthcheck.Handler
	Logger   *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.PanicRecovery())
		router.Use(mm.HTTPMetrics())
	} else {
		router.Use(gin.Recovery())
	}
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 * 1024 * 1024))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		accounts:   deps.Accounts,
		messages:   deps.Messages,
		domains:    deps.Domains,
		accountTTL: deps.Config.Account.TTL,
	}

	rateLimit := middleware.NewRateLimiter(deps.Limiter, deps.Metrics, deps.Logger)

	// 健康检查与指标
	if deps.Health != nil {
		router.GET("/healthz", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/readyz", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		// ========== Account Routes ==========
		api.POST("/generate", rateLimit.Limit("generate_email"), handler.generateEmail)
		api.DELETE("/delete/:address", rateLimit.Limit("delete_account"), handler.deleteAccount)

		// ========== Message Routes ==========
		api.GET("/emails/:address", rateLimit.Limit("get_emails"), handler.listMessages)
		api.GET("/emails/:address/:messageID", rateLimit.Limit("get_email_content"), handler.getMessage)
		api.DELETE("/emails/:address/:messageID", rateLimit.Limit("delete_email"), handler.deleteMessage)

		// ========== Domain Routes ==========
		api.GET("/domains", rateLimit.Limit("get_domains"), handler.listDomains)
		api.POST("/domains", rateLimit.Limit("add_domain"), handler.addDomain)
		api.PATCH("/domains/:id/status", rateLimit.Limit("update_domain"), handler.setDomainStatus)
	}

	return router
}
