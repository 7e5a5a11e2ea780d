package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailproxy/backend/internal/config"
	"mailproxy/backend/internal/health"
	"mailproxy/backend/internal/logger"
	"mailproxy/backend/internal/mailtm"
	"mailproxy/backend/internal/monitoring"
	"mailproxy/backend/internal/ratelimit"
	"mailproxy/backend/internal/service"
	"mailproxy/backend/internal/storage"
	"mailproxy/backend/internal/storage/memory"
	pgxstore "mailproxy/backend/internal/storage/postgres"
	redisstore "mailproxy/backend/internal/storage/redis"
	sqlstore "mailproxy/backend/internal/storage/sql"
	httptransport "mailproxy/backend/internal/transport/http"
)

// main 启动临时邮箱代理服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailproxy server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer store.Close()

	// 初始化 Redis 缓存（可选）
	var cache *redisstore.Cache
	if cfg.Redis.Enabled {
		cache, err = redisstore.NewCache(&cfg.Redis)
		if err != nil {
			panic(fmt.Sprintf("failed to connect redis: %v", err))
		}
		defer cache.Close()
		log.Info("redis cache enabled", zap.String("address", cfg.Redis.Address))
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化上游客户端
	provider := service.InstrumentProvider(mailtm.NewClient(
		cfg.Provider.BaseURL,
		mailtm.WithHTTPClient(&http.Client{Timeout: cfg.Provider.Timeout}),
		mailtm.WithRequestsPerSecond(cfg.Provider.RequestsPerSecond),
		mailtm.WithLogger(log),
	), metrics)

	// 初始化服务层
	domainService := service.NewDomainService(store, provider, cache, log)
	accountService := service.NewAccountService(store, provider, domainService, cache, cfg.Account.TTL, metrics, log)
	messageService := service.NewMessageService(store, provider, cache, metrics, log)

	if err := domainService.SeedPopular(); err != nil {
		log.Warn("failed to seed popular domains", zap.Error(err))
	}

	// 限流器与健康检查
	limiter := ratelimit.NewLimiter(nil, ratelimit.DefaultFallbackQuota)
	healthHandler := health.NewHandler(store, cfg.Provider.BaseURL)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:   cfg,
		Accounts: accountService,
		Messages: messageService,
		Domains:  domainService,
		Limiter:  limiter,
		Metrics:  metrics,
		Health:   healthHandler,
		Logger:   log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期账户 goroutine
	group.Go(func() error {
		interval := cfg.Account.CleanupInterval
		if interval <= 0 {
			interval = time.Hour
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info("starting expired account cleanup task", zap.Duration("interval", interval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("cleanup task stopped")
				return nil
			case <-ticker.C:
				count, err := accountService.Cleanup()
				if err != nil {
					log.Error("failed to cleanup expired accounts", zap.Error(err))
				} else if count > 0 {
					log.Info("expired accounts cleaned up", zap.Int("count", count))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择存储后端。
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.Database.Type {
	case "mysql", "postgres":
		store, err := sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Account.TTL,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			return nil, err
		}
		log.Info("using sql storage", zap.String("driver", cfg.Database.Type))
		return store, nil
	case "pgx":
		client, err := pgxstore.NewClient(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		store, err := pgxstore.NewStore(client, cfg.Account.TTL)
		if err != nil {
			client.Close()
			return nil, err
		}
		log.Info("using pgx storage")
		return store, nil
	default:
		log.Info("using memory storage (development mode)", zap.Duration("ttl", cfg.Account.TTL))
		return memory.NewStore(cfg.Account.TTL), nil
	}
}
