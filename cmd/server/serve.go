package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"campus-events/config"
	"campus-events/internal/api/handler"
	"campus-events/internal/api/router"
	"campus-events/internal/service"
	"campus-events/pkg/database"
	"campus-events/pkg/jwt"
	"campus-events/pkg/kafka"
	"campus-events/pkg/metrics"
	"campus-events/pkg/redis"
	"campus-events/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server.

Connects to Postgres (with retry), applies pending migrations, then serves the
REST API until SIGINT/SIGTERM. When registration.reconcile_interval is set a
background loop repairs registration references on that period.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 配置、日志、数据库与迁移
	a, err := bootstrap(ctx, opts, true)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.log.Logger

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("log_level", cfg.Log.Level),
	)

	// 2. Redis（可选：连接失败时降级运行，吊销检查与限流退回本地实现）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，Token 吊销与分布式限流不可用", zap.Error(err))
			rdb = nil
		}
	}
	var tokens service.TokenStore
	if rdb != nil {
		tokens = rdb
		defer rdb.Close()
	}

	// 3. 链路追踪
	tp, err := tracing.NewProvider(ctx, &cfg.Tracing)
	if err != nil {
		return fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("关闭链路追踪失败", zap.Error(err))
		}
	}()

	// 4. 活动事件发布
	publisher, err := kafka.NewPublisher(&cfg.Kafka, logger)
	if err != nil {
		logger.Warn("Kafka 发布器初始化失败，活动事件不再发布", zap.Error(err))
		publisher = kafka.NopPublisher{}
	}
	defer publisher.Close()

	// 5. 指标
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// 6. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	svc := service.NewService(service.Deps{
		Config:    cfg,
		Repo:      a.repo,
		JWT:       jwtMgr,
		Tokens:    tokens,
		Metrics:   m,
		Tracer:    tp.Tracer(),
		Publisher: publisher,
		Logger:    logger,
	})
	h := handler.NewHandler(svc)

	// 7. 路由
	engine := router.Setup(router.Options{
		Config:  cfg,
		Handler: h,
		JWT:     jwtMgr,
		Redis:   rdb,
		Metrics: m,
		Tracer:  tp.Tracer(),
		DBPing: func(ctx context.Context) error {
			return database.Ping(ctx, a.db)
		},
		Logger: logger,
	})

	// 配置热更新：仅日志级别即时生效，其余配置需重启
	config.Watch(cfg, func(next *config.Config) {
		if err := a.log.SetLevel(next.Log.Level); err != nil {
			logger.Warn("日志级别更新失败", zap.Error(err))
			return
		}
		logger.Info("配置已重新加载", zap.String("log_level", next.Log.Level))
	}, func(err error) {
		logger.Warn("配置重新加载失败，继续使用旧配置", zap.Error(err))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务器异常: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("开始优雅关闭...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("服务器关闭异常: %w", err)
		}
		return nil
	})

	if interval := cfg.Registration.ReconcileInterval; interval > 0 {
		g.Go(func() error {
			runReconcileLoop(gctx, svc.Registration, interval, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
		return err
	}
	logger.Info("服务器已关闭")
	return nil
}

// runReconcileLoop 周期性对账，直到 ctx 取消；单次失败只记录日志
func runReconcileLoop(ctx context.Context, reg service.RegistrationService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("后台对账已启用", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := reg.Reconcile(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("后台对账失败", zap.Error(err))
				continue
			}
			logger.Info("后台对账完成",
				zap.Int("registrants_dropped", report.RegistrantsDropped),
				zap.Int("user_refs_added", report.UserRefsAdded),
				zap.Int("user_refs_dropped", report.UserRefsDropped),
			)
		}
	}
}
