package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campus-events/config"
	"campus-events/internal/repository"
	"campus-events/internal/service"
	"campus-events/pkg/database"
	"campus-events/pkg/jwt"
	"campus-events/pkg/kafka"
	applogger "campus-events/pkg/logger"
	"campus-events/pkg/tracing"
)

var version = "dev"

// rootOptions 所有子命令共享的全局参数
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "campus-events",
		Short:         "Campus events backend",
		Long:          `Campus events backend: REST API, database migrations and maintenance commands.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default: ./config/config.yaml)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newAdminCmd(opts),
		newReconcileCmd(opts),
		newSeedCmd(opts),
	)
	return cmd
}

// app 命令运行所需的基础设施
type app struct {
	cfg  *config.Config
	log  *applogger.Logger
	db   *gorm.DB
	repo *repository.Repository
}

// bootstrap 加载配置、初始化日志并连接数据库
// migrate 为 true 时在连接成功后执行迁移
func bootstrap(ctx context.Context, opts *rootOptions, migrate bool) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	log, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	db, err := database.NewDB(ctx, &cfg.Database, log.Logger)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	if migrate {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}
		if err := database.RunMigrations(sqlDB, log.Logger); err != nil {
			_ = database.Close(db)
			return nil, err
		}
	}

	return &app{
		cfg:  cfg,
		log:  log,
		db:   db,
		repo: repository.NewRepository(db),
	}, nil
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		a.log.Warn("关闭数据库连接失败", zap.Error(err))
	}
	_ = a.log.Sync()
}

// offlineService 命令行使用的 Service：不发布活动事件，不记录指标
func (a *app) offlineService() *service.Service {
	return service.NewService(service.Deps{
		Config:    a.cfg,
		Repo:      a.repo,
		JWT:       jwt.NewManager(&a.cfg.Auth),
		Tracer:    tracing.Noop().Tracer(),
		Publisher: kafka.NopPublisher{},
		Logger:    a.log.Logger,
	})
}
