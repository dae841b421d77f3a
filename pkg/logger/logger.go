package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"campus-events/config"
)

// Logger 包装 zap.Logger 与可动态调整的日志级别
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// NewLogger 根据配置初始化 Zap 日志实例
func NewLogger(cfg *config.LogConfig) (*Logger, error) {
	var zapCfg zap.Config

	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		zapCfg = zap.NewProductionConfig()
	}

	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("初始化日志器失败: %w", err)
	}

	return &Logger{Logger: logger, level: zapCfg.Level}, nil
}

// SetLevel 运行时调整日志级别（配置热更新时调用）
func (l *Logger) SetLevel(text string) error {
	level, err := zapcore.ParseLevel(text)
	if err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", text, err)
	}
	l.level.SetLevel(level)
	return nil
}

// Level 当前日志级别
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}
