package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"campus-events/config"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Fatal("无效级别应返回错误")
	}
}

func TestLogger_SetLevel(t *testing.T) {
	l, err := NewLogger(&config.LogConfig{Level: "info", Format: "console"})
	if err != nil {
		t.Fatalf("NewLogger 失败: %v", err)
	}
	if l.Level() != zapcore.InfoLevel {
		t.Errorf("期望 info，实际=%s", l.Level())
	}

	if err := l.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel 失败: %v", err)
	}
	if l.Level() != zapcore.DebugLevel {
		t.Errorf("期望 debug，实际=%s", l.Level())
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("调整后 debug 级别应生效")
	}

	if err := l.SetLevel("nope"); err == nil {
		t.Error("无效级别应返回错误")
	}
}
