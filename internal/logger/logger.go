package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger 构建全局日志器，development 为 false 时输出 JSON
func InitLogger(logLevel string, development bool) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	level, parseErr := zapcore.ParseLevel(logLevel)
	if parseErr != nil {
		level = zapcore.InfoLevel
	}

	cfg.Level.SetLevel(level)

	lgr, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("构建日志器失败: %w", err))
	}

	zap.ReplaceGlobals(lgr)

	if parseErr != nil {
		zap.L().Warn("未知的日志级别，使用 info", zap.String("log_level", logLevel))
	}
}
