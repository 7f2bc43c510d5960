package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/companion/config"
)

// =============================================================================
// 🔧 日志初始化
// =============================================================================

// parseLevel 解析日志级别，未知值回退到 info
func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// resolveFormat maps "auto" to console on a terminal and json otherwise.
func resolveFormat(format string, terminal bool) string {
	switch format {
	case "console", "json":
		return format
	default:
		if terminal {
			return "console"
		}
		return "json"
	}
}

// initLogger builds the process logger. The returned level can be changed
// at runtime, e.g. on config reload.
func initLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	format := resolveFormat(cfg.Format, isatty.IsTerminal(os.Stdout.Fd()))

	var encoderConfig zapcore.EncoderConfig
	if format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	zapConfig := zap.Config{
		Level:             level,
		Development:       format == "console",
		Encoding:          format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger, level
}

// watchLogLevel applies log level changes from reloaded configs.
func watchLogLevel(w *config.Watcher, level zap.AtomicLevel, logger *zap.Logger) {
	w.OnReload(func(cfg *config.Config) {
		next := parseLevel(cfg.Log.Level)
		if next == level.Level() {
			return
		}
		level.SetLevel(next)
		logger.Info("log level changed", zap.Stringer("level", next))
	})
}
