// Package utils предоставляет логгер приложения поверх zap.
//
// Вызовы сохраняют форму key-value: utils.Info("msg", "key", value, ...).
// До InitLogger все вызовы — no-op, поэтому библиотечный код можно
// безопасно дергать из тестов.
package utils

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ilkoid/nerobot/pkg/config"
)

var (
	logMutex sync.RWMutex
	sugar    = zap.NewNop().Sugar()
)

// InitLogger настраивает глобальный логгер.
//
// Format "json" — production-энкодер, иначе console. Output — путь
// к файлу; логи всегда дублируются в stderr.
func InitLogger(cfg config.LogConfig) error {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapConfig zap.Config
	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapConfig.Level = level
	zapConfig.OutputPaths = []string{"stderr"}
	if cfg.Output != "" {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.Output)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	SetLogger(logger)
	return nil
}

// SetLogger подменяет глобальный логгер (например, zaptest в тестах).
func SetLogger(logger *zap.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	sugar = logger.Sugar()
}

func current() *zap.SugaredLogger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return sugar
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	current().Infow(msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	current().Errorw(msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	current().Debugw(msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	current().Warnw(msg, keyvals...)
}

// Close сбрасывает буферы логгера.
//
// Вызывается через defer в main(). Ошибку Sync на stderr игнорируем:
// на части платформ она возвращается всегда.
func Close() {
	_ = current().Sync()
}
