// Package app собирает компоненты бота из конфигурации.
//
// Точки входа (cmd/nerobot) только загружают конфиг и вызывают
// Initialize, вся инициализация живёт здесь.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/nerobot/pkg/config"
)

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг --config или NEROBOT_CONFIG (если указан)
// 2. Директория бинарника
// 3. Текущая директория (./config.yaml)
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага --config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
//
// Возвращает пустую строку если файл не найден (ошибка будет в InitializeConfig).
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	// 1. Флаг имеет приоритет (может быть относительный путь)
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	// 2. Директория бинарника
	if execPath, err := os.Executable(); err == nil {
		cfgPath := filepath.Join(filepath.Dir(execPath), "config.yaml")
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}
	}

	// 3. Текущая директория
	if _, err := os.Stat("config.yaml"); err == nil {
		return resolveAbsPath("config.yaml")
	}

	return ""
}

// InitializeConfig загружает конфигурацию.
//
// Относительные app.prompts_dir и app.debug_dir разрешаются относительно
// директории конфига.
// Отсутствие директории промптов не ошибка: есть встроенные промпты.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()
	if cfgPath == "" {
		return nil, "", fmt.Errorf("config.yaml not found\n\n" +
			"Place config.yaml next to the binary or in the working directory,\n" +
			"or pass --config / NEROBOT_CONFIG.")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	cfgDir := filepath.Dir(cfgPath)
	if !filepath.IsAbs(cfg.App.PromptsDir) {
		cfg.App.PromptsDir = filepath.Join(cfgDir, cfg.App.PromptsDir)
	}
	if !filepath.IsAbs(cfg.App.DebugDir) {
		cfg.App.DebugDir = filepath.Join(cfgDir, cfg.App.DebugDir)
	}

	return cfg, cfgPath, nil
}

// resolveAbsPath преобразует путь в абсолютный, если возможно.
func resolveAbsPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
