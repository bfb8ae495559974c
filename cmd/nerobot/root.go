package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ilkoid/nerobot/pkg/app"
	"github.com/ilkoid/nerobot/pkg/config"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// Ключи viper. Каждый связан с флагом и переменной окружения.
const (
	keyConfig   = "config"
	keyServer   = "server"
	keyToken    = "token"
	keyLogLevel = "log-level"
)

var envBindings = map[string]string{
	keyConfig:   "NEROBOT_CONFIG",
	keyServer:   "MASTODON_SERVER",
	keyToken:    "MASTODON_ACCESS_TOKEN",
	keyLogLevel: "NEROBOT_LOG_LEVEL",
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "nerobot",
		Short:         "Mastodon direct-message bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String(keyConfig, "", "Path to config.yaml (default: next to binary, then ./config.yaml)")
	flags.String(keyServer, "", "Mastodon server URL, overrides mastodon.server")
	flags.String(keyToken, "", "Mastodon access token, overrides mastodon.access_token")
	flags.String(keyLogLevel, "", "Log level: debug, info, warn, error")

	for key, env := range envBindings {
		_ = v.BindPFlag(key, flags.Lookup(key))
		_ = v.BindEnv(key, env)
	}

	root.AddCommand(newServeCmd(v), newHistoryCmd(v))
	return root
}

// loadConfig загружает конфиг, применяет флаги и ENV, инициализирует логгер.
func loadConfig(v *viper.Viper) (*config.AppConfig, error) {
	finder := &app.DefaultConfigPathFinder{ConfigFlag: v.GetString(keyConfig)}
	cfg, cfgPath, err := app.InitializeConfig(finder)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, v)

	if err := utils.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Logger init failed: %v\n", err)
	}
	utils.Info("Config loaded", "path", cfgPath, "prompts_dir", cfg.App.PromptsDir)

	return cfg, nil
}

// applyOverrides переносит непустые значения флагов и ENV поверх файла.
func applyOverrides(cfg *config.AppConfig, v *viper.Viper) {
	if s := v.GetString(keyServer); s != "" {
		cfg.Mastodon.Server = s
	}
	if s := v.GetString(keyToken); s != "" {
		cfg.Mastodon.AccessToken = s
	}
	if s := v.GetString(keyLogLevel); s != "" {
		cfg.Log.Level = s
	}
}
