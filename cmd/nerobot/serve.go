package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ilkoid/nerobot/pkg/app"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// initTimeout — время на проверку учётных данных и подписку на стрим.
const initTimeout = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Listen to direct messages and reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}
}

func runServe(parent context.Context, v *viper.Viper) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer utils.SetupGracefulShutdown(cancel)()

	components, err := app.Initialize(cfg)
	if err != nil {
		utils.Error("Initialization failed", "error", err)
		return fmt.Errorf("initialization failed: %w", err)
	}

	initCtx, initCancel := context.WithTimeout(ctx, initTimeout)
	driver, err := components.NewDriver(initCtx)
	initCancel()
	if err != nil {
		utils.Error("Driver creation failed", "error", err)
		return err
	}

	events, err := components.Mastodon.StreamDirect(ctx)
	if err != nil {
		utils.Error("Direct stream subscription failed", "error", err)
		return err
	}
	utils.Info("Listening for direct messages", "server", cfg.Mastodon.Server)

	if err := driver.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
