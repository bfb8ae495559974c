package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ilkoid/nerobot/pkg/app"
	"github.com/ilkoid/nerobot/pkg/utils"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Export recent conversations as rewritten dialogs (JSON lines)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), v, limit, output)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "How many recent conversations to export (default: history.limit)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func runHistory(parent context.Context, v *viper.Viper, limit int, output string) error {
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

	exporter, err := components.NewExporter(limit)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return exporter.Export(ctx, w)
}
