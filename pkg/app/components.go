package app

import (
	"context"
	"fmt"

	"github.com/ilkoid/nerobot/internal/bot"
	"github.com/ilkoid/nerobot/internal/history"
	"github.com/ilkoid/nerobot/pkg/config"
	"github.com/ilkoid/nerobot/pkg/conversation"
	"github.com/ilkoid/nerobot/pkg/debug"
	"github.com/ilkoid/nerobot/pkg/fedi"
	"github.com/ilkoid/nerobot/pkg/media"
	"github.com/ilkoid/nerobot/pkg/models"
	"github.com/ilkoid/nerobot/pkg/prompt"
	"github.com/ilkoid/nerobot/pkg/s3storage"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// Components содержит общие компоненты команд serve и history.
type Components struct {
	Config    *config.AppConfig
	Mastodon  *fedi.Client
	Registry  *models.Registry
	Flattener *conversation.Flattener
}

// Initialize создаёт и инициализирует все компоненты приложения.
//
// Сетевых вызовов не делает: подключение к инстансу проверяется
// в NewDriver.
func Initialize(cfg *config.AppConfig) (*Components, error) {
	utils.Info("Initializing components",
		"server", cfg.Mastodon.Server,
		"models", len(cfg.Models.Definitions))

	if err := cfg.ValidateConnection(); err != nil {
		return nil, err
	}

	// 1. Реестр моделей
	registry, err := models.NewRegistryFromConfig(cfg)
	if err != nil {
		utils.Error("Model registry creation failed", "error", err)
		return nil, fmt.Errorf("failed to create model registry: %w", err)
	}
	utils.Info("Model registry initialized", "models", registry.ListNames())

	// 2. Flattener с описанием картинок
	flattener := &conversation.Flattener{
		Concurrency: cfg.Reply.Concurrency,
		Strict:      cfg.Reply.Strict,
	}
	if cfg.Models.Vision != "" {
		vision, err := registry.Get(cfg.Models.Vision)
		if err != nil {
			return nil, fmt.Errorf("vision model: %w", err)
		}
		flattener.Describer = conversation.NewDescriber(
			vision.Provider,
			media.NewHTTPFetcher(cfg.ImageProcessing.FetchTimeout, cfg.ImageProcessing.MaxBytes, cfg.ImageProcessing.FetchRetries),
			media.NewTranscoder(cfg.ImageProcessing),
		)
		utils.Info("Vision model configured", "model", vision.Name, "max_side", cfg.ImageProcessing.MaxWidth)
	} else {
		utils.Warn("Vision model not configured, attachments will be ignored")
	}

	return &Components{
		Config:    cfg,
		Mastodon:  fedi.New(cfg.Mastodon),
		Registry:  registry,
		Flattener: flattener,
	}, nil
}

// NewDriver проверяет учётные данные бота и собирает цикл ответа.
func (c *Components) NewDriver(ctx context.Context) (*bot.Driver, error) {
	me, err := c.Mastodon.VerifyCredentials(ctx)
	if err != nil {
		return nil, err
	}
	utils.Info("Logged in", "username", me.Username, "account_id", me.ID)

	pool, err := models.NewPool(c.Registry, c.Config.Models.ReplyPool, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create reply pool: %w", err)
	}
	utils.Info("Reply pool initialized", "models", pool.Names())

	replyPrompt, err := prompt.LoadOrDefault(c.Config.App.PromptsDir, prompt.ReplyPrompt)
	if err != nil {
		return nil, err
	}

	var recorder bot.TraceRecorder
	if c.Config.App.Debug {
		r, err := debug.NewRecorder(debug.RecorderConfig{LogsDir: c.Config.App.DebugDir})
		if err != nil {
			utils.Error("Failed to create debug recorder", "error", err)
		} else {
			recorder = r
			utils.Info("Cycle traces enabled", "dir", c.Config.App.DebugDir)
		}
	}

	return bot.New(bot.Config{
		Recorder:     recorder,
		Mastodon:     c.Mastodon,
		Flattener:    c.Flattener,
		Pool:         pool,
		Prompt:       replyPrompt,
		BotUsername:  me.Username,
		Visibility:   c.Config.Reply.Visibility,
		CycleTimeout: c.Config.Reply.Timeout,
	})
}

// NewExporter собирает выгрузку истории.
//
// limit > 0 переопределяет history.limit из конфига.
func (c *Components) NewExporter(limit int) (*history.Exporter, error) {
	if c.Config.Models.Rewrite == "" {
		return nil, fmt.Errorf("models.rewrite is required for history export")
	}
	rewriter, err := c.Registry.GetObjectGenerator(c.Config.Models.Rewrite)
	if err != nil {
		return nil, err
	}

	rewritePrompt, err := prompt.LoadOrDefault(c.Config.App.PromptsDir, prompt.RewritePrompt)
	if err != nil {
		return nil, err
	}

	var sink s3storage.Uploader
	if c.Config.S3.Enabled() {
		client, err := s3storage.New(c.Config.S3)
		if err != nil {
			utils.Error("S3 client creation failed", "error", err)
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		sink = client
		utils.Info("S3 client initialized", "bucket", c.Config.S3.Bucket, "prefix", c.Config.History.S3Prefix)
	}

	if limit <= 0 {
		limit = c.Config.History.Limit
	}

	return history.New(history.Config{
		Mastodon:     c.Mastodon,
		Flattener:    c.Flattener,
		Rewriter:     rewriter,
		Prompt:       rewritePrompt,
		Limit:        limit,
		Concurrency:  c.Config.Reply.Concurrency,
		Sink:         sink,
		Prefix:       c.Config.History.S3Prefix,
		SkipExisting: c.Config.History.SkipExisting,
	})
}
