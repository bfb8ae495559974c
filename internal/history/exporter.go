// Package history выгружает последние direct-беседы в виде переписанных
// моделью диалогов.
//
// Для каждой беседы восстанавливается тред, рендерится диалог
// "<username> on <timestamp>: <content>", а rewrite-модель возвращает
// список сообщений по JSON Schema. Результат — JSON lines в writer
// и, если настроено, объекты в S3.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/ilkoid/nerobot/pkg/conversation"
	"github.com/ilkoid/nerobot/pkg/fedi"
	"github.com/ilkoid/nerobot/pkg/llm"
	"github.com/ilkoid/nerobot/pkg/prompt"
	"github.com/ilkoid/nerobot/pkg/s3storage"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// DefaultLimit — сколько бесед выгружается по умолчанию.
const DefaultLimit = 100

// schemaName — имя JSON Schema в запросе к модели.
const schemaName = "dialog"

// Mastodon — операции с инстансом, нужные выгрузке.
// *fedi.Client реализует интерфейс.
type Mastodon interface {
	ListConversations(ctx context.Context, limit int) ([]fedi.Conversation, error)
	GetContext(ctx context.Context, id string) (ancestors, descendants []conversation.Post, err error)
}

var _ Mastodon = (*fedi.Client)(nil)

// Line — одно сообщение переписанного диалога.
type Line struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Rewrite — структура ответа rewrite-модели.
type Rewrite struct {
	Messages []Line `json:"messages"`
}

// Transcript — одна выгруженная беседа.
type Transcript struct {
	ID       string `json:"id"`
	Account  string `json:"account"`
	Messages []Line `json:"messages"`
}

// Config конфигурация для создания Exporter.
type Config struct {
	// Mastodon — клиент инстанса (обязательный)
	Mastodon Mastodon

	// Flattener — рендер диалогов (обязательный)
	Flattener *conversation.Flattener

	// Rewriter — модель со структурированным выводом (обязательный)
	Rewriter llm.ObjectGenerator

	// Prompt — системные сообщения rewrite-модели (обязательный)
	Prompt *prompt.PromptFile

	// Limit — сколько последних бесед выгружать, по умолчанию DefaultLimit
	Limit int

	// Concurrency — сколько бесед обрабатывается одновременно, 0 — GOMAXPROCS
	Concurrency int

	// Sink — необязательное S3 хранилище для транскриптов
	Sink s3storage.Uploader

	// Prefix — префикс ключей в Sink
	Prefix string

	// SkipExisting — не выгружать беседы, ключи которых уже есть в Sink
	SkipExisting bool
}

// Exporter выгружает беседы.
type Exporter struct {
	cfg Config
}

// New создаёт Exporter с заданной конфигурацией.
func New(cfg Config) (*Exporter, error) {
	if cfg.Mastodon == nil {
		return nil, fmt.Errorf("cfg.Mastodon is required")
	}
	if cfg.Flattener == nil {
		return nil, fmt.Errorf("cfg.Flattener is required")
	}
	if cfg.Rewriter == nil {
		return nil, fmt.Errorf("cfg.Rewriter is required")
	}
	if cfg.Prompt == nil {
		return nil, fmt.Errorf("cfg.Prompt is required")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Exporter{cfg: cfg}, nil
}

// result — итог обработки одной беседы.
type result struct {
	transcript Transcript
	err        error
}

// Export выгружает беседы в w по одной JSON строке на беседу.
//
// Беседы обрабатываются параллельно, но пишутся в порядке списка.
// Ошибка одной беседы логируется и не останавливает выгрузку;
// возвращается объединение всех ошибок.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	startTime := time.Now()

	convs, err := e.cfg.Mastodon.ListConversations(ctx, e.cfg.Limit)
	if err != nil {
		return err
	}

	convs, err = e.selectConversations(ctx, convs)
	if err != nil {
		return err
	}
	utils.Info("exporting conversations", "count", len(convs))

	mapper := iter.Mapper[fedi.Conversation, result]{MaxGoroutines: e.cfg.Concurrency}
	results := mapper.Map(convs, func(conv *fedi.Conversation) result {
		t, err := e.exportOne(ctx, *conv)
		return result{transcript: t, err: err}
	})

	enc := json.NewEncoder(w)
	var errs []error
	exported := 0

	for i, r := range results {
		convID := convs[i].ID
		if r.err != nil {
			utils.Error("conversation export failed", "conversation_id", convID, "error", r.err)
			errs = append(errs, fmt.Errorf("conversation %s: %w", convID, r.err))
			continue
		}

		if err := enc.Encode(r.transcript); err != nil {
			return fmt.Errorf("write transcript %s: %w", convID, err)
		}
		exported++

		if err := e.upload(ctx, r.transcript); err != nil {
			utils.Error("transcript upload failed", "conversation_id", convID, "error", err)
			errs = append(errs, fmt.Errorf("conversation %s: %w", convID, err))
		}
	}

	utils.Info("export finished",
		"exported", exported,
		"failed", len(errs),
		"duration_ms", time.Since(startTime).Milliseconds())

	return errors.Join(errs...)
}

// selectConversations отбрасывает беседы без последнего поста
// и, при SkipExisting, уже выгруженные.
func (e *Exporter) selectConversations(ctx context.Context, convs []fedi.Conversation) ([]fedi.Conversation, error) {
	existing := map[string]bool{}
	if e.cfg.SkipExisting && e.cfg.Sink != nil {
		objs, err := e.cfg.Sink.ListFiles(ctx, e.cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("list exported transcripts: %w", err)
		}
		for _, obj := range objs {
			existing[obj.Key] = true
		}
	}

	selected := make([]fedi.Conversation, 0, len(convs))
	for _, conv := range convs {
		if conv.LastStatus == nil {
			utils.Debug("skipping conversation", "conversation_id", conv.ID, "reason", fedi.ErrNoLastStatus)
			continue
		}
		if existing[e.key(conv.ID)] {
			utils.Debug("skipping conversation", "conversation_id", conv.ID, "reason", "already exported")
			continue
		}
		selected = append(selected, conv)
	}
	return selected, nil
}

// exportOne восстанавливает тред беседы и переписывает его моделью.
func (e *Exporter) exportOne(ctx context.Context, conv fedi.Conversation) (Transcript, error) {
	last := *conv.LastStatus

	ancestors, descendants, err := e.cfg.Mastodon.GetContext(ctx, last.ID)
	if err != nil {
		return Transcript{}, err
	}
	thread := conversation.Assemble(ancestors, last, descendants)

	dialog, err := e.cfg.Flattener.RenderDialog(ctx, thread)
	if err != nil {
		return Transcript{}, fmt.Errorf("render dialog: %w", err)
	}

	system, err := e.cfg.Prompt.RenderMessages(nil)
	if err != nil {
		return Transcript{}, fmt.Errorf("render prompt: %w", err)
	}

	messages := append(prompt.ToLLM(system), llm.UserMessage(strings.Join(dialog, "\n")))

	var rewrite Rewrite
	if err := e.cfg.Rewriter.GenerateObject(ctx, messages, schemaName, &rewrite, e.cfg.Prompt.Config.Options()...); err != nil {
		return Transcript{}, fmt.Errorf("rewrite dialog: %w", err)
	}
	if rewrite.Messages == nil {
		rewrite.Messages = []Line{}
	}

	return Transcript{
		ID:       conv.ID,
		Account:  participant(conv),
		Messages: rewrite.Messages,
	}, nil
}

// upload кладёт транскрипт в Sink, если он настроен.
func (e *Exporter) upload(ctx context.Context, t Transcript) error {
	if e.cfg.Sink == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	return e.cfg.Sink.Upload(ctx, e.key(t.ID), data, "application/json")
}

// key возвращает ключ транскрипта в Sink.
func (e *Exporter) key(conversationID string) string {
	return path.Join(e.cfg.Prefix, conversationID+".json")
}

// participant — собеседник бота: первый аккаунт беседы
// или автор последнего поста.
func participant(conv fedi.Conversation) string {
	if len(conv.Accounts) > 0 {
		return conv.Accounts[0].Username
	}
	return conv.LastStatus.Account.Username
}
