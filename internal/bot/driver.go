// Package bot реализует цикл ответа на direct-сообщения.
//
// Driver читает события direct-стрима по одному: восстанавливает тред,
// превращает его в сообщения для модели, выбирает модель из пула,
// генерирует ответ и публикует его в тот же тред.
//
// Ошибки и паники одного события логируются и не останавливают цикл.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/nerobot/pkg/conversation"
	"github.com/ilkoid/nerobot/pkg/debug"
	"github.com/ilkoid/nerobot/pkg/fedi"
	"github.com/ilkoid/nerobot/pkg/llm"
	"github.com/ilkoid/nerobot/pkg/models"
	"github.com/ilkoid/nerobot/pkg/prompt"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// excerptWidth — сколько символов ответа попадает в лог.
const excerptWidth = 100

// DefaultVisibility — видимость ответа по умолчанию.
const DefaultVisibility = "direct"

// Mastodon — операции с инстансом, нужные циклу ответа.
// *fedi.Client реализует интерфейс.
type Mastodon interface {
	GetStatus(ctx context.Context, id string) (conversation.Post, error)
	GetContext(ctx context.Context, id string) (ancestors, descendants []conversation.Post, err error)
	PostReply(ctx context.Context, reply fedi.Reply) (conversation.Post, error)
}

// ModelPicker выбирает модель для очередного ответа.
// *models.Pool реализует интерфейс.
type ModelPicker interface {
	Pick() (models.ModelEntry, error)
}

// TraceRecorder сохраняет трейсы циклов. *debug.Recorder реализует интерфейс.
type TraceRecorder interface {
	Record(trace debug.CycleTrace) (string, error)
}

var (
	_ Mastodon      = (*fedi.Client)(nil)
	_ ModelPicker   = (*models.Pool)(nil)
	_ TraceRecorder = (*debug.Recorder)(nil)
)

// Config конфигурация для создания Driver.
type Config struct {
	// Mastodon — клиент инстанса (обязательный)
	Mastodon Mastodon

	// Flattener — сборщик сообщений из треда (обязательный)
	Flattener *conversation.Flattener

	// Pool — пул моделей для ответа (обязательный)
	Pool ModelPicker

	// Prompt — системные сообщения ответа (обязательный).
	// Рендерится с prompt.ReplyData.
	Prompt *prompt.PromptFile

	// BotUsername — username бота, его посты становятся assistant
	BotUsername string

	// Visibility — видимость ответа, по умолчанию direct
	Visibility string

	// CycleTimeout — таймаут на одно событие, 0 — без таймаута
	CycleTimeout time.Duration

	// Now — часы, по умолчанию time.Now
	Now func() time.Time

	// Recorder — запись трейсов циклов, nil — выключено
	Recorder TraceRecorder
}

// Driver — однопоточный обработчик событий direct-стрима.
type Driver struct {
	mastodon     Mastodon
	flattener    *conversation.Flattener
	pool         ModelPicker
	prompt       *prompt.PromptFile
	botUsername  string
	visibility   string
	cycleTimeout time.Duration
	now          func() time.Time
	recorder     TraceRecorder
}

// New создаёт Driver с заданной конфигурацией.
func New(cfg Config) (*Driver, error) {
	if cfg.Mastodon == nil {
		return nil, fmt.Errorf("cfg.Mastodon is required")
	}
	if cfg.Flattener == nil {
		return nil, fmt.Errorf("cfg.Flattener is required")
	}
	if cfg.Pool == nil {
		return nil, fmt.Errorf("cfg.Pool is required")
	}
	if cfg.Prompt == nil {
		return nil, fmt.Errorf("cfg.Prompt is required")
	}

	if cfg.Visibility == "" {
		cfg.Visibility = DefaultVisibility
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Driver{
		mastodon:     cfg.Mastodon,
		flattener:    cfg.Flattener,
		pool:         cfg.Pool,
		prompt:       cfg.Prompt,
		botUsername:  cfg.BotUsername,
		visibility:   cfg.Visibility,
		cycleTimeout: cfg.CycleTimeout,
		now:          cfg.Now,
		recorder:     cfg.Recorder,
	}, nil
}

// Run обрабатывает события по одному, пока не отменён ctx
// или не закрыт канал событий.
//
// Возвращает ctx.Err() при отмене и nil при закрытии канала.
func (d *Driver) Run(ctx context.Context, events <-chan fedi.Event) error {
	utils.Info("reply driver started", "bot", d.botUsername)

	for {
		select {
		case <-ctx.Done():
			utils.Info("reply driver stopped", "reason", ctx.Err())
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				utils.Info("reply driver stopped", "reason", "event stream closed")
				return nil
			}
			d.dispatch(ctx, ev)
		}
	}
}

// dispatch изолирует одно событие: ошибки и паники логируются.
func (d *Driver) dispatch(ctx context.Context, ev fedi.Event) {
	start := time.Now()
	trace := &debug.CycleTrace{
		CycleID:        uuid.NewString(),
		Timestamp:      start,
		ConversationID: ev.ConversationID,
		StatusID:       ev.LastStatusID,
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			utils.Error("reply cycle panicked",
				"cycle_id", trace.CycleID,
				"conversation_id", ev.ConversationID,
				"status_id", ev.LastStatusID,
				"panic", r)
		}
		d.record(trace, err, time.Since(start))
	}()

	if d.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cycleTimeout)
		defer cancel()
	}

	err = d.handle(ctx, trace, ev)
	if err != nil {
		keyvals := []any{
			"cycle_id", trace.CycleID,
			"conversation_id", ev.ConversationID,
			"status_id", ev.LastStatusID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		var se *StageError
		if errors.As(err, &se) {
			keyvals = append(keyvals, "stage", se.Stage)
		}
		utils.Error("reply cycle failed", keyvals...)
	}
}

// record сохраняет трейс цикла, если дошли до модели или упали.
func (d *Driver) record(trace *debug.CycleTrace, err error, elapsed time.Duration) {
	if d.recorder == nil || (trace.Model == "" && err == nil) {
		return
	}

	trace.Duration = elapsed.Milliseconds()
	if err != nil {
		trace.Error = err.Error()
		var se *StageError
		if errors.As(err, &se) {
			trace.Stage = string(se.Stage)
		}
	}

	path, recErr := d.recorder.Record(*trace)
	if recErr != nil {
		utils.Warn("failed to save cycle trace", "cycle_id", trace.CycleID, "error", recErr)
		return
	}
	utils.Debug("cycle trace saved", "cycle_id", trace.CycleID, "file", path)
}

// Handle выполняет полный цикл ответа для одного события.
//
// Алгоритм:
//  1. Отбрасывает события без последнего поста и не-conversation события
//  2. Загружает опорный пост; свои посты пропускает
//  3. Загружает контекст и собирает тред по времени
//  4. Превращает тред в сообщения
//  5. Выбирает модель и генерирует ответ
//  6. Публикует "@<author> <text>" ответом на опорный пост
func (d *Driver) Handle(ctx context.Context, cycleID string, ev fedi.Event) error {
	return d.handle(ctx, &debug.CycleTrace{CycleID: cycleID}, ev)
}

func (d *Driver) handle(ctx context.Context, trace *debug.CycleTrace, ev fedi.Event) error {
	cycleID := trace.CycleID
	if ev.Kind != fedi.KindConversation {
		utils.Debug("ignoring stream event", "kind", ev.Kind)
		return nil
	}
	if ev.LastStatusID == "" {
		utils.Warn("conversation has no last status",
			"cycle_id", cycleID,
			"conversation_id", ev.ConversationID)
		return nil
	}

	statusID := ev.LastStatusID
	utils.Info("reply cycle started",
		"cycle_id", cycleID,
		"conversation_id", ev.ConversationID,
		"status_id", statusID)

	anchor, err := d.mastodon.GetStatus(ctx, statusID)
	if err != nil {
		return stageErr(StageFetchStatus, statusID, err)
	}

	if d.botUsername != "" && anchor.Account.Username == d.botUsername {
		utils.Debug("skipping own status", "cycle_id", cycleID, "status_id", statusID)
		return nil
	}

	ancestors, descendants, err := d.mastodon.GetContext(ctx, statusID)
	if err != nil {
		return stageErr(StageFetchContext, statusID, err)
	}
	thread := conversation.Assemble(ancestors, anchor, descendants)

	history, err := d.flattener.Flatten(ctx, thread, d.botUsername)
	if err != nil {
		return stageErr(StageFlatten, statusID, err)
	}

	model, err := d.pool.Pick()
	if err != nil {
		return stageErr(StagePickModel, statusID, err)
	}
	utils.Info("using model", "cycle_id", cycleID, "model", model.Name, "model_name", model.Config.ModelName)
	trace.Model = model.Name

	system, err := d.prompt.RenderMessages(prompt.ReplyData{
		Now: conversation.FormatTimestamp(d.now()),
	})
	if err != nil {
		return stageErr(StageRenderPrompt, statusID, err)
	}

	messages := make([]llm.Message, 0, len(system)+len(history))
	messages = append(messages, prompt.ToLLM(system)...)
	messages = append(messages, history...)
	trace.Messages = debug.Entries(messages)

	answer, err := model.Provider.Generate(ctx, messages, d.prompt.Config.Options()...)
	if err != nil {
		return stageErr(StageGenerate, statusID, err)
	}
	trace.Reply = answer.Content

	created, err := d.mastodon.PostReply(ctx, fedi.Reply{
		InReplyToID: anchor.ID,
		Visibility:  d.visibility,
		Text:        "@" + anchor.Account.Username + " " + answer.Content,
	})
	if err != nil {
		return stageErr(StagePostReply, statusID, err)
	}
	trace.ReplyStatusID = created.ID

	utils.Info("reply posted",
		"cycle_id", cycleID,
		"status_id", created.ID,
		"in_reply_to", anchor.ID,
		"reply", utils.Excerpt(conversation.Normalize(created.Content), excerptWidth))

	return nil
}
