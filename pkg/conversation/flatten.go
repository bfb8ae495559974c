package conversation

import (
	"context"
	"strings"

	"github.com/sourcegraph/conc/iter"

	"github.com/ilkoid/nerobot/pkg/llm"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// Flattener превращает тред в последовательность сообщений для модели.
type Flattener struct {
	// Describer описывает картинки. nil — вложения игнорируются.
	Describer *Describer

	// Concurrency — максимум одновременных описаний на один тред.
	// 0 — по числу GOMAXPROCS.
	Concurrency int

	// Strict — ошибка любого вложения прерывает обработку треда.
	// По умолчанию вложение с ошибкой даёт пустое описание.
	Strict bool
}

// entry — подготовленный пост: автор, время и итоговый текст.
type entry struct {
	username  string
	timestamp string
	content   string
}

// prefixed возвращает "<username> on <timestamp>: <content>".
func (e entry) prefixed() string {
	return e.username + " on " + e.timestamp + ": " + e.content
}

// Flatten возвращает по одному сообщению на пост в порядке треда.
//
// Посты бота (точное совпадение username, пустой botUsername не совпадает
// ни с кем) становятся assistant без префикса, остальные — user
// с префиксом автора и времени.
func (f *Flattener) Flatten(ctx context.Context, posts []Post, botUsername string) ([]llm.Message, error) {
	entries, err := f.prepare(ctx, posts)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, len(entries))
	for i, e := range entries {
		if botUsername != "" && e.username == botUsername {
			messages[i] = llm.AssistantMessage(e.content)
			continue
		}
		messages[i] = llm.UserMessage(e.prefixed())
	}
	return messages, nil
}

// RenderDialog возвращает тред строками "<username> on <timestamp>: <content>"
// без различия ролей. Используется для выгрузки диалогов.
func (f *Flattener) RenderDialog(ctx context.Context, posts []Post) ([]string, error) {
	entries, err := f.prepare(ctx, posts)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.prefixed()
	}
	return lines, nil
}

// describeJob — одно вложение с позицией в треде.
type describeJob struct {
	post       int
	attachment MediaAttachment
}

// prepare нормализует тексты и описывает все картинки треда одним
// ограниченным пулом. Результаты собираются по позиции, а не по порядку
// завершения.
func (f *Flattener) prepare(ctx context.Context, posts []Post) ([]entry, error) {
	entries := make([]entry, len(posts))
	var jobs []describeJob

	for i, post := range posts {
		entries[i] = entry{
			username:  post.Account.Username,
			timestamp: FormatTimestamp(post.CreatedAt),
			content:   Normalize(post.Content),
		}
		if f.Describer == nil {
			continue
		}
		for _, attachment := range post.MediaAttachments {
			jobs = append(jobs, describeJob{post: i, attachment: attachment})
		}
	}

	if len(jobs) == 0 {
		return entries, nil
	}

	mapper := iter.Mapper[describeJob, string]{MaxGoroutines: f.Concurrency}
	descriptions, err := mapper.MapErr(jobs, func(job *describeJob) (string, error) {
		return f.describe(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	perPost := make([][]string, len(posts))
	for i, job := range jobs {
		if descriptions[i] != "" {
			perPost[job.post] = append(perPost[job.post], descriptions[i])
		}
	}

	for i, extra := range perPost {
		if len(extra) > 0 {
			entries[i].content = entries[i].content + "\n" + strings.Join(extra, "\n")
		}
	}
	return entries, nil
}

// describe применяет политику ошибок к одному вложению.
func (f *Flattener) describe(ctx context.Context, job *describeJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	description, err := f.Describer.Describe(ctx, job.attachment)
	if err == nil {
		return description, nil
	}

	if ctx.Err() != nil || f.Strict {
		return "", err
	}

	utils.Warn("attachment skipped",
		"attachment_id", job.attachment.ID,
		"error", err)
	return "", nil
}
