// Package debug записывает трейсы циклов ответа в JSON файлы.
//
// Трейс сохраняет всё, что ушло в модель и что вернулось, для
// последующего анализа: почему бот ответил именно так.
package debug

import (
	"time"

	"github.com/ilkoid/nerobot/pkg/llm"
)

// CycleTrace представляет трейс одного цикла ответа.
type CycleTrace struct {
	// CycleID — идентификатор цикла (используется в имени файла)
	CycleID string `json:"cycle_id"`

	// Timestamp — время начала цикла
	Timestamp time.Time `json:"timestamp"`

	// ConversationID и StatusID — беседа и опорный пост
	ConversationID string `json:"conversation_id,omitempty"`
	StatusID       string `json:"status_id,omitempty"`

	// Model — алиас выбранной модели
	Model string `json:"model,omitempty"`

	// Messages — полная история, отправленная модели
	Messages []MessageEntry `json:"messages,omitempty"`

	// Reply — текст ответа модели
	Reply string `json:"reply,omitempty"`

	// ReplyStatusID — ID опубликованного поста
	ReplyStatusID string `json:"reply_status_id,omitempty"`

	// Duration — длительность цикла в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Stage и Error — шаг и текст ошибки, если цикл не удался
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`
}

// MessageEntry представляет одно сообщение в истории для полного логирования.
type MessageEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Images  int    `json:"images,omitempty"` // Сами data-URI не пишем
}

// Entries конвертирует сообщения провайдера.
func Entries(messages []llm.Message) []MessageEntry {
	out := make([]MessageEntry, len(messages))
	for i, m := range messages {
		out[i] = MessageEntry{Role: m.Role, Content: m.Content, Images: len(m.Images)}
	}
	return out
}
