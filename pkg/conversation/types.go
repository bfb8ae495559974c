// Package conversation собирает из треда Mastodon историю сообщений для LLM.
//
// Пайплайн: посты треда → plain text (Normalize) → описания картинок
// (Describer) → сообщения с ролями (Flattener.Flatten) или строки диалога
// для выгрузки (Flattener.RenderDialog). Состояния между вызовами нет.
package conversation

import (
	"slices"
	"time"
)

// AttachmentImage — единственный тип вложения, который описывается vision-моделью.
const AttachmentImage = "image"

// Account — автор поста.
type Account struct {
	ID       string
	Username string
}

// MediaAttachment — медиа-вложение поста. Пустой URL означает отсутствие ссылки.
type MediaAttachment struct {
	ID   string
	Type string // image, video, gifv, audio, unknown
	URL  string
}

// Post — один пост треда. После загрузки не меняется.
type Post struct {
	ID               string
	Account          Account
	CreatedAt        time.Time
	Content          string // HTML
	MediaAttachments []MediaAttachment
	Visibility       string
	InReplyToID      string
}

// SortChronological стабильно сортирует посты по времени создания.
// Посты с одинаковым временем сохраняют исходный порядок.
func SortChronological(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// Assemble собирает тред из предков, опорного поста и потомков
// и сортирует его по времени: порядку выдачи API не доверяем.
func Assemble(ancestors []Post, anchor Post, descendants []Post) []Post {
	thread := make([]Post, 0, len(ancestors)+1+len(descendants))
	thread = append(thread, ancestors...)
	thread = append(thread, anchor)
	thread = append(thread, descendants...)
	SortChronological(thread)
	return thread
}
