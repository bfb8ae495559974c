package fedi

import (
	"github.com/mattn/go-mastodon"
)

// Kind — тип события стрима.
type Kind string

const (
	KindConversation Kind = "conversation"
	KindUpdate       Kind = "update"
	KindNotification Kind = "notification"
	KindDelete       Kind = "delete"
	KindError        Kind = "error"
	KindUnknown      Kind = "unknown"
)

// Event — событие direct-стрима.
//
// Для conversation-событий заполнены ConversationID и LastStatusID
// (пусто, если у беседы нет последнего поста). Для error — Err.
type Event struct {
	Kind           Kind
	ConversationID string
	LastStatusID   string
	Err            error
}

// toEvent конвертирует событие SDK.
func toEvent(ev mastodon.Event) Event {
	switch e := ev.(type) {
	case *mastodon.ConversationEvent:
		out := Event{Kind: KindConversation}
		if e.Conversation != nil {
			out.ConversationID = string(e.Conversation.ID)
			if e.Conversation.LastStatus != nil {
				out.LastStatusID = string(e.Conversation.LastStatus.ID)
			}
		}
		return out
	case *mastodon.UpdateEvent:
		return Event{Kind: KindUpdate}
	case *mastodon.NotificationEvent:
		return Event{Kind: KindNotification}
	case *mastodon.DeleteEvent:
		return Event{Kind: KindDelete}
	case *mastodon.ErrorEvent:
		return Event{Kind: KindError, Err: e}
	default:
		return Event{Kind: KindUnknown}
	}
}
