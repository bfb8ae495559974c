package fedi

import (
	"fmt"

	"github.com/mattn/go-mastodon"

	"github.com/ilkoid/nerobot/pkg/conversation"
)

func toAccount(a mastodon.Account) conversation.Account {
	return conversation.Account{
		ID:       string(a.ID),
		Username: a.Username,
	}
}

// toPost конвертирует статус. nil даёт пустой пост.
func toPost(s *mastodon.Status) conversation.Post {
	if s == nil {
		return conversation.Post{}
	}

	post := conversation.Post{
		ID:          string(s.ID),
		Account:     toAccount(s.Account),
		CreatedAt:   s.CreatedAt,
		Content:     s.Content,
		Visibility:  s.Visibility,
		InReplyToID: idString(s.InReplyToID),
	}

	for _, a := range s.MediaAttachments {
		post.MediaAttachments = append(post.MediaAttachments, conversation.MediaAttachment{
			ID:   string(a.ID),
			Type: a.Type,
			URL:  a.URL,
		})
	}
	return post
}

func toPosts(statuses []*mastodon.Status) []conversation.Post {
	out := make([]conversation.Post, 0, len(statuses))
	for _, s := range statuses {
		if s == nil {
			continue
		}
		out = append(out, toPost(s))
	}
	return out
}

func toConversation(c *mastodon.Conversation) Conversation {
	out := Conversation{ID: string(c.ID)}
	for _, a := range c.Accounts {
		if a != nil {
			out.Accounts = append(out.Accounts, toAccount(*a))
		}
	}
	if c.LastStatus != nil {
		last := toPost(c.LastStatus)
		out.LastStatus = &last
	}
	return out
}

// idString приводит in_reply_to_id к строке: SDK отдаёт его как interface{}.
func idString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case mastodon.ID:
		return string(id)
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}
