// Package fedi — адаптер к Mastodon API поверх github.com/mattn/go-mastodon.
//
// Наружу отдаются только типы пакета conversation и Event, так что
// бот и экспорт истории не зависят от SDK.
package fedi

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-mastodon"

	"github.com/ilkoid/nerobot/pkg/config"
	"github.com/ilkoid/nerobot/pkg/conversation"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// ErrNoLastStatus — у беседы нет последнего поста.
var ErrNoLastStatus = errors.New("fedi: conversation has no last status")

// API — часть go-mastodon клиента, которая нам нужна.
// Позволяет подменить сервер в тестах. *mastodon.Client реализует интерфейс.
type API interface {
	GetAccountCurrentUser(ctx context.Context) (*mastodon.Account, error)
	GetStatus(ctx context.Context, id mastodon.ID) (*mastodon.Status, error)
	GetStatusContext(ctx context.Context, id mastodon.ID) (*mastodon.Context, error)
	PostStatus(ctx context.Context, toot *mastodon.Toot) (*mastodon.Status, error)
	GetConversations(ctx context.Context, pg *mastodon.Pagination) ([]*mastodon.Conversation, error)
	StreamingDirect(ctx context.Context) (chan mastodon.Event, error)
}

var _ API = (*mastodon.Client)(nil)

// Client — адаптер Mastodon.
type Client struct {
	api API
}

// Reply — параметры ответа.
type Reply struct {
	InReplyToID string
	Visibility  string
	Text        string
}

// Conversation — беседа из списка direct-бесед.
type Conversation struct {
	ID         string
	Accounts   []conversation.Account
	LastStatus *conversation.Post // nil — последнего поста нет
}

// New создаёт клиент из секции mastodon конфигурации.
func New(cfg config.MastodonConfig) *Client {
	return NewWithAPI(mastodon.NewClient(&mastodon.Config{
		Server:      cfg.Server,
		AccessToken: cfg.AccessToken,
	}))
}

// NewWithAPI создаёт клиент поверх готового API.
func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// VerifyCredentials возвращает аккаунт, от имени которого работает бот.
func (c *Client) VerifyCredentials(ctx context.Context) (conversation.Account, error) {
	acct, err := c.api.GetAccountCurrentUser(ctx)
	if err != nil {
		return conversation.Account{}, fmt.Errorf("verify credentials: %w", err)
	}
	return toAccount(*acct), nil
}

// GetStatus загружает пост по ID.
func (c *Client) GetStatus(ctx context.Context, id string) (conversation.Post, error) {
	status, err := c.api.GetStatus(ctx, mastodon.ID(id))
	if err != nil {
		return conversation.Post{}, fmt.Errorf("get status %s: %w", id, err)
	}
	return toPost(status), nil
}

// GetContext загружает предков и потомков поста.
func (c *Client) GetContext(ctx context.Context, id string) (ancestors, descendants []conversation.Post, err error) {
	sc, err := c.api.GetStatusContext(ctx, mastodon.ID(id))
	if err != nil {
		return nil, nil, fmt.Errorf("get context %s: %w", id, err)
	}
	return toPosts(sc.Ancestors), toPosts(sc.Descendants), nil
}

// PostReply публикует ответ в тред.
func (c *Client) PostReply(ctx context.Context, reply Reply) (conversation.Post, error) {
	status, err := c.api.PostStatus(ctx, &mastodon.Toot{
		Status:      reply.Text,
		InReplyToID: mastodon.ID(reply.InReplyToID),
		Visibility:  reply.Visibility,
	})
	if err != nil {
		return conversation.Post{}, fmt.Errorf("post reply to %s: %w", reply.InReplyToID, err)
	}
	return toPost(status), nil
}

// ListConversations возвращает до limit последних direct-бесед.
func (c *Client) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	convs, err := c.api.GetConversations(ctx, &mastodon.Pagination{Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]Conversation, 0, len(convs))
	for _, conv := range convs {
		if conv == nil {
			continue
		}
		out = append(out, toConversation(conv))
	}
	return out, nil
}

// StreamDirect подписывается на direct-таймлайн.
//
// Канал закрывается, когда ctx отменён или SDK закрыл поток.
func (c *Client) StreamDirect(ctx context.Context) (<-chan Event, error) {
	raw, err := c.api.StreamingDirect(ctx)
	if err != nil {
		return nil, fmt.Errorf("stream direct: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				converted := toEvent(ev)
				if converted.Kind == KindError {
					utils.Warn("direct stream error", "error", converted.Err)
				}
				select {
				case out <- converted:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
