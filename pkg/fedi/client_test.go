package fedi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mattn/go-mastodon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI — мок Mastodon API.
type fakeAPI struct {
	me       *mastodon.Account
	statuses map[mastodon.ID]*mastodon.Status
	context  *mastodon.Context
	convs    []*mastodon.Conversation
	stream   chan mastodon.Event
	err      error

	lastToot       *mastodon.Toot
	lastPagination *mastodon.Pagination
}

func (f *fakeAPI) GetAccountCurrentUser(ctx context.Context) (*mastodon.Account, error) {
	return f.me, f.err
}

func (f *fakeAPI) GetStatus(ctx context.Context, id mastodon.ID) (*mastodon.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.statuses[id]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return s, nil
}

func (f *fakeAPI) GetStatusContext(ctx context.Context, id mastodon.ID) (*mastodon.Context, error) {
	return f.context, f.err
}

func (f *fakeAPI) PostStatus(ctx context.Context, toot *mastodon.Toot) (*mastodon.Status, error) {
	f.lastToot = toot
	if f.err != nil {
		return nil, f.err
	}
	return &mastodon.Status{ID: "999", Content: "<p>" + toot.Status + "</p>", Visibility: toot.Visibility, InReplyToID: string(toot.InReplyToID)}, nil
}

func (f *fakeAPI) GetConversations(ctx context.Context, pg *mastodon.Pagination) ([]*mastodon.Conversation, error) {
	f.lastPagination = pg
	return f.convs, f.err
}

func (f *fakeAPI) StreamingDirect(ctx context.Context) (chan mastodon.Event, error) {
	return f.stream, f.err
}

var created = time.Date(2025, time.July, 4, 15, 5, 9, 0, time.UTC)

func sampleStatus() *mastodon.Status {
	return &mastodon.Status{
		ID:          "42",
		Account:     mastodon.Account{ID: "7", Username: "alice", Acct: "alice@remote.example"},
		CreatedAt:   created,
		Content:     "<p>hi <span>bot</span></p>",
		Visibility:  "direct",
		InReplyToID: "41",
		MediaAttachments: []mastodon.Attachment{
			{ID: "m1", Type: "image", URL: "https://cdn.example/1.png"},
			{ID: "m2", Type: "video", URL: ""},
		},
	}
}

func TestGetStatus(t *testing.T) {
	api := &fakeAPI{statuses: map[mastodon.ID]*mastodon.Status{"42": sampleStatus()}}
	c := NewWithAPI(api)

	post, err := c.GetStatus(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, "42", post.ID)
	assert.Equal(t, "alice", post.Account.Username)
	assert.Equal(t, "7", post.Account.ID)
	assert.Equal(t, created, post.CreatedAt)
	assert.Equal(t, "41", post.InReplyToID)
	require.Len(t, post.MediaAttachments, 2)
	assert.Equal(t, "image", post.MediaAttachments[0].Type)
	assert.Equal(t, "", post.MediaAttachments[1].URL)

	_, err = c.GetStatus(context.Background(), "43")
	assert.ErrorContains(t, err, "get status 43")
}

func TestGetContext(t *testing.T) {
	api := &fakeAPI{context: &mastodon.Context{
		Ancestors:   []*mastodon.Status{{ID: "1"}, nil, {ID: "2"}},
		Descendants: []*mastodon.Status{{ID: "3"}},
	}}
	c := NewWithAPI(api)

	anc, desc, err := c.GetContext(context.Background(), "2")
	require.NoError(t, err)
	require.Len(t, anc, 2)
	assert.Equal(t, "2", anc[1].ID)
	require.Len(t, desc, 1)
	assert.Equal(t, "3", desc[0].ID)
}

func TestPostReply(t *testing.T) {
	api := &fakeAPI{}
	c := NewWithAPI(api)

	post, err := c.PostReply(context.Background(), Reply{InReplyToID: "42", Visibility: "direct", Text: "@alice hello"})
	require.NoError(t, err)

	require.NotNil(t, api.lastToot)
	assert.Equal(t, "@alice hello", api.lastToot.Status)
	assert.Equal(t, mastodon.ID("42"), api.lastToot.InReplyToID)
	assert.Equal(t, "direct", api.lastToot.Visibility)
	assert.Equal(t, "999", post.ID)
	assert.Equal(t, "42", post.InReplyToID)

	api.err = errors.New("422 Unprocessable Entity")
	_, err = c.PostReply(context.Background(), Reply{InReplyToID: "42"})
	assert.ErrorContains(t, err, "post reply to 42")
}

func TestListConversations(t *testing.T) {
	api := &fakeAPI{convs: []*mastodon.Conversation{
		{ID: "c1", Accounts: []*mastodon.Account{{ID: "7", Username: "alice"}}, LastStatus: sampleStatus()},
		nil,
		{ID: "c2"},
	}}
	c := NewWithAPI(api)

	convs, err := c.ListConversations(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), api.lastPagination.Limit)

	require.Len(t, convs, 2)
	assert.Equal(t, "c1", convs[0].ID)
	require.NotNil(t, convs[0].LastStatus)
	assert.Equal(t, "42", convs[0].LastStatus.ID)
	assert.Equal(t, "alice", convs[0].Accounts[0].Username)
	assert.Nil(t, convs[1].LastStatus)
}

func TestVerifyCredentials(t *testing.T) {
	c := NewWithAPI(&fakeAPI{me: &mastodon.Account{ID: "1", Username: "nerobot"}})
	me, err := c.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nerobot", me.Username)

	c = NewWithAPI(&fakeAPI{err: errors.New("401 Unauthorized")})
	_, err = c.VerifyCredentials(context.Background())
	assert.ErrorContains(t, err, "verify credentials")
}

func TestStreamDirect(t *testing.T) {
	raw := make(chan mastodon.Event, 4)
	raw <- &mastodon.ConversationEvent{Conversation: &mastodon.Conversation{ID: "c1", LastStatus: &mastodon.Status{ID: "42"}}}
	raw <- &mastodon.ConversationEvent{Conversation: &mastodon.Conversation{ID: "c2"}}
	raw <- &mastodon.UpdateEvent{Status: &mastodon.Status{ID: "43"}}
	raw <- &mastodon.DeleteEvent{ID: "44"}
	close(raw)

	c := NewWithAPI(&fakeAPI{stream: raw})
	events, err := c.StreamDirect(context.Background())
	require.NoError(t, err)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}

	assert.Equal(t, []Event{
		{Kind: KindConversation, ConversationID: "c1", LastStatusID: "42"},
		{Kind: KindConversation, ConversationID: "c2"},
		{Kind: KindUpdate},
		{Kind: KindDelete},
	}, got)
}

func TestStreamDirect_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewWithAPI(&fakeAPI{stream: make(chan mastodon.Event)})

	events, err := c.StreamDirect(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream was not closed after cancel")
	}
}

func TestIDString(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{in: nil, want: ""},
		{in: "109", want: "109"},
		{in: mastodon.ID("110"), want: "110"},
		{in: float64(111), want: "111"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, idString(tt.in))
	}
}
