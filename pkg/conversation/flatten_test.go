package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/nerobot/pkg/llm"
)

var (
	t1 = time.Date(2025, time.July, 4, 15, 5, 9, 0, time.UTC)
	t2 = t1.Add(time.Minute)
	t3 = t2.Add(time.Minute)
)

func newTestFlattener(vision *fakeVision, fetcher *fakeFetcher) *Flattener {
	return &Flattener{
		Describer:   NewDescriber(vision, fetcher, passthroughTranscoder{}),
		Concurrency: 4,
	}
}

func TestFlatten_Roles(t *testing.T) {
	f := newTestFlattener(&fakeVision{}, &fakeFetcher{})
	posts := []Post{
		{ID: "1", Account: Account{Username: "alice"}, CreatedAt: t1, Content: "<p>hi</p>"},
		{ID: "2", Account: Account{Username: "nerobot"}, CreatedAt: t2, Content: "<p>hello there</p>"},
	}

	got, err := f.Flatten(context.Background(), posts, "nerobot")
	require.NoError(t, err)

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "alice on July 4th 2025, 3:05:09 pm: hi"},
		{Role: llm.RoleAssistant, Content: "hello there"},
	}, got)
}

func TestFlatten_BotUsernameMatching(t *testing.T) {
	f := &Flattener{}
	posts := []Post{
		{Account: Account{Username: "NeroBot"}, CreatedAt: t1, Content: "a"},
		{Account: Account{Username: ""}, CreatedAt: t2, Content: "b"},
	}

	tests := []struct {
		name        string
		botUsername string
		wantRoles   []string
	}{
		{name: "case sensitive", botUsername: "nerobot", wantRoles: []string{llm.RoleUser, llm.RoleUser}},
		{name: "exact match", botUsername: "NeroBot", wantRoles: []string{llm.RoleAssistant, llm.RoleUser}},
		{name: "empty bot username never matches", botUsername: "", wantRoles: []string{llm.RoleUser, llm.RoleUser}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Flatten(context.Background(), posts, tt.botUsername)
			require.NoError(t, err)
			require.Len(t, got, len(tt.wantRoles))
			for i, role := range tt.wantRoles {
				assert.Equal(t, role, got[i].Role)
			}
		})
	}
}

func TestFlatten_Attachments(t *testing.T) {
	vision := &fakeVision{descriptions: map[string]string{
		"https://cdn.example/1.png": "d1",
		"https://cdn.example/2.png": "d2",
	}}
	fetcher := &fakeFetcher{}
	f := newTestFlattener(vision, fetcher)

	posts := []Post{{
		ID:        "1",
		Account:   Account{Username: "nerobot"},
		CreatedAt: t1,
		Content:   "<p>hello</p>",
		MediaAttachments: []MediaAttachment{
			{ID: "a", Type: "image", URL: "https://cdn.example/1.png"},
			{ID: "b", Type: "video", URL: "https://cdn.example/v.mp4"},
			{ID: "c", Type: "image", URL: "https://cdn.example/2.png"},
		},
	}}

	got, err := f.Flatten(context.Background(), posts, "nerobot")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello\n[d1]\n[d2]", got[0].Content)
	assert.Equal(t, int32(2), fetcher.calls.Load(), "video is not fetched")
}

func TestFlatten_Empty(t *testing.T) {
	f := newTestFlattener(&fakeVision{}, &fakeFetcher{})

	got, err := f.Flatten(context.Background(), nil, "nerobot")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFlatten_OrderIndependentOfCompletion(t *testing.T) {
	vision := &fakeVision{descriptions: map[string]string{
		"https://cdn.example/slow.png": "first",
		"https://cdn.example/fast.png": "second",
		"https://cdn.example/mid.png":  "third",
	}}
	fetcher := &fakeFetcher{delay: 50 * time.Millisecond}
	f := newTestFlattener(vision, fetcher)

	posts := []Post{
		{Account: Account{Username: "alice"}, CreatedAt: t1, Content: "one",
			MediaAttachments: []MediaAttachment{{ID: "1", Type: "image", URL: "https://cdn.example/slow.png"}}},
		{Account: Account{Username: "bob"}, CreatedAt: t2, Content: "two",
			MediaAttachments: []MediaAttachment{
				{ID: "2", Type: "image", URL: "https://cdn.example/fast.png"},
				{ID: "3", Type: "image", URL: "https://cdn.example/mid.png"},
			}},
	}

	got, err := f.RenderDialog(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"alice on July 4th 2025, 3:05:09 pm: one\n[first]",
		"bob on July 4th 2025, 3:06:09 pm: two\n[second]\n[third]",
	}, got)
}

func TestFlatten_ConcurrencyBound(t *testing.T) {
	descriptions := map[string]string{}
	var attachments []MediaAttachment
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		url := "https://cdn.example/" + id + ".png"
		descriptions[url] = id
		attachments = append(attachments, MediaAttachment{ID: id, Type: "image", URL: url})
	}
	vision := &fakeVision{descriptions: descriptions}
	f := &Flattener{
		Describer:   NewDescriber(vision, &fakeFetcher{}, passthroughTranscoder{}),
		Concurrency: 2,
	}

	_, err := f.Flatten(context.Background(), []Post{{CreatedAt: t1, MediaAttachments: attachments}}, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, vision.maxInFlight.Load(), int32(2))
	assert.Equal(t, 6, vision.calls)
}

func TestFlatten_AttachmentFailurePolicy(t *testing.T) {
	posts := []Post{{
		Account:   Account{Username: "alice"},
		CreatedAt: t1,
		Content:   "look",
		MediaAttachments: []MediaAttachment{
			{ID: "1", Type: "image", URL: "https://cdn.example/broken.png"},
			{ID: "2", Type: "image", URL: "https://cdn.example/ok.png"},
		},
	}}
	newVision := func() *fakeVision {
		return &fakeVision{descriptions: map[string]string{"https://cdn.example/ok.png": "fine"}}
	}

	t.Run("lenient", func(t *testing.T) {
		f := newTestFlattener(newVision(), &fakeFetcher{})
		got, err := f.Flatten(context.Background(), posts, "nerobot")
		require.NoError(t, err)
		assert.Equal(t, "alice on July 4th 2025, 3:05:09 pm: look\n[fine]", got[0].Content)
	})

	t.Run("strict", func(t *testing.T) {
		f := newTestFlattener(newVision(), &fakeFetcher{})
		f.Strict = true
		_, err := f.Flatten(context.Background(), posts, "nerobot")
		assert.ErrorContains(t, err, "fetch attachment 1")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		f := newTestFlattener(newVision(), &fakeFetcher{})
		_, err := f.Flatten(ctx, posts, "nerobot")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFlatten_WithoutDescriber(t *testing.T) {
	f := &Flattener{}
	posts := []Post{{
		Account:          Account{Username: "alice"},
		CreatedAt:        t3,
		Content:          "text only",
		MediaAttachments: []MediaAttachment{{ID: "1", Type: "image", URL: "https://cdn.example/1.png"}},
	}}

	got, err := f.RenderDialog(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice on July 4th 2025, 3:07:09 pm: text only"}, got)
}

func TestRenderDialog_NoRoleDistinction(t *testing.T) {
	f := &Flattener{}
	posts := []Post{
		{Account: Account{Username: "alice"}, CreatedAt: t1, Content: "<p>hi</p>"},
		{Account: Account{Username: "nerobot"}, CreatedAt: t2, Content: "<p>hello <a href=\"https://x\">@alice</a></p>"},
	}

	got, err := f.RenderDialog(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"alice on July 4th 2025, 3:05:09 pm: hi",
		"nerobot on July 4th 2025, 3:06:09 pm: hello",
	}, got)
}
