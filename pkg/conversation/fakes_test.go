package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ilkoid/nerobot/pkg/llm"
)

// fakeFetcher возвращает URL как байты и считает вызовы.
// Если URL содержит "slow", ждёт delay; если "broken" — ошибка.
type fakeFetcher struct {
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if strings.Contains(url, "broken") {
		return nil, errors.New("404 not found")
	}
	if strings.Contains(url, "slow") {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(url), nil
}

// passthroughTranscoder ничего не меняет.
type passthroughTranscoder struct{}

func (passthroughTranscoder) Transcode(data []byte) ([]byte, error) {
	return data, nil
}

// fakeVision отвечает заранее заданным описанием по URL картинки.
type fakeVision struct {
	mu           sync.Mutex
	descriptions map[string]string // url → описание
	calls        int
	inFlight     atomic.Int32
	maxInFlight  atomic.Int32
	lastMessages []llm.Message
}

func (v *fakeVision) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	cur := v.inFlight.Add(1)
	defer v.inFlight.Add(-1)
	for {
		prev := v.maxInFlight.Load()
		if cur <= prev || v.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.lastMessages = messages

	// URL зашит в data-URI: passthrough кладёт его байтами
	for url, desc := range v.descriptions {
		if strings.Contains(messages[0].Images[0], b64(url)) {
			return llm.AssistantMessage(desc), nil
		}
	}
	return llm.Message{}, errors.New("vision model unavailable")
}
