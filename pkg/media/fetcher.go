// Package media скачивает и готовит вложения для vision-модели.
//
// Fetcher — "тупой" HTTP клиент с лимитом размера и ретраями,
// Transcoder — ресайз и перекодирование в JPEG.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ilkoid/nerobot/pkg/utils"
)

// ErrTooLarge возвращается, если вложение больше лимита.
var ErrTooLarge = errors.New("media: payload too large")

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Позволяет мокировать HTTP клиент в тестах.
// Стандартный *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher скачивает вложения по URL.
type Fetcher struct {
	httpClient    HTTPClient
	maxBytes      int64
	retryAttempts int
}

// NewFetcher создаёт Fetcher.
//
// maxBytes <= 0 — без лимита, retryAttempts < 1 трактуется как одна попытка.
func NewFetcher(httpClient HTTPClient, maxBytes int64, retryAttempts int) *Fetcher {
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return &Fetcher{
		httpClient:    httpClient,
		maxBytes:      maxBytes,
		retryAttempts: retryAttempts,
	}
}

// NewHTTPFetcher создаёт Fetcher поверх http.Client с таймаутом.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, retryAttempts int) *Fetcher {
	return NewFetcher(&http.Client{Timeout: timeout}, maxBytes, retryAttempts)
}

// Fetch скачивает тело ответа целиком.
//
// Сетевые ошибки, 429 и 5xx ретраятся, остальные не-2xx статусы
// и ErrTooLarge возвращаются сразу.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i < f.retryAttempts; i++ {
		if i > 0 {
			utils.Debug("retrying media fetch", "url", url, "attempt", i+1, "error", lastErr)
		}

		data, retryAfter, err := f.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		if retryAfter < 0 {
			return nil, err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryAfter):
		}
	}

	return nil, fmt.Errorf("fetch %s: max retries exceeded: %w", url, lastErr)
}

// fetchOnce делает одну попытку. retryAfter < 0 означает, что повторять нельзя.
func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, 0, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, -1, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	if resp.ContentLength > 0 && f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, -1, fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	data, err := ReadAllWithLimit(resp.Body, f.maxBytes)
	if err != nil {
		return nil, -1, fmt.Errorf("read %s: %w", url, err)
	}
	return data, 0, nil
}

// retryAfter разбирает заголовок Retry-After в секундах. Дефолт — 1s.
func retryAfter(header string) time.Duration {
	if sec, err := strconv.Atoi(header); err == nil && sec >= 0 {
		return time.Duration(sec) * time.Second
	}
	return time.Second
}

// ReadAllWithLimit читает reader целиком и отвергает данные больше maxBytes.
// maxBytes <= 0 — без лимита.
func ReadAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(reader)
	}
	limited := &io.LimitedReader{R: reader, N: maxBytes + 1}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
