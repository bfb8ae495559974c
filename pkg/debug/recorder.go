package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Recorder сохраняет трейсы циклов в JSON файлы.
//
// Каждый трейс — отдельный файл, поэтому Recorder можно использовать
// из разных горутин без блокировок.
type Recorder struct {
	config RecorderConfig
}

// RecorderConfig конфигурация для создания Recorder.
type RecorderConfig struct {
	// LogsDir — директория для сохранения трейсов
	LogsDir string

	// MaxContentSize — максимальный размер текста сообщения (превышение обрезается)
	// 0 означает без ограничений
	MaxContentSize int
}

// NewRecorder создает новый Recorder с заданной конфигурацией.
//
// Если LogsDir не существует, пытается создать её.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.LogsDir != "" {
		if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs directory: %w", err)
		}
	}
	return &Recorder{config: cfg}, nil
}

// Record сохраняет трейс и возвращает путь к файлу.
func (r *Recorder) Record(trace CycleTrace) (string, error) {
	messages := make([]MessageEntry, len(trace.Messages))
	for i, m := range trace.Messages {
		m.Content = truncateString(m.Content, r.config.MaxContentSize)
		messages[i] = m
	}
	trace.Messages = messages
	trace.Reply = truncateString(trace.Reply, r.config.MaxContentSize)

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal debug log: %w", err)
	}

	filePath := r.getFilePath(trace)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write debug log: %w", err)
	}

	return filePath, nil
}

// getFilePath возвращает путь к файлу для сохранения.
func (r *Recorder) getFilePath(trace CycleTrace) string {
	name := fmt.Sprintf("cycle_%s_%s.json", trace.Timestamp.Format("20060102_150405"), trace.CycleID)
	if r.config.LogsDir != "" {
		return filepath.Join(r.config.LogsDir, name)
	}
	return name
}

// Helper функция для обрезки строки с сохранением суффикса.
func truncateString(s string, maxSize int) string {
	if maxSize <= 0 || len(s) <= maxSize {
		return s
	}
	return s[:maxSize] + "... (truncated)"
}
