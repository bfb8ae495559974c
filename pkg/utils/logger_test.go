package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ilkoid/nerobot/pkg/config"
)

func TestLogger_KeyValues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Info("reply posted", "status_id", "42", "model", "deepseek-chat")
	Warn("attachment skipped", "attachment_id", "7")
	Error("cycle failed", "stage", "generate")
	Debug("details")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "reply posted", entries[0].Message)
	assert.Equal(t, "42", entries[0].ContextMap()["status_id"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "generate", entries[2].ContextMap()["stage"])
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	assert.Error(t, InitLogger(config.LogConfig{Level: "loud"}))
	assert.NoError(t, InitLogger(config.LogConfig{Level: "warn", Format: "json"}))
	assert.NoError(t, InitLogger(config.LogConfig{Level: "debug", Format: "console"}))
	Close()
}
