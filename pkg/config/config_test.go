package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
mastodon:
  server: https://social.example
  access_token: ${NEROBOT_TEST_TOKEN}
models:
  vision: pixtral
  rewrite: gemini
  reply_pool: [haiku, deepseek]
  definitions:
    pixtral:
      provider: mistral
      model_name: pixtral-12b-latest
      api_key: ${NEROBOT_TEST_MISTRAL}
    haiku:
      provider: anthropic
      model_name: claude-3-5-haiku-20241022
    deepseek:
      provider: deepseek
      model_name: deepseek-chat
      timeout: 90s
    gemini:
      provider: openrouter
      model_name: google/gemini-2.5-pro
reply:
  timeout: 2m
`

func TestParse(t *testing.T) {
	t.Setenv("NEROBOT_TEST_TOKEN", "secret-token")
	t.Setenv("NEROBOT_TEST_MISTRAL", "mistral-key")

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://social.example", cfg.Mastodon.Server)
	assert.Equal(t, "secret-token", cfg.Mastodon.AccessToken)
	assert.Equal(t, []string{"haiku", "deepseek"}, cfg.Models.ReplyPool)
	assert.Equal(t, "mistral-key", cfg.Models.Definitions["pixtral"].APIKey)
	assert.Equal(t, 90*time.Second, cfg.Models.Definitions["deepseek"].Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Reply.Timeout)

	// Дефолты
	assert.Equal(t, 1000, cfg.ImageProcessing.MaxWidth)
	assert.Equal(t, 85, cfg.ImageProcessing.Quality)
	assert.Equal(t, 30*time.Second, cfg.ImageProcessing.FetchTimeout)
	assert.Equal(t, 2, cfg.ImageProcessing.FetchRetries)
	assert.Equal(t, 4, cfg.Reply.Concurrency)
	assert.Equal(t, "direct", cfg.Reply.Visibility)
	assert.Equal(t, 100, cfg.History.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.S3.Enabled())

	require.NoError(t, cfg.ValidateConnection())
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown vision model",
			yaml: "models:\n  vision: missing\n",
		},
		{
			name: "unknown rewrite model",
			yaml: "models:\n  rewrite: missing\n",
		},
		{
			name: "unknown pool member",
			yaml: "models:\n  reply_pool: [a]\n  definitions:\n    b: {provider: openai}\n",
		},
		{
			name: "bad quality",
			yaml: "image_processing:\n  quality: 150\n",
		},
		{
			name: "broken yaml",
			yaml: "models: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidateConnection(t *testing.T) {
	cfg := &AppConfig{}
	assert.Error(t, cfg.ValidateConnection())

	cfg.Mastodon.Server = "https://social.example"
	assert.Error(t, cfg.ValidateConnection())

	cfg.Mastodon.AccessToken = "token"
	assert.NoError(t, cfg.ValidateConnection())
}

func TestLoad(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mastodon:\n  server: https://a.example\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", cfg.Mastodon.Server)

	_, ok := cfg.GetModel("none")
	assert.False(t, ok)
}
