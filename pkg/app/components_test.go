package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/nerobot/pkg/config"
)

const testConfig = `
mastodon:
  server: https://social.example
  access_token: token
models:
  vision: pixtral
  rewrite: gemini
  reply_pool: [haiku]
  definitions:
    pixtral:
      provider: mistral
      model_name: pixtral-12b-latest
    haiku:
      provider: anthropic
      model_name: claude-3-5-haiku-20241022
    gemini:
      provider: openrouter
      model_name: google/gemini-2.5-pro
app:
  prompts_dir: prompts
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitializeConfig(t *testing.T) {
	path := writeConfig(t, testConfig)

	cfg, cfgPath, err := InitializeConfig(&DefaultConfigPathFinder{ConfigFlag: path})
	require.NoError(t, err)
	assert.Equal(t, path, cfgPath)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "prompts"), cfg.App.PromptsDir)
}

// emptyFinder никогда не находит конфиг.
type emptyFinder struct{}

func (emptyFinder) FindConfigPath() string { return "" }

func TestInitializeConfig_NotFound(t *testing.T) {
	_, _, err := InitializeConfig(emptyFinder{})
	assert.ErrorContains(t, err, "config.yaml not found")

	_, _, err = InitializeConfig(&DefaultConfigPathFinder{ConfigFlag: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestInitialize(t *testing.T) {
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	c, err := Initialize(cfg)
	require.NoError(t, err)

	assert.NotNil(t, c.Mastodon)
	assert.NotNil(t, c.Flattener.Describer)
	assert.Equal(t, 4, c.Flattener.Concurrency)
	assert.Equal(t, []string{"gemini", "haiku", "pixtral"}, c.Registry.ListNames())

	exporter, err := c.NewExporter(5)
	require.NoError(t, err)
	assert.NotNil(t, exporter)
}

func TestInitialize_Errors(t *testing.T) {
	cfg, err := config.Parse([]byte("models: {}\n"))
	require.NoError(t, err)

	_, err = Initialize(cfg)
	assert.ErrorContains(t, err, "mastodon.server")

	cfg.Mastodon.Server = "https://social.example"
	cfg.Mastodon.AccessToken = "token"
	c, err := Initialize(cfg)
	require.NoError(t, err)
	assert.Nil(t, c.Flattener.Describer)

	_, err = c.NewExporter(0)
	assert.ErrorContains(t, err, "models.rewrite")
}
