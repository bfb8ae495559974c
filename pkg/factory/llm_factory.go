package factory

import (
	"fmt"

	"github.com/ilkoid/nerobot/pkg/config"
	"github.com/ilkoid/nerobot/pkg/llm/openai"
)

// defaultBaseURLs — OpenAI-совместимые эндпоинты провайдеров.
// Пустая строка означает дефолт go-openai (api.openai.com).
var defaultBaseURLs = map[string]string{
	"openai":     "",
	"anthropic":  "https://api.anthropic.com/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"zai":        "https://api.z.ai/api/paas/v4",
}

// ResolveBaseURL возвращает base_url из конфига или дефолт провайдера.
func ResolveBaseURL(modelDef config.ModelDef) (string, error) {
	def, ok := defaultBaseURLs[modelDef.Provider]
	if !ok {
		return "", fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}
	if modelDef.BaseURL != "" {
		return modelDef.BaseURL, nil
	}
	return def, nil
}

// NewLLMProvider создает провайдера на основе конфигурации модели.
//
// Возвращает конкретный *openai.Client: он реализует и llm.Provider,
// и llm.ObjectGenerator.
func NewLLMProvider(modelDef config.ModelDef) (*openai.Client, error) {
	if modelDef.ModelName == "" {
		return nil, fmt.Errorf("model_name is required for provider %q", modelDef.Provider)
	}

	baseURL, err := ResolveBaseURL(modelDef)
	if err != nil {
		return nil, err
	}

	return openai.NewClient(modelDef, baseURL), nil
}
