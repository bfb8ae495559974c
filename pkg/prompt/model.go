// Структуры данных - описывает формат YAML файла промпта.
package prompt

import "github.com/ilkoid/nerobot/pkg/llm"

// PromptFile описывает структуру YAML-файла с промптом
type PromptFile struct {
	Config   PromptConfig `yaml:"config"`
	Messages []Message    `yaml:"messages"`
}

// PromptConfig - настройки модели для конкретного промпта.
// Нулевые значения не переопределяют настройки модели.
type PromptConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Options возвращает опции генерации из config секции.
func (c PromptConfig) Options() []llm.GenerateOption {
	var opts []llm.GenerateOption
	if c.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(c.Temperature))
	}
	if c.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(c.MaxTokens))
	}
	return opts
}

// Message - одно сообщение в чате
type Message struct {
	Role    string `yaml:"role"`    // system, user, assistant
	Content string `yaml:"content"` // Шаблон с {{.Variables}}
}

// ToLLM конвертирует отрендеренные сообщения в формат провайдера.
func ToLLM(messages []Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// ReplyData — переменные промпта ответа.
type ReplyData struct {
	Now string // Текущее время в формате conversation.FormatTimestamp
}
