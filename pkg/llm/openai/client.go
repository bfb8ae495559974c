// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API.
//
// Через один клиент ходим во все провайдеры пула: OpenAI, Anthropic,
// DeepSeek, Mistral и OpenRouter отдают chat completions в одном формате,
// отличается только BaseURL. Поддерживает vision (картинки в MultiContent)
// и структурированный вывод через response_format=json_schema.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ilkoid/nerobot/pkg/config"
	"github.com/ilkoid/nerobot/pkg/llm"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// ChatAPI — часть go-openai клиента, которая нам нужна.
// Позволяет подменить транспорт в тестах.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client реализует llm.Provider и llm.ObjectGenerator для OpenAI-совместимых API.
type Client struct {
	api      ChatAPI
	model    string
	defaults llm.GenerateOptions
	timeout  time.Duration
}

var (
	_ llm.Provider        = (*Client)(nil)
	_ llm.ObjectGenerator = (*Client)(nil)
	_ llm.Named           = (*Client)(nil)
)

// NewClient создает клиент на основе конфигурации модели.
//
// baseURL передаётся уже разрешённым (см. factory): пустая строка означает
// дефолтный адрес OpenAI.
func NewClient(modelDef config.ModelDef, baseURL string) *Client {
	cfg := openai.DefaultConfig(modelDef.APIKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return NewClientWithAPI(openai.NewClientWithConfig(cfg), modelDef)
}

// NewClientWithAPI создает клиент поверх готового ChatAPI.
func NewClientWithAPI(api ChatAPI, modelDef config.ModelDef) *Client {
	return &Client{
		api:   api,
		model: modelDef.ModelName,
		defaults: llm.GenerateOptions{
			Model:       modelDef.ModelName,
			Temperature: modelDef.Temperature,
			MaxTokens:   modelDef.MaxTokens,
		},
		timeout: modelDef.Timeout,
	}
}

// ModelName возвращает имя модели в API.
func (c *Client) ModelName() string {
	return c.model
}

// Generate выполняет запрос к API и возвращает ответ модели.
//
// Алгоритм:
//  1. Конвертирует внутренние сообщения в формат OpenAI SDK
//  2. Применяет опции поверх дефолтов модели
//  3. Вызывает API
//  4. Конвертирует ответ обратно в наш формат
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	req := c.buildRequest(messages, opts...)

	resp, err := c.complete(ctx, req)
	if err != nil {
		return llm.Message{}, err
	}

	choice := resp.Choices[0].Message
	role := choice.Role
	if role == "" {
		role = llm.RoleAssistant
	}

	return llm.Message{
		Role:    role,
		Content: choice.Content,
	}, nil
}

// GenerateObject запрашивает у модели JSON, соответствующий Go-типу out.
//
// out должен быть указателем. Схема строится через go-openai/jsonschema
// и отправляется как response_format=json_schema (strict). Ответ очищается
// от markdown-обёртки, проверяется gojsonschema и декодируется в out.
func (c *Client) GenerateObject(ctx context.Context, messages []llm.Message, name string, out any, opts ...llm.GenerateOption) error {
	target := reflect.ValueOf(out)
	if target.Kind() != reflect.Ptr || target.IsNil() {
		return fmt.Errorf("generate object: out must be a non-nil pointer, got %T", out)
	}

	schema, err := jsonschema.GenerateSchemaForType(target.Elem().Interface())
	if err != nil {
		return fmt.Errorf("generate object: build schema: %w", err)
	}

	req := c.buildRequest(messages, opts...)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schema,
			Strict: true,
		},
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return err
	}

	return decodeObject(resp.Choices[0].Message.Content, schema, out)
}

// decodeObject валидирует ответ модели по схеме и декодирует его.
func decodeObject(content string, schema json.Marshaler, out any) error {
	payload := utils.StripCodeFence(content)
	if !json.Valid([]byte(payload)) {
		// Модель могла добавить пояснения вокруг JSON
		if extracted := utils.ExtractJSON(payload); extracted != "" {
			payload = extracted
		}
	}

	schemaBytes, err := schema.MarshalJSON()
	if err != nil {
		return fmt.Errorf("generate object: marshal schema: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewStringLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("generate object: validate: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return fmt.Errorf("generate object: response does not match schema: %s", strings.Join(problems, "; "))
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("generate object: decode: %w", err)
	}
	return nil
}

// buildRequest собирает запрос с учётом опций.
func (c *Client) buildRequest(messages []llm.Message, opts ...llm.GenerateOption) openai.ChatCompletionRequest {
	options := llm.Apply(c.defaults, opts...)

	openaiMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	req := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: openaiMsgs,
	}
	if options.Temperature > 0 {
		req.Temperature = float32(options.Temperature)
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}
	return req
}

// complete вызывает API с таймаутом модели и логированием.
func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	utils.Debug("LLM request started",
		"model", req.Model,
		"messages_count", len(req.Messages),
		"structured", req.ResponseFormat != nil)

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", req.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return openai.ChatCompletionResponse{}, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, fmt.Errorf("no choices in response")
	}

	utils.Info("LLM response received",
		"model", req.Model,
		"content_length", len(resp.Choices[0].Message.Content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return resp, nil
}

// mapToOpenAI конвертирует наше внутреннее сообщение в формат SDK.
// Здесь происходит магия Vision: если есть картинки, создаем MultiContent.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role: m.Role,
	}

	if len(m.Images) == 0 {
		msg.Content = m.Content
		return msg
	}

	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Content,
		},
	}

	for _, imgURL := range m.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imgURL, // base64 data-uri или http ссылка
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	msg.MultiContent = parts
	return msg
}
