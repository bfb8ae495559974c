package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Mastodon        MastodonConfig  `yaml:"mastodon"`
	Models          ModelsConfig    `yaml:"models"`
	ImageProcessing ImageProcConfig `yaml:"image_processing"`
	Reply           ReplyConfig     `yaml:"reply"`
	History         HistoryConfig   `yaml:"history"`
	S3              S3Config        `yaml:"s3"`
	Log             LogConfig       `yaml:"log"`
	App             AppSpecific     `yaml:"app"`
}

// MastodonConfig — подключение к инстансу.
type MastodonConfig struct {
	Server      string `yaml:"server"`       // https://mastodon.example
	AccessToken string `yaml:"access_token"` // Поддерживает ${VAR}
}

// ModelsConfig — настройки AI моделей.
type ModelsConfig struct {
	Vision      string              `yaml:"vision"`      // Алиас модели для описания картинок
	Rewrite     string              `yaml:"rewrite"`     // Алиас модели для history (structured output)
	ReplyPool   []string            `yaml:"reply_pool"`  // Из них случайно выбирается модель для ответа
	Definitions map[string]ModelDef `yaml:"definitions"` // Словарь определений моделей
}

// ModelDef — параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "openai", "anthropic", "deepseek", "mistral", "openrouter", "zai"
	ModelName   string        `yaml:"model_name"` // Реальное имя в API
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string        `yaml:"base_url"`   // Пусто — дефолт провайдера
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"` // "60s", "1m"
}

// ImageProcConfig — настройки обработки изображений перед vision-моделью.
type ImageProcConfig struct {
	MaxWidth int   `yaml:"max_width"` // Ограничение по длинной стороне
	Quality  int   `yaml:"quality"`   // Качество JPEG
	MaxBytes int64 `yaml:"max_bytes"` // Лимит на скачиваемое вложение

	FetchTimeout time.Duration `yaml:"fetch_timeout"` // Таймаут HTTP клиента для вложений
	FetchRetries int           `yaml:"fetch_retries"` // Попыток на сетевые ошибки, 429 и 5xx
}

// ReplyConfig — настройки цикла ответа.
type ReplyConfig struct {
	Concurrency int           `yaml:"concurrency"` // Максимум одновременных описаний картинок
	Timeout     time.Duration `yaml:"timeout"`     // Таймаут на один цикл, 0 — без таймаута
	Visibility  string        `yaml:"visibility"`  // Видимость ответа
	Strict      bool          `yaml:"strict"`      // Ошибка вложения прерывает цикл
}

// HistoryConfig — настройки выгрузки диалогов.
type HistoryConfig struct {
	Limit        int    `yaml:"limit"`
	S3Prefix     string `yaml:"s3_prefix"`
	SkipExisting bool   `yaml:"skip_existing"` // Не выгружать беседы, уже лежащие в S3
}

// S3Config — настройки объектного хранилища. Необязательная секция.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроено ли хранилище.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// LogConfig — настройки логгера.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json или console
	Output string `yaml:"output"` // Путь к файлу, пусто — stderr
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug      bool   `yaml:"debug"`     // Писать трейсы циклов ответа в DebugDir
	DebugDir   string `yaml:"debug_dir"` // По умолчанию debug_logs
	PromptsDir string `yaml:"prompts_dir"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает содержимое config.yaml.
//
// os.ExpandEnv заменяет ${VAR} или $VAR на значение из окружения,
// затем применяются дефолты и валидация.
func Parse(raw []byte) (*AppConfig, error) {
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults заполняет незаданные поля.
func (c *AppConfig) applyDefaults() {
	if c.ImageProcessing.MaxWidth == 0 {
		c.ImageProcessing.MaxWidth = 1000
	}
	if c.ImageProcessing.Quality == 0 {
		c.ImageProcessing.Quality = 85
	}
	if c.ImageProcessing.MaxBytes == 0 {
		c.ImageProcessing.MaxBytes = 20 * 1024 * 1024
	}
	if c.ImageProcessing.FetchTimeout == 0 {
		c.ImageProcessing.FetchTimeout = 30 * time.Second
	}
	if c.ImageProcessing.FetchRetries == 0 {
		c.ImageProcessing.FetchRetries = 2
	}
	if c.Reply.Concurrency == 0 {
		c.Reply.Concurrency = 4
	}
	if c.Reply.Visibility == "" {
		c.Reply.Visibility = "direct"
	}
	if c.History.Limit == 0 {
		c.History.Limit = 100
	}
	if c.History.S3Prefix == "" {
		c.History.S3Prefix = "history"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.App.DebugDir == "" {
		c.App.DebugDir = "debug_logs"
	}
	if c.App.PromptsDir == "" {
		c.App.PromptsDir = "prompts"
	}
}

// Validate проверяет обязательные поля и ссылки на модели.
//
// Сервер и токен не проверяются: их можно передать флагами или ENV
// уже после загрузки файла (см. ValidateConnection).
func (c *AppConfig) Validate() error {
	if c.Models.Vision != "" {
		if _, ok := c.Models.Definitions[c.Models.Vision]; !ok {
			return fmt.Errorf("vision model '%s' is not defined in definitions", c.Models.Vision)
		}
	}
	if c.Models.Rewrite != "" {
		if _, ok := c.Models.Definitions[c.Models.Rewrite]; !ok {
			return fmt.Errorf("rewrite model '%s' is not defined in definitions", c.Models.Rewrite)
		}
	}
	for _, name := range c.Models.ReplyPool {
		if _, ok := c.Models.Definitions[name]; !ok {
			return fmt.Errorf("reply_pool model '%s' is not defined in definitions", name)
		}
	}
	if c.Reply.Concurrency < 0 {
		return fmt.Errorf("reply.concurrency must not be negative")
	}
	if c.ImageProcessing.Quality < 1 || c.ImageProcessing.Quality > 100 {
		return fmt.Errorf("image_processing.quality must be in 1..100, got %d", c.ImageProcessing.Quality)
	}
	return nil
}

// ValidateConnection проверяет настройки подключения к Mastodon.
// Вызывается после применения флагов и ENV.
func (c *AppConfig) ValidateConnection() error {
	if c.Mastodon.Server == "" {
		return fmt.Errorf("mastodon.server is required")
	}
	if c.Mastodon.AccessToken == "" {
		return fmt.Errorf("mastodon.access_token is required")
	}
	return nil
}

// GetModel возвращает определение модели по алиасу.
func (c *AppConfig) GetModel(name string) (ModelDef, bool) {
	m, ok := c.Models.Definitions[name]
	return m, ok
}
