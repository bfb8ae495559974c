// Package models предоставляет централизованный реестр LLM провайдеров
// и пул моделей для ответов.
//
// Реестр заполняется из config.yaml при старте; пул выбирает модель
// для каждого цикла ответа равновероятно.
package models

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ilkoid/nerobot/pkg/config"
	"github.com/ilkoid/nerobot/pkg/factory"
	"github.com/ilkoid/nerobot/pkg/llm"
)

// Registry — потокобезопасное хранилище LLM провайдеров.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelEntry
}

// ModelEntry — провайдер с конфигурацией.
type ModelEntry struct {
	Name     string
	Provider llm.Provider
	Config   config.ModelDef
}

// NewRegistry создаёт новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]ModelEntry),
	}
}

// Register добавляет модель в реестр.
//
// Возвращает ошибку если модель с таким именем уже зарегистрирована.
func (r *Registry) Register(name string, modelDef config.ModelDef, provider llm.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[name]; exists {
		return fmt.Errorf("model '%s' already registered", name)
	}

	r.models[name] = ModelEntry{
		Name:     name,
		Provider: provider,
		Config:   modelDef,
	}
	return nil
}

// Get извлекает модель по имени.
func (r *Registry) Get(name string) (ModelEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[name]
	if !ok {
		return ModelEntry{}, fmt.Errorf("model '%s' not found in registry", name)
	}
	return entry, nil
}

// GetObjectGenerator извлекает модель со структурированным выводом.
func (r *Registry) GetObjectGenerator(name string) (llm.ObjectGenerator, error) {
	entry, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	gen, ok := entry.Provider.(llm.ObjectGenerator)
	if !ok {
		return nil, fmt.Errorf("model '%s' does not support structured output", name)
	}
	return gen, nil
}

// ListNames возвращает отсортированный список имён моделей.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig создаёт и заполняет реестр из конфигурации.
//
// Возвращает ошибку если хоть одна модель не инициализируется.
func NewRegistryFromConfig(cfg *config.AppConfig) (*Registry, error) {
	registry := NewRegistry()

	for name, modelDef := range cfg.Models.Definitions {
		provider, err := factory.NewLLMProvider(modelDef)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider for model '%s': %w", name, err)
		}

		if err := registry.Register(name, modelDef, provider); err != nil {
			return nil, fmt.Errorf("failed to register model '%s': %w", name, err)
		}
	}

	return registry, nil
}
