package models

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// ErrEmptyPool — в пуле нет ни одной модели.
var ErrEmptyPool = errors.New("model pool is empty")

// Pool — набор моделей, из которого для каждого ответа случайно
// выбирается одна. Состав пула задаётся конфигом (models.reply_pool).
type Pool struct {
	mu      sync.Mutex
	entries []ModelEntry
	rnd     *rand.Rand
}

// NewPool собирает пул из реестра по списку имён.
//
// rnd можно передать с фиксированным seed для тестов; nil — случайный источник.
func NewPool(registry *Registry, names []string, rnd *rand.Rand) (*Pool, error) {
	if len(names) == 0 {
		return nil, ErrEmptyPool
	}

	entries := make([]ModelEntry, 0, len(names))
	for _, name := range names {
		entry, err := registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("reply pool: %w", err)
		}
		entries = append(entries, entry)
	}

	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Pool{entries: entries, rnd: rnd}, nil
}

// Select — чистая функция выбора: элемент пула по результату броска.
// draw приводится к диапазону [0, len(pool)).
func Select[T any](pool []T, draw int) (T, error) {
	var zero T
	if len(pool) == 0 {
		return zero, ErrEmptyPool
	}
	idx := draw % len(pool)
	if idx < 0 {
		idx += len(pool)
	}
	return pool[idx], nil
}

// Pick равновероятно выбирает модель из пула.
func (p *Pool) Pick() (ModelEntry, error) {
	p.mu.Lock()
	draw := p.rnd.IntN(len(p.entries))
	p.mu.Unlock()

	return Select(p.entries, draw)
}

// Names возвращает имена моделей пула в порядке конфига.
func (p *Pool) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.Name
	}
	return names
}
