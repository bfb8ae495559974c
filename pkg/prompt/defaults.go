package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

// Имена встроенных промптов.
const (
	ReplyPrompt   = "reply.yaml"
	RewritePrompt = "rewrite.yaml"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// LoadOrDefault загружает промпт {dir}/{name}.
//
// Если файла нет — возвращает встроенный промпт с тем же именем.
// Пустой dir означает только встроенные промпты.
func LoadOrDefault(dir, name string) (*PromptFile, error) {
	if dir != "" {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			pf, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load prompt from %s: %w", path, err)
			}
			return pf, nil
		}
	}

	data, err := defaults.ReadFile("defaults/" + name)
	if err != nil {
		return nil, fmt.Errorf("no built-in prompt %q: %w", name, err)
	}
	return Parse(data)
}
