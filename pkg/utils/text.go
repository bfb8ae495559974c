package utils

import (
	"strings"

	"github.com/muesli/reflow/truncate"
)

// Excerpt возвращает начало текста для логов: не больше width
// печатных колонок, переводы строк заменены пробелами.
func Excerpt(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return truncate.String(s, uint(width))
}
