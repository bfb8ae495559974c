package conversation

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Блочные элементы: абзацы отделяются пустой строкой, остальные — переводом строки.
var (
	paragraphTags = map[string]bool{
		"p": true, "blockquote": true, "pre": true, "ul": true, "ol": true, "table": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	}
	lineTags = map[string]bool{
		"div": true, "li": true, "tr": true, "dt": true, "dd": true,
	}
	// Содержимое этих элементов выкидывается целиком, включая текст ссылки.
	skipTags = map[string]bool{
		"a": true, "script": true, "style": true,
	}
)

// maxBlankLines — сколько переводов строки подряд допускается в результате.
const maxBlankLines = 2

// Normalize превращает HTML поста в plain text для промпта.
//
// Переносы по ширине не вставляются, ссылки (<a>) выкидываются вместе
// с текстом, <br> даёт перевод строки, абзацы разделяются пустой строкой.
// Битая разметка не ошибка: возвращается то, что удалось разобрать.
// Переводы строк внутри текста сохраняются, поэтому функция идемпотентна
// на собственном выводе.
func Normalize(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	var w textWriter
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF или мусор в разметке — отдаём что накопили
			return w.String()

		case html.TextToken:
			if skip == 0 {
				w.writeText(string(z.Text()))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip == 0 {
				w.openOrClose(tag)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip == 0 && tag != "br" {
				w.openOrClose(tag)
			}
		}
	}
}

// textWriter накапливает текст и откладывает переводы строк до следующего
// фрагмента текста, чтобы не плодить их в начале и в конце.
type textWriter struct {
	sb      strings.Builder
	pending int
}

func (w *textWriter) openOrClose(tag string) {
	switch {
	case tag == "br":
		w.pending++
	case paragraphTags[tag]:
		w.breakAtLeast(2)
	case lineTags[tag]:
		w.breakAtLeast(1)
	}
}

func (w *textWriter) breakAtLeast(n int) {
	if w.pending < n {
		w.pending = n
	}
}

func (w *textWriter) writeText(s string) {
	for i, segment := range strings.Split(s, "\n") {
		if i > 0 {
			w.pending++
		}
		w.writeSegment(collapseSpaces(segment))
	}
}

func (w *textWriter) writeSegment(s string) {
	if s == "" || (s == " " && w.pending > 0) {
		return
	}

	if w.pending > 0 {
		if w.sb.Len() > 0 {
			w.sb.WriteString(strings.Repeat("\n", min(w.pending, maxBlankLines)))
		}
		w.pending = 0
	}

	out := w.sb.String()
	if len(out) == 0 || strings.HasSuffix(out, "\n") || strings.HasSuffix(out, " ") {
		s = strings.TrimLeft(s, " ")
	}
	w.sb.WriteString(s)
}

func (w *textWriter) String() string {
	lines := strings.Split(w.sb.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// collapseSpaces схлопывает любые пробельные последовательности в один пробел.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
