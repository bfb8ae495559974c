package conversation

import (
	"strconv"
	"time"
)

// FormatTimestamp форматирует время как "July 4th 2025, 3:05:09 pm".
func FormatTimestamp(t time.Time) string {
	return t.Format("January") + " " + ordinal(t.Day()) + t.Format(" 2006, 3:04:05 pm")
}

// ordinal добавляет английский суффикс порядкового числительного.
func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
