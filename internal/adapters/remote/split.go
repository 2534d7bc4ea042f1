package remote

import "strings"

const messageLimit = 4096

// splitLines собирает строки в сообщения, не превышающие лимит Telegram.
// Строка длиннее лимита режется по рунам.
func splitLines(lines []string, limit int) []string {
	if limit <= 0 {
		limit = messageLimit
	}
	var (
		parts []string
		cur   []rune
	)
	flush := func() {
		if chunk := strings.Trim(string(cur), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		cur = cur[:0]
	}
	for _, line := range lines {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			cur = append(cur, runes[:limit]...)
			flush()
			runes = runes[limit:]
		}
		extra := len(runes)
		if len(cur) > 0 {
			extra++
		}
		if len(cur)+extra > limit {
			flush()
		}
		if len(cur) > 0 {
			cur = append(cur, '\n')
		}
		cur = append(cur, runes...)
	}
	flush()
	return parts
}
