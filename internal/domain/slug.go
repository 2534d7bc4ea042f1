package domain

import "strings"

// Slug приводит имя к виду для файлов и идентификаторов: нижний регистр, пробельные
// промежутки в дефис, всё кроме [a-z0-9-] отбрасывается.
func Slug(name string) string {
	joined := strings.Join(strings.Fields(strings.ToLower(name)), "-")
	var b strings.Builder
	for _, r := range joined {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
