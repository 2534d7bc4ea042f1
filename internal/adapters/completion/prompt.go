package completion

import (
	"fmt"
	"strings"

	"slack-mock/internal/domain"
)

// SystemPrompt описывает ассистенту компанию и формат ответа.
func SystemPrompt(company domain.Company, assistant, viewer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the AI assistant inside %s's team chat.", assistant, company.Name)
	if company.Description != "" {
		fmt.Fprintf(&b, " About the company: %s", company.Description)
	}
	if len(company.Topics) > 0 {
		fmt.Fprintf(&b, " The team mostly talks about %s.", strings.Join(company.Topics, ", "))
	}
	if tone := company.CommunicationStyle.Tone; tone != "" {
		fmt.Fprintf(&b, " Keep the tone %s.", strings.ToLower(tone))
	}
	fmt.Fprintf(&b, " You are talking to %s.", viewer)
	b.WriteString(" Answer in short HTML fragments using only <p>, <strong>, <em>, <ul>, <li> and <br/>. Do not wrap the answer in code fences.")
	return b.String()
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
