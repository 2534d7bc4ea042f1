package synthesis

import (
	"fmt"
	"strings"
	"unicode"

	"slack-mock/internal/domain"
)

var (
	emojiRun = []string{"🎉", "🚀", "🙌", "😄", "🔥", "💯", "✨", "👏", "😅", "🤞"}
	fillers  = []string{
		"Just to add some context, this came up in yesterday's sync as well.",
		"Happy to walk anyone through the details if that helps.",
		"I also double-checked the numbers against last week to be sure.",
		"Not urgent, but it would be great to close the loop before the weekend.",
		"Let me know if I'm missing anything here, I want to make sure we're aligned.",
	}
	defaultReactions = []string{"👍", "👀", "🙌", "💯", "😄", "❤️"}
	keywordReactions = []struct {
		keywords []string
		emoji    []string
	}{
		{[]string{"resolved", "fixed", "healthy", "approved", "green"}, []string{"✅", "🎉"}},
		{[]string{"thanks", "thank you", "appreciate"}, []string{"🙏", "❤️"}},
		{[]string{"deploy", "shipped", "launch", "rolled out", "release"}, []string{"🚀", "🎉"}},
		{[]string{"alert", "incident", "paged", "spike", "down", "p2"}, []string{"👀", "🔥"}},
		{[]string{"welcome", "congrats", "milestone"}, []string{"🎉", "👋"}},
	}
)

// EmbedBudget ограничивает число ссылок-карточек в одном чате и выравнивает типы.
type EmbedBudget struct {
	Cap  int
	Used map[domain.EmbedType]int
}

// NewEmbedBudget разыгрывает лимит 2–3 ссылки на чат.
func NewEmbedBudget(rng *Random) *EmbedBudget {
	return &EmbedBudget{Cap: rng.Range(2, 3), Used: make(map[domain.EmbedType]int)}
}

// Total возвращает число уже добавленных ссылок.
func (b *EmbedBudget) Total() int {
	n := 0
	for _, t := range domain.EmbedTypes {
		n += b.Used[t]
	}
	return n
}

// leastUsed выбирает наименее использованный тип, равные, случайно.
func (b *EmbedBudget) leastUsed(rng *Random) domain.EmbedType {
	var best []domain.EmbedType
	lowest := -1
	for _, t := range domain.EmbedTypes {
		n := b.Used[t]
		switch {
		case lowest < 0 || n < lowest:
			best = append(best[:0], t)
			lowest = n
		case n == lowest:
			best = append(best, t)
		}
	}
	return Pick(rng, best)
}

// embellishTraits добавляет черты персонажа: эмодзи, многословие, курсив, контекстную ссылку.
func embellishTraits(text string, speaker domain.Person, vocab Vocabulary, rng *Random) string {
	if speaker.EmojiHeavy {
		n := rng.Range(1, 3)
		run := make([]string, 0, n)
		for i := 0; i < n; i++ {
			run = append(run, Pick(rng, emojiRun))
		}
		text += " " + strings.Join(run, "")
	}
	if speaker.Verbose && rng.Chance(0.6) {
		text += " " + Pick(rng, fillers)
	}
	plain := !strings.Contains(text, "<") && !strings.Contains(text, "http")
	if plain && rng.Chance(0.08) {
		text = emphasize(text, rng)
	}
	if plain && rng.Chance(0.05) {
		service := Pick(rng, vocab.Services)
		text += fmt.Sprintf(" (dashboard: https://grafana.company.com/d/%s)", domain.Slug(service))
	}
	return text
}

// emphasize оборачивает одно длинное слово в <em>.
func emphasize(text string, rng *Random) string {
	words := strings.Split(text, " ")
	var idx []int
	for i, w := range words {
		if len(w) >= 5 && isPlainWord(w) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return text
	}
	i := Pick(rng, idx)
	words[i] = "<em>" + words[i] + "</em>"
	return strings.Join(words, " ")
}

func isPlainWord(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// reactionsFor разыгрывает реакции: в broadcast-канале всегда, иначе по важности канала и ключевым словам.
func reactionsFor(text string, chat domain.Chat, rng *Random) map[string]int {
	p := 0.15
	if chat.HighTraffic() {
		p = 0.3
	}
	lower := strings.ToLower(text)
	var preferred []string
	for _, kr := range keywordReactions {
		for _, kw := range kr.keywords {
			if strings.Contains(lower, kw) {
				preferred = append(preferred, kr.emoji...)
				break
			}
		}
	}
	if len(preferred) > 0 {
		p += 0.35
	}
	if chat.Broadcast || chat.ID == BroadcastChatID {
		p = 1
	}
	if !rng.Chance(p) {
		return nil
	}

	maxCount := len(chat.Participants) - 1
	if maxCount < 1 {
		maxCount = 1
	}
	if maxCount > 12 {
		maxCount = 12
	}
	out := make(map[string]int, 3)
	n := rng.Range(1, 3)
	for i := 0; i < n; i++ {
		pool := defaultReactions
		if i < len(preferred) && rng.Chance(0.7) {
			pool = preferred[i : i+1]
		}
		emoji := Pick(rng, pool)
		if _, dup := out[emoji]; dup {
			continue
		}
		out[emoji] = rng.Range(1, maxCount)
	}
	return out
}

var (
	linkTitles = map[domain.EmbedType][]string{
		domain.EmbedNotion:     {"Incident-Response-Runbook", "Q4-Roadmap-Planning", "Team-Onboarding-Checklist", "Service-Ownership-Map"},
		domain.EmbedFigma:      {"Design-System-v3", "Status-Page-Redesign", "Mobile-Onboarding-Flow", "Admin-Dashboard"},
		domain.EmbedConfluence: {"Change-Management-Process", "On-Call-Handbook", "Post-Mortem-Template", "Architecture-Overview"},
	}
	linkLeads = map[domain.EmbedType][]string{
		domain.EmbedNotion:     {"Notes are here:", "I wrote it up in Notion:"},
		domain.EmbedFigma:      {"Latest mocks:", "Updated the designs:"},
		domain.EmbedJira:       {"Tracking it in", "Ticket:"},
		domain.EmbedConfluence: {"Documented in", "Runbook:"},
		domain.EmbedLoom:       {"Recorded a quick walkthrough:", "Short video:"},
		domain.EmbedWorkday:    {"Submitted in Workday:", "Request is in Workday:"},
	}
)

// embedURL строит правдоподобную ссылку на внешний инструмент.
func embedURL(t domain.EmbedType, company string, vocab Vocabulary, rng *Random) string {
	slug := domain.Slug(company)
	if slug == "" {
		slug = "company"
	}
	switch t {
	case domain.EmbedNotion:
		return fmt.Sprintf("https://www.notion.so/%s/%s", slug, Pick(rng, linkTitles[t]))
	case domain.EmbedFigma:
		return fmt.Sprintf("https://www.figma.com/file/%s/%s", hexID(rng, 22), Pick(rng, linkTitles[t]))
	case domain.EmbedJira:
		return fmt.Sprintf("https://jira.%s.com/browse/%s-%d", slug, vocab.TicketKey, rng.Range(1000, 9999))
	case domain.EmbedConfluence:
		return fmt.Sprintf("https://confluence.%s.com/spaces/ENG/pages/%s", slug, Pick(rng, linkTitles[t]))
	case domain.EmbedLoom:
		return "https://www.loom.com/share/" + hexID(rng, 32)
	default:
		return fmt.Sprintf("https://wd5.myworkday.com/%s/d/inst/%d/rel-task.htmld", slug, rng.Range(10000, 99999))
	}
}

func hexID(rng *Random, n int) string {
	const digits = "0123456789abcdef"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[rng.IntN(len(digits))]
	}
	return string(b)
}

// proposeEmbed с вероятностью предлагает ссылку наименее использованного типа, пока не исчерпан лимит.
// Бюджет не меняется: вызывающий фиксирует тип через commit, когда текст принят.
func proposeEmbed(text, company string, vocab Vocabulary, budget *EmbedBudget, rng *Random) (string, domain.EmbedType, bool) {
	if budget == nil || budget.Total() >= budget.Cap || strings.Contains(text, "http") {
		return text, "", false
	}
	if !rng.Chance(0.12) {
		return text, "", false
	}
	t := budget.leastUsed(rng)
	return text + " " + Pick(rng, linkLeads[t]) + " " + embedURL(t, company, vocab, rng), t, true
}

func (b *EmbedBudget) commit(t domain.EmbedType) {
	b.Used[t]++
}
