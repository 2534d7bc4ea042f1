package synthesis

import (
	"strconv"
	"strings"

	"slack-mock/internal/domain"
)

// Turn: всё, что стратегия знает о слоте сообщения.
type Turn struct {
	Chat     domain.Chat
	Speaker  domain.Person
	Partner  string
	Previous *domain.Message
	Company  domain.Company
	Vocab    Vocabulary
	Rng      *Random
}

// ContentStrategy генерирует текст реплики для чата одной категории.
type ContentStrategy interface {
	Name() string
	// Text возвращает кандидата. false означает, что стратегии нечего предложить.
	Text(t Turn) (string, bool)
}

// fill подставляет значения в плейсхолдеры шаблона. Порядок обхода фиксирован ради воспроизводимости.
func fill(tpl string, t Turn) string {
	if !strings.Contains(tpl, "{") {
		return tpl
	}
	v := t.Vocab
	resolvers := []struct {
		key string
		val func() string
	}{
		{"{service}", func() string { return Pick(t.Rng, v.Services) }},
		{"{metric}", func() string { return Pick(t.Rng, v.Metrics) }},
		{"{artifact}", func() string { return Pick(t.Rng, v.Artifacts) }},
		{"{milestone}", func() string { return Pick(t.Rng, v.Milestones) }},
		{"{ticket}", func() string { return v.TicketKey + "-" + strconv.Itoa(t.Rng.Range(1000, 9999)) }},
		{"{topic}", func() string { return topicOf(t) }},
		{"{partner}", func() string { return firstName(t.Partner) }},
		{"{channel}", func() string { return t.Chat.Name }},
		{"{company}", func() string { return t.Company.Name }},
		{"{n}", func() string { return strconv.Itoa(t.Rng.Range(2, 9)) }},
	}
	for _, r := range resolvers {
		for strings.Contains(tpl, r.key) {
			tpl = strings.Replace(tpl, r.key, r.val(), 1)
		}
	}
	return tpl
}

func topicOf(t Turn) string {
	if len(t.Chat.Topics) > 0 {
		return Pick(t.Rng, t.Chat.Topics)
	}
	if len(t.Company.Topics) > 0 {
		return Pick(t.Rng, t.Company.Topics)
	}
	return "the roadmap"
}

func firstName(name string) string {
	if name == "" {
		return "team"
	}
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

// pickFilled заполняет случайный шаблон. Совпадение с предыдущим текстом считается неудачей.
func pickFilled(t Turn, templates []string) (string, bool) {
	if len(templates) == 0 {
		return "", false
	}
	text := fill(Pick(t.Rng, templates), t)
	if t.Previous != nil && text == t.Previous.Text {
		return "", false
	}
	return text, true
}

// GenericStrategy: запасной генератор, опирается только на ротацию участников.
type GenericStrategy struct{}

var genericLines = []string{
	"Sounds good 👍",
	"Thanks for the update!",
	"Let me check and get back to you.",
	"Can we sync on this later today?",
	"+1, agreed.",
	"On it.",
	"Makes sense to me.",
	"Good call.",
	"I'll take a look after lunch.",
	"Noted, thanks!",
	"Let's discuss in standup tomorrow.",
	"Appreciate it 🙏",
	"Any blockers on your side?",
	"Looks good to me.",
	"Will do.",
	"Got it, thanks for flagging.",
}

// Greeting: единственное сообщение для неизвестного чата.
const Greeting = "Hey there 👋 This is the very beginning of the conversation."

func (GenericStrategy) Name() string { return "generic" }

// Text всегда возвращает строку, отличную от текста предыдущего сообщения.
func (GenericStrategy) Text(t Turn) (string, bool) {
	i := t.Rng.IntN(len(genericLines))
	text := genericLines[i]
	if t.Previous != nil && text == t.Previous.Text {
		text = genericLines[(i+1)%len(genericLines)]
	}
	return text, true
}

// TopicStrategy строит реплики каналов из описания, тем и messageThemes.
type TopicStrategy struct{}

var (
	topicTemplates = []string{
		"Quick update on {topic}: {service} is back to normal after this morning's blip.",
		"Has anyone looked at the {metric} numbers for {service} today?",
		"Heads up: {milestone} starts Monday. Please wrap up anything touching {service} before then.",
		"I've updated the {artifact} for {service}. Feedback welcome.",
		"{ticket} is ready for review, it covers the {topic} follow-ups we discussed.",
		"Seeing a small bump in {metric} on {service}. Keeping an eye on it.",
		"Thanks everyone for jumping on {topic} yesterday, great teamwork.",
		"Reminder: the {topic} sync moved to 3pm today.",
		"Can someone take a look at {ticket}? It's blocking the {milestone}.",
		"Rolled out the fix for {service}. {metric} is trending back down.",
		"Does anyone have context on why {service} paged overnight?",
		"Agenda for tomorrow's {topic} review is in the {artifact}.",
		"FYI {ticket} was closed, root cause was config drift on {service}.",
		"Draft {artifact} for the {milestone} is up, please add comments by Friday.",
		"{partner}, can you confirm the {topic} checklist is done for {service}?",
		"I'll take the action item on {topic} and report back.",
		"{service} has been stable for the last {n} hours.",
		"Pushing the {milestone} dry run by a day, new invite coming.",
		"Who owns {topic} going forward? Want to make sure it doesn't fall through the cracks.",
		"Nice work on {ticket}, {partner}!",
	}
	incidentTemplates = []string{
		"🔴 Alert firing: {metric} above threshold on {service}.",
		"Acknowledged, looking into {service} now.",
		"Rolled back the last deploy on {service}, monitoring.",
		"Impact seems limited to about {n}% of requests.",
		"Opened {ticket} to track the follow-up.",
		"Resolved ✅ {service} is healthy again. Post-mortem to follow.",
		"Who's on call for {service} this week?",
		"Looks like connection pool exhaustion on {service}, paging the DB team.",
		"Status page updated.",
		"{metric} is back under baseline for {service}.",
		"{partner}, can you grab the logs from the {service} nodes?",
		"Escalating to P2, customer-facing impact confirmed on {service}.",
		"Mitigation is in place, we'll keep the bridge open for {n} more minutes.",
	}
	broadcastTemplates = []string{
		"📣 All-hands is tomorrow at 10am. Agenda includes {milestone} and open Q&A.",
		"Congrats to everyone who shipped the {service} improvements this week! 🎉",
		"Reminder: please complete the annual security training by Friday.",
		"The {company} quarterly update deck is now posted.",
		"Welcome to our new teammates joining this month! 👋",
		"Office hours with leadership are on Thursday, bring your questions.",
		"Big thanks to the on-call folks for a quiet weekend 🙌",
		"We just crossed a major milestone on {topic}. Thank you all!",
		"Benefits enrollment closes next Friday, don't forget to review your options.",
		"Lunch and learn today at noon: {topic} deep dive.",
	}
)

func (TopicStrategy) Name() string { return "topic" }

func (TopicStrategy) Text(t Turn) (string, bool) {
	if len(t.Chat.Themes) > 0 && t.Rng.Chance(0.6) {
		lines := make([]domain.ThemeLine, 0, len(t.Chat.Themes))
		for _, l := range t.Chat.Themes {
			if l.Who == "" || l.Who == t.Speaker.Name {
				lines = append(lines, l)
			}
		}
		if len(lines) > 0 {
			if text, ok := pickFilled(t, []string{Pick(t.Rng, lines).Text}); ok {
				return text, true
			}
		}
	}
	switch {
	case t.Chat.Broadcast:
		return pickFilled(t, broadcastTemplates)
	case isIncidentChat(t.Chat):
		return pickFilled(t, incidentTemplates)
	default:
		return pickFilled(t, topicTemplates)
	}
}

func isIncidentChat(c domain.Chat) bool {
	id := strings.ToLower(c.ID)
	for _, marker := range []string{"incident", "alert", "on-call", "itom", "critical"} {
		if strings.Contains(id, marker) {
			return true
		}
	}
	return false
}

// RoleStrategy строит реплики личных и групповых чатов по роли говорящего.
type RoleStrategy struct{}

// RoleGroup: укрупнённая роль для выбора шаблонов.
type RoleGroup string

const (
	RoleEngineer  RoleGroup = "engineer"
	RoleDevOps    RoleGroup = "devops"
	RoleSRE       RoleGroup = "sre"
	RoleProduct   RoleGroup = "product"
	RoleManager   RoleGroup = "manager"
	RoleAssistant RoleGroup = "assistant"
	RoleOther     RoleGroup = "other"
)

// ClassifyRole сводит свободную строку роли к RoleGroup.
func ClassifyRole(role string) RoleGroup {
	r := strings.ToLower(role)
	switch {
	case r == strings.ToLower(domain.RoleAIAssistant):
		return RoleAssistant
	case strings.Contains(r, "sre"), strings.Contains(r, "reliability"):
		return RoleSRE
	case strings.Contains(r, "devops"), strings.Contains(r, "platform"), strings.Contains(r, "infrastructure"):
		return RoleDevOps
	case strings.Contains(r, "product"):
		return RoleProduct
	case strings.Contains(r, "manager"), strings.Contains(r, "head"), strings.Contains(r, "director"),
		strings.Contains(r, "lead"), strings.Contains(r, "vp"), strings.Contains(r, "chief"):
		return RoleManager
	case strings.Contains(r, "engineer"), strings.Contains(r, "developer"):
		return RoleEngineer
	default:
		return RoleOther
	}
}

var roleTemplates = map[RoleGroup][]string{
	RoleEngineer: {
		"Hey {partner}, got a sec to review my PR for {service}?",
		"I think I found the issue with {service}, it's a race in the retry logic.",
		"Pushed a fix for {ticket}, tests are green.",
		"Do you know who owns the {artifact} for {service}?",
		"Pairing on {ticket} this afternoon if you want to join.",
		"Quick q: are we still targeting {milestone} for the {service} changes?",
		"Left a few comments on your {artifact}, mostly nits.",
	},
	RoleDevOps: {
		"Pipeline for {service} is green again, it was a flaky runner.",
		"Rotating the certs on {service} tonight, expect a short blip.",
		"Terraform plan for the {service} scale-up is ready for your review.",
		"Disk usage on the {service} nodes is at {n}0%, I'll add capacity.",
		"Deploy of {service} finished, all health checks passing.",
		"Can you approve the change window for {service} on Saturday?",
	},
	RoleSRE: {
		"Error budget for {service} is at {n}0%, we should slow down risky changes.",
		"Can we add {service} to the next game day?",
		"I drafted the {artifact} for last week's incident, can you take a look?",
		"SLO dashboard for {service} now has the {metric} panel.",
		"On-call handover: quiet night, one page on {service} that self-resolved.",
	},
	RoleProduct: {
		"Customers keep asking about {topic}, can we chat about priorities?",
		"Updated the roadmap, {milestone} moved to next quarter.",
		"Can you share the {metric} trend for {service}? Need it for the review.",
		"Drafted the {artifact} for {milestone}, would love your input.",
		"Beta feedback on {service} is really positive so far 🙌",
	},
	RoleManager: {
		"Can we move our 1:1 to Thursday?",
		"Great job on {topic} this week, leadership noticed.",
		"Let's make sure {milestone} has an owner on each team.",
		"I need a short status on {service} for the exec update by EOD.",
		"Headcount for next quarter is approved, let's talk hiring plan.",
		"How are you feeling about the {milestone} timeline?",
	},
	RoleAssistant: {
		"Here's your morning digest: {n} new incidents, 2 changes awaiting approval, and {ticket} was resolved.",
		"I summarized yesterday's discussion on {topic}: the team agreed to prioritize {service}.",
		"Reminder: the {milestone} checklist has {n} open items.",
		"I drafted a status update for {service}. Want me to post it?",
		"{metric} for {service} is within target for the last 7 days.",
	},
	RoleOther: {
		"Hi {partner}! Do you have a minute today?",
		"Thanks for the help earlier!",
		"Can you send me the latest {artifact}?",
		"Following up on {topic}, any updates?",
		"Sounds good, let's sync tomorrow.",
	},
}

func (RoleStrategy) Name() string { return "role" }

func (RoleStrategy) Text(t Turn) (string, bool) {
	group := ClassifyRole(t.Speaker.Role)
	if t.Speaker.IsAssistant() {
		group = RoleAssistant
	}
	return pickFilled(t, roleTemplates[group])
}
