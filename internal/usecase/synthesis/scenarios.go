package synthesis

import (
	"time"

	"slack-mock/internal/domain"
)

const (
	// ChangeReviewChatID: канал разбора изменения CHG-189.
	ChangeReviewChatID = "CHG-189"
	// HRBotChatID: личный чат с HR-ботом.
	HRBotChatID = "hr-bot"
	// HRBotName: имя HR-бота, его нет в people.json.
	HRBotName = "HR Bot"
	// BroadcastChatID: канал, в котором реакции ставятся всегда.
	BroadcastChatID = "general"
)

// ScriptLine: реплика заготовленного сценария.
type ScriptLine struct {
	Who     string
	Text    string
	Gap     time.Duration
	Actions []domain.Action
}

// Cast: распределение ролей сценариев между людьми компании.
type Cast struct {
	Viewer    string
	Assistant string
	Requester string
	Reviewer  string
	Approver  string
	Colleague string
}

// Scenario: чат, который проигрывает фиксированный сценарий ровно один раз.
type Scenario struct {
	ChatID     string
	Name       string
	Kind       domain.ChatKind
	Section    domain.ChatSection
	TriggerKey string
	Cast       func(c Cast) []string
	Script     func(c Cast) []ScriptLine
	FollowUp   func(c Cast) []ScriptLine
}

// NewCast подбирает исполнителей по ролям, не повторяя людей, пока есть выбор.
func NewCast(dir domain.Directory) Cast {
	viewer := dir.Viewer().Name
	used := map[string]bool{viewer: true}
	var humans []domain.Person
	for _, p := range dir.People() {
		if !p.IsAssistant() && p.Name != viewer {
			humans = append(humans, p)
		}
	}
	pick := func(groups ...RoleGroup) string {
		for _, g := range groups {
			for _, p := range humans {
				if !used[p.Name] && ClassifyRole(p.Role) == g {
					used[p.Name] = true
					return p.Name
				}
			}
		}
		for _, p := range humans {
			if !used[p.Name] {
				used[p.Name] = true
				return p.Name
			}
		}
		if len(humans) > 0 {
			return humans[0].Name
		}
		return viewer
	}
	return Cast{
		Viewer:    viewer,
		Assistant: dir.Assistant().Name,
		Requester: pick(RoleDevOps, RoleEngineer),
		Reviewer:  pick(RoleSRE, RoleEngineer),
		Approver:  pick(RoleManager),
		Colleague: pick(RoleEngineer, RoleProduct),
	}
}

// Scenarios: встроенные сценарии демо.
var Scenarios = []Scenario{
	{
		ChatID:     ChangeReviewChatID,
		Name:       "#CHG-189",
		Kind:       domain.ChatKindChannel,
		Section:    domain.SectionChannel,
		TriggerKey: "p",
		Cast: func(c Cast) []string {
			return []string{c.Requester, c.Reviewer, c.Approver, c.Assistant, c.Viewer}
		},
		Script: func(c Cast) []ScriptLine {
			return []ScriptLine{
				{Who: c.Requester, Text: "Submitted <strong>CHG-189</strong>: rolling upgrade of the payments-db cluster to PostgreSQL 16. Window is Saturday 02:00–04:00 UTC, rollback plan is attached."},
				{Who: c.Reviewer, Gap: 6 * time.Minute, Text: "Reviewed the runbook. Replica lag alerting is in place and we take a snapshot 30 minutes before the window."},
				{Who: c.Assistant, Gap: 2 * time.Minute, Text: "I put together the risk assessment: <strong>Risk: Medium</strong>, 3 dependent services, the last similar change succeeded. CAB notes are here: https://confluence.company.com/spaces/ITSM/pages/CHG-189-CAB-Review-Notes"},
				{Who: c.Approver, Gap: 9 * time.Minute, Text: "Thanks. The on-call rotation for Saturday is confirmed, no objections from my side."},
				{Who: c.Requester, Gap: 4 * time.Minute, Text: "@" + c.Viewer + " this needs your approval as change owner before CAB closes at 5pm."},
			}
		},
		FollowUp: func(c Cast) []ScriptLine {
			return []ScriptLine{
				{
					Who:  c.Assistant,
					Text: "<strong>Approval requested</strong> for CHG-189 (payments-db upgrade). All pre-checks passed and 2 of 3 approvers have signed off.",
					Actions: []domain.Action{
						{ID: "approve", Label: "Approve", Type: domain.ActionPrimary, Emoji: "✅", ConfirmationText: "✅ Approved CHG-189. The change is scheduled for Saturday 02:00 UTC."},
						{ID: "request-changes", Label: "Request changes", Type: domain.ActionSecondary, ConfirmationText: "✏️ Requested changes on CHG-189, " + c.Requester + " will update the rollback plan."},
					},
				},
			}
		},
	},
	{
		ChatID:     HRBotChatID,
		Name:       HRBotName,
		Kind:       domain.ChatKindDM,
		Section:    domain.SectionDM,
		TriggerKey: "l",
		Cast: func(c Cast) []string {
			return []string{HRBotName, c.Viewer}
		},
		Script: func(c Cast) []ScriptLine {
			return []ScriptLine{
				{Who: HRBotName, Text: "Hi " + firstName(c.Viewer) + " 👋 I'm your HR assistant. I can help with leave requests, expenses and policy questions."},
				{Who: c.Viewer, Gap: 3 * time.Minute, Text: "Thanks! What's my PTO balance?"},
				{Who: HRBotName, Gap: 10 * time.Second, Text: "You have <strong>12 days</strong> of PTO left this year. 3 days expire on December 31."},
				{Who: c.Viewer, Gap: time.Minute, Text: "Perfect, thank you!"},
			}
		},
		FollowUp: func(c Cast) []ScriptLine {
			return []ScriptLine{
				{
					Who: HRBotName,
					Text: "Two requests from " + c.Colleague + " need your review:<br/>• <strong>Annual leave</strong>, Nov 24–28 (5 days), no team calendar conflicts<br/>" +
						"• <strong>Expense EXP-2291</strong>, $418.20 for the team offsite dinner",
					Actions: []domain.Action{
						{ID: "approve", Label: "Approve both", Type: domain.ActionPrimary, Emoji: "✅", ConfirmationText: "✅ Approved the leave and expense EXP-2291 for " + c.Colleague + "."},
						{ID: "decline", Label: "Decline", Type: domain.ActionSecondary, ConfirmationText: "Declined both requests, I'll follow up with " + c.Colleague + " directly."},
					},
				},
			}
		},
	},
}

// ScenarioByTrigger ищет сценарий по горячей клавише.
func ScenarioByTrigger(scenarios []Scenario, key string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.TriggerKey == key {
			return s, true
		}
	}
	return Scenario{}, false
}

// scriptedStrategy отмечает чат как сценарный. Случайных реплик у него нет.
type scriptedStrategy struct {
	scenario Scenario
}

func (s scriptedStrategy) Name() string { return "scripted" }

func (s scriptedStrategy) Text(Turn) (string, bool) { return "", false }
