package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultViewerName используется, если в people.json нет записи с me: true.
	DefaultViewerName = "James McGill"
	// DefaultAssistantName используется, если в people.json нет AI-ассистента.
	DefaultAssistantName = "Rovo"
	// RoleAIAssistant помечает персону AI-ассистента.
	RoleAIAssistant = "AI Assistant"
)

// Person описывает вымышленного сотрудника демо-компании.
type Person struct {
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	Initials   string `json:"initials,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Country    string `json:"country,omitempty"`
	Role       string `json:"role,omitempty"`
	Me         bool   `json:"me,omitempty"`
	EmojiHeavy bool   `json:"emoji-heavy,omitempty"`
	Verbose    bool   `json:"verbose,omitempty"`
}

// IsAssistant сообщает, является ли персона AI-ассистентом.
func (p Person) IsAssistant() bool {
	return p.Role == RoleAIAssistant
}

// CommunicationStyle описывает тон общения в компании.
type CommunicationStyle struct {
	Tone           string   `json:"tone,omitempty"`
	Formality      string   `json:"formality,omitempty"`
	CommonPatterns []string `json:"commonPatterns,omitempty"`
}

// Company описывает профиль демо-компании.
type Company struct {
	Name               string             `json:"name"`
	Logo               string             `json:"logo,omitempty"`
	LogoInitials       string             `json:"logoInitials,omitempty"`
	Description        string             `json:"description,omitempty"`
	Industry           string             `json:"industry,omitempty"`
	CompanySize        string             `json:"companySize,omitempty"`
	Topics             []string           `json:"topics,omitempty"`
	CommunicationStyle CommunicationStyle `json:"communicationStyle,omitempty"`
}

// Theme описывает визуальную тему интерфейса. Сервис отдаёт её как есть.
type Theme struct {
	Name   string            `json:"name"`
	Colors map[string]string `json:"colors"`
}

// Channel описывает статический канал из channel-config.json.
type Channel struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	IsPrivate   bool     `json:"isPrivate,omitempty"`
}

// GroupDM описывает групповой личный чат.
type GroupDM struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// ThemeLine: заготовленная реплика канала. В JSON допускается строка или объект {who, text}.
type ThemeLine struct {
	Who  string `json:"who,omitempty"`
	Text string `json:"text"`
}

// UnmarshalJSON принимает как строку, так и объект.
func (t *ThemeLine) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*t = ThemeLine{Text: text}
		return nil
	}
	type plain ThemeLine
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("message theme: %w", err)
	}
	*t = ThemeLine(obj)
	return nil
}

// ChannelConfig описывает топологию каналов.
type ChannelConfig struct {
	Starred       []Channel              `json:"starred"`
	Public        []Channel              `json:"public"`
	Private       []Channel              `json:"private"`
	MessageThemes map[string][]ThemeLine `json:"messageThemes,omitempty"`
	GroupDMs      []GroupDM              `json:"groupDMs"`
}

// ChatKind различает каналы, личные и групповые чаты.
type ChatKind string

const (
	ChatKindChannel ChatKind = "channel"
	ChatKindDM      ChatKind = "dm"
	ChatKindGroupDM ChatKind = "groupdm"
)

// ChatSection: раздел боковой панели, в котором отображается чат.
type ChatSection string

const (
	SectionStarred ChatSection = "starred"
	SectionChannel ChatSection = "channel"
	SectionDM      ChatSection = "dm"
)

// Chat: внутреннее описание чата, собранное из конфигурации.
type Chat struct {
	ID           string
	Name         string
	Kind         ChatKind
	Section      ChatSection
	Description  string
	Topics       []string
	Themes       []ThemeLine
	Participants []string
	IsPrivate    bool
	Broadcast    bool
	Avatar       string
}

// HighTraffic сообщает, относится ли чат к «шумным».
func (c Chat) HighTraffic() bool {
	if c.Broadcast || c.Section == SectionStarred {
		return true
	}
	id := strings.ToLower(c.ID)
	for _, marker := range []string{"incident", "alert", "on-call", "itom"} {
		if strings.Contains(id, marker) {
			return true
		}
	}
	return false
}

// ChatItem: проекция чата для боковой панели.
type ChatItem struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Type         ChatSection `json:"type"`
	Unread       int         `json:"unread"`
	Avatar       string      `json:"avatar,omitempty"`
	IsOnline     bool        `json:"isOnline,omitempty"`
	IsPrivate    bool        `json:"isPrivate,omitempty"`
	LastActivity string      `json:"lastActivity,omitempty"`
}

// ActionType: стиль кнопки действия.
type ActionType string

const (
	ActionPrimary   ActionType = "primary"
	ActionSecondary ActionType = "secondary"
)

// Action: одноразовая интерактивная кнопка в сообщении.
type Action struct {
	ID               string     `json:"id"`
	Label            string     `json:"label"`
	Type             ActionType `json:"type"`
	Emoji            string     `json:"emoji,omitempty"`
	ConfirmationText string     `json:"confirmationText"`
}

// Message: сообщение чата (SlackMsg).
type Message struct {
	ID        string           `json:"id"`
	Who       string           `json:"who"`
	Text      string           `json:"text"`
	When      string           `json:"when"`
	Timestamp time.Time        `json:"ts"`
	Reactions map[string]int   `json:"reactions,omitempty"`
	Reacted   []string         `json:"reacted,omitempty"`
	Actions   []Action         `json:"actions,omitempty"`
	Files     []FileAttachment `json:"files,omitempty"`
	// Status: временная строка «ассистент думает…» до первого фрагмента ответа.
	Status    string           `json:"status,omitempty"`
}

// Clone возвращает глубокую копию сообщения.
func (m Message) Clone() Message {
	out := m
	if m.Reactions != nil {
		out.Reactions = make(map[string]int, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = v
		}
	}
	if m.Reacted != nil {
		out.Reacted = append([]string(nil), m.Reacted...)
	}
	if m.Actions != nil {
		out.Actions = append([]Action(nil), m.Actions...)
	}
	if m.Files != nil {
		out.Files = append([]FileAttachment(nil), m.Files...)
	}
	return out
}

// ChatMessages: сообщения по идентификатору чата, от старых к новым.
type ChatMessages map[string][]Message

// ChatState: стадия жизненного цикла списка сообщений чата.
type ChatState string

const (
	ChatStateEmpty           ChatState = "empty"
	ChatStateBacklog         ChatState = "backlog_populated"
	ChatStateLive            ChatState = "live"
	ChatStateScriptExhausted ChatState = "script_exhausted"
)

// FormatWhen форматирует время сообщения так, как его показывает интерфейс.
func FormatWhen(ts time.Time) string {
	return ts.Format("3:04 PM")
}
