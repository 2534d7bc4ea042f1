package synthesis

import (
	"hash/fnv"
	"sort"

	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
)

// Catalog: все чаты рабочего пространства, собранные один раз из конфигурации.
type Catalog struct {
	chats       []domain.Chat
	index       map[string]int
	assistantID string
}

// NewCatalog строит каналы, личные чаты, групповые чаты и недостающие сценарные чаты.
func NewCatalog(dir domain.Directory, scenarios []Scenario, logger zerolog.Logger) *Catalog {
	c := &Catalog{index: make(map[string]int)}
	viewer := dir.Viewer()
	cast := NewCast(dir)
	cfg := dir.Channels()

	var humans []string
	for _, p := range dir.People() {
		if !p.IsAssistant() {
			humans = append(humans, p.Name)
		}
	}
	if !contains(humans, viewer.Name) {
		humans = append(humans, viewer.Name)
	}

	scenarioByID := make(map[string]Scenario, len(scenarios))
	for _, s := range scenarios {
		scenarioByID[s.ChatID] = s
	}

	addChannel := func(ch domain.Channel, section domain.ChatSection) {
		chat := domain.Chat{
			ID:          ch.ID,
			Name:        ch.Name,
			Kind:        domain.ChatKindChannel,
			Section:     section,
			Description: ch.Description,
			Topics:      ch.Topics,
			Themes:      cfg.MessageThemes[ch.ID],
			IsPrivate:   ch.IsPrivate,
			Broadcast:   ch.ID == BroadcastChatID,
		}
		switch s, scripted := scenarioByID[ch.ID]; {
		case scripted:
			chat.Participants = s.Cast(cast)
		case chat.Broadcast:
			chat.Participants = append([]string(nil), humans...)
		default:
			chat.Participants = channelMembers(ch.ID, humans, viewer.Name)
		}
		c.add(chat, logger)
	}
	for _, ch := range cfg.Starred {
		addChannel(ch, domain.SectionStarred)
	}
	for _, ch := range cfg.Public {
		addChannel(ch, domain.SectionChannel)
	}
	for _, ch := range cfg.Private {
		addChannel(ch, domain.SectionChannel)
	}

	for _, g := range cfg.GroupDMs {
		members := append([]string(nil), g.Members...)
		if !contains(members, viewer.Name) {
			members = append(members, viewer.Name)
		}
		c.add(domain.Chat{
			ID:           g.ID,
			Name:         g.Name,
			Kind:         domain.ChatKindGroupDM,
			Section:      domain.SectionDM,
			Participants: members,
		}, logger)
	}

	for _, s := range scenarios {
		if _, exists := c.index[s.ChatID]; exists {
			continue
		}
		c.add(domain.Chat{
			ID:           s.ChatID,
			Name:         s.Name,
			Kind:         s.Kind,
			Section:      s.Section,
			Participants: s.Cast(cast),
		}, logger)
	}

	for _, p := range dir.People() {
		if p.Name == viewer.Name {
			continue
		}
		id := DMChatID(p.Name)
		c.add(domain.Chat{
			ID:           id,
			Name:         p.Name,
			Kind:         domain.ChatKindDM,
			Section:      domain.SectionDM,
			Participants: []string{p.Name, viewer.Name},
			Avatar:       p.Avatar,
		}, logger)
		if p.IsAssistant() {
			c.assistantID = id
		}
	}
	if c.assistantID == "" {
		assistant := dir.Assistant()
		c.assistantID = DMChatID(assistant.Name)
		c.add(domain.Chat{
			ID:           c.assistantID,
			Name:         assistant.Name,
			Kind:         domain.ChatKindDM,
			Section:      domain.SectionDM,
			Participants: []string{assistant.Name, viewer.Name},
			Avatar:       assistant.Avatar,
		}, logger)
	}
	return c
}

func (c *Catalog) add(chat domain.Chat, logger zerolog.Logger) {
	if _, dup := c.index[chat.ID]; dup {
		logger.Warn().Str("chat", chat.ID).Msg("synthesis: duplicate chat id skipped")
		return
	}
	c.index[chat.ID] = len(c.chats)
	c.chats = append(c.chats, chat)
}

// DMChatID возвращает идентификатор личного чата с человеком.
func DMChatID(name string) string {
	return "dm-" + domain.Slug(name)
}

// channelMembers выбирает стабильное по хэшу подмножество из 4–7 человек плюс зритель.
func channelMembers(channelID string, humans []string, viewer string) []string {
	others := make([]string, 0, len(humans))
	for _, h := range humans {
		if h != viewer {
			others = append(others, h)
		}
	}
	size := 4 + int(hash32(channelID)%4)
	sort.SliceStable(others, func(i, j int) bool {
		return hash32(channelID+"/"+others[i]) < hash32(channelID+"/"+others[j])
	})
	if len(others) > size {
		others = others[:size]
	}
	return append(others, viewer)
}

func hash32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Chats возвращает чаты в порядке боковой панели.
func (c *Catalog) Chats() []domain.Chat {
	return c.chats
}

// Chat ищет чат по идентификатору.
func (c *Catalog) Chat(id string) (domain.Chat, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.Chat{}, false
	}
	return c.chats[i], true
}

// AssistantChatID возвращает идентификатор личного чата с AI-ассистентом.
func (c *Catalog) AssistantChatID() string {
	return c.assistantID
}
