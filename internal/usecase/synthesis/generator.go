package synthesis

import (
	"sort"
	"time"

	"slack-mock/internal/domain"
	"slack-mock/internal/infra/metrics"
)

const (
	// DefaultMaxMessages: сколько последних сообщений остаётся в истории чата.
	DefaultMaxMessages = 200
	// DefaultMaxAttempts: попыток основной стратегии до перехода на общий генератор.
	DefaultMaxAttempts = 5

	workdayStartHour = 9
	workdayEndHour   = 18
	maxWalkDays      = 730
)

// Options управляет генерацией истории.
type Options struct {
	Max         int
	MaxAttempts int
	MinMessages map[domain.ChatKind]int
	Calendar    *Calendar
}

// DefaultOptions возвращает настройки по умолчанию.
func DefaultOptions() Options {
	cal, _ := NewCalendar(DefaultWorkdays)
	return Options{
		Max:         DefaultMaxMessages,
		MaxAttempts: DefaultMaxAttempts,
		MinMessages: map[domain.ChatKind]int{
			domain.ChatKindChannel: 30,
			domain.ChatKindGroupDM: 20,
			domain.ChatKindDM:      16,
		},
		Calendar: cal,
	}
}

// Generator синтезирует сообщения чатов. Не потокобезопасен, защищается вызывающим.
type Generator struct {
	dir        domain.Directory
	catalog    *Catalog
	rng        *Random
	opts       Options
	vocab      Vocabulary
	cast       Cast
	generic    ContentStrategy
	strategies map[string]ContentStrategy
	scenarios  map[string]Scenario
	list       []Scenario
}

// NewGenerator связывает каталог, источник случайности и вкус компании.
func NewGenerator(dir domain.Directory, catalog *Catalog, scenarios []Scenario, rng *Random, flavor DomainFlavor, opts Options) *Generator {
	def := DefaultOptions()
	if opts.Max <= 0 {
		opts.Max = def.Max
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.MinMessages == nil {
		opts.MinMessages = def.MinMessages
	}
	if opts.Calendar == nil {
		opts.Calendar = def.Calendar
	}
	if flavor == nil {
		flavor = DetectFlavor(dir.Company(), Flavors)
	}
	g := &Generator{
		dir:        dir,
		catalog:    catalog,
		rng:        rng,
		opts:       opts,
		vocab:      flavor.Vocabulary(),
		cast:       NewCast(dir),
		generic:    GenericStrategy{},
		strategies: make(map[string]ContentStrategy),
		scenarios:  make(map[string]Scenario, len(scenarios)),
		list:       scenarios,
	}
	for _, s := range scenarios {
		g.scenarios[s.ChatID] = s
	}
	for _, chat := range catalog.Chats() {
		g.strategies[chat.ID] = g.selectStrategy(chat)
	}
	return g
}

func (g *Generator) selectStrategy(chat domain.Chat) ContentStrategy {
	if s, ok := g.scenarios[chat.ID]; ok {
		return scriptedStrategy{scenario: s}
	}
	if chat.Kind == domain.ChatKindChannel {
		return TopicStrategy{}
	}
	return RoleStrategy{}
}

// StrategyFor возвращает стратегию, выбранную для чата.
func (g *Generator) StrategyFor(chatID string) ContentStrategy {
	if s, ok := g.strategies[chatID]; ok {
		return s
	}
	return g.generic
}

// Scripted сообщает, проигрывает ли чат сценарий.
func (g *Generator) Scripted(chatID string) bool {
	_, ok := g.scenarios[chatID]
	return ok
}

// Scenarios возвращает сценарии, известные генератору.
func (g *Generator) Scenarios() []Scenario {
	return g.list
}

// Cast возвращает распределение ролей сценариев.
func (g *Generator) Cast() Cast {
	return g.cast
}

// Max возвращает предел длины истории одного чата.
func (g *Generator) Max() int {
	return g.opts.Max
}

// Random возвращает общий источник случайности.
func (g *Generator) Random() *Random {
	return g.rng
}

// MinMessages возвращает минимальный размер истории для чата.
func (g *Generator) MinMessages(chat domain.Chat) int {
	if s, ok := g.scenarios[chat.ID]; ok {
		return len(s.Script(g.cast))
	}
	return g.opts.MinMessages[chat.Kind]
}

// BacklogFor строит историю чата по идентификатору. Неизвестный чат получает одно приветствие.
func (g *Generator) BacklogFor(chatID string, budget *EmbedBudget, now time.Time) []domain.Message {
	chat, ok := g.catalog.Chat(chatID)
	if !ok {
		return []domain.Message{{Who: g.dir.Viewer().Name, Text: Greeting, Timestamp: now}}
	}
	return g.Backlog(chat, budget, now)
}

// Backlog строит историю чата за 2–4 рабочие недели до now.
func (g *Generator) Backlog(chat domain.Chat, budget *EmbedBudget, now time.Time) []domain.Message {
	if s, ok := g.scenarios[chat.ID]; ok {
		return g.scriptBacklog(s, now)
	}

	slots := g.planSlots(chat, now)
	rot := NewRotation(nil)
	out := make([]domain.Message, 0, len(slots))
	for _, at := range slots {
		var prev *domain.Message
		if len(out) > 0 {
			prev = &out[len(out)-1]
		}
		msg, ok := g.compose(chat, rot, prev, at, budget, "")
		if !ok {
			continue
		}
		rot.Observe(msg.Who)
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if len(out) > g.opts.Max {
		out = out[len(out)-g.opts.Max:]
	}
	return out
}

// planSlots идёт по дням назад от now, пропуская нерабочие, пока не пройдёт 2–4 недели
// и не наберётся минимум сообщений. Возвращает моменты в хронологическом порядке.
func (g *Generator) planSlots(chat domain.Chat, now time.Time) []time.Time {
	weeks := g.rng.Range(2, 4)
	today := startOfDay(now)
	horizon := today.AddDate(0, 0, -7*weeks)
	minimum := g.MinMessages(chat)

	var days [][]time.Time
	total := 0
	day := today
	for i := 0; i < maxWalkDays; i++ {
		if !day.After(horizon) && total >= minimum {
			break
		}
		if g.opts.Calendar.IsWorkday(day) {
			slots := g.daySlots(day, now, g.perDay(chat))
			if len(slots) > 0 {
				days = append(days, slots)
				total += len(slots)
			}
		}
		day = day.AddDate(0, 0, -1)
	}

	out := make([]time.Time, 0, total)
	for i := len(days) - 1; i >= 0; i-- {
		out = append(out, days[i]...)
	}
	return out
}

func (g *Generator) perDay(chat domain.Chat) int {
	switch {
	case chat.Kind == domain.ChatKindChannel && chat.HighTraffic():
		return g.rng.Range(4, 8)
	case chat.Kind == domain.ChatKindChannel:
		return g.rng.Range(2, 5)
	case chat.Kind == domain.ChatKindGroupDM:
		return g.rng.Range(1, 4)
	default:
		return g.rng.Range(1, 3)
	}
}

// daySlots раскладывает count сообщений по рабочим часам дня, не заходя за now.
func (g *Generator) daySlots(day, now time.Time, count int) []time.Time {
	start := day.Add(workdayStartHour * time.Hour)
	end := day.Add(workdayEndHour * time.Hour)
	if limit := now.Add(-time.Minute); end.After(limit) {
		end = limit
	}
	if !end.After(start) {
		return nil
	}
	slots := make([]time.Time, count)
	for i := range slots {
		slots[i] = start.Add(g.rng.Duration(0, end.Sub(start)).Truncate(time.Second))
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// scriptBacklog проигрывает сценарий так, что последняя реплика звучит за 20 минут до now.
func (g *Generator) scriptBacklog(s Scenario, now time.Time) []domain.Message {
	lines := s.Script(g.cast)
	var span time.Duration
	for _, l := range lines[1:] {
		span += l.Gap
	}
	at := now.Add(-20*time.Minute - span)
	out := make([]domain.Message, 0, len(lines))
	for i, l := range lines {
		if i > 0 {
			at = at.Add(l.Gap)
		}
		if len(out) > 0 && out[len(out)-1].Who == l.Who {
			continue
		}
		out = append(out, domain.Message{Who: l.Who, Text: l.Text, Timestamp: at, Actions: cloneActions(l.Actions)})
	}
	return out
}

// FollowUp возвращает реплики, которые сценарий добавляет по горячей клавише.
func (g *Generator) FollowUp(s Scenario, at time.Time) []domain.Message {
	lines := s.FollowUp(g.cast)
	out := make([]domain.Message, 0, len(lines))
	for _, l := range lines {
		at = at.Add(l.Gap)
		out = append(out, domain.Message{Who: l.Who, Text: l.Text, Timestamp: at, Actions: cloneActions(l.Actions)})
	}
	return out
}

func cloneActions(a []domain.Action) []domain.Action {
	if len(a) == 0 {
		return nil
	}
	return append([]domain.Action(nil), a...)
}

// Next создаёт одно живое сообщение для чата с уже существующей историей.
// exclude убирает участника из кандидатов (обычно зрителя для входящих сообщений).
func (g *Generator) Next(chat domain.Chat, history []domain.Message, budget *EmbedBudget, at time.Time, exclude string) (domain.Message, bool) {
	var prev *domain.Message
	if len(history) > 0 {
		prev = &history[len(history)-1]
		if at.Before(prev.Timestamp) {
			at = prev.Timestamp
		}
	}
	return g.compose(chat, NewRotation(history), prev, at, budget, exclude)
}

// Eligible сообщает, есть ли в чате участник, который может написать следующим.
func Eligible(chat domain.Chat, history []domain.Message, exclude string) bool {
	last := ""
	if len(history) > 0 {
		last = history[len(history)-1].Who
	}
	for _, p := range chat.Participants {
		if p != exclude && p != last {
			return true
		}
	}
	return false
}

func (g *Generator) compose(chat domain.Chat, rot *Rotation, prev *domain.Message, at time.Time, budget *EmbedBudget, exclude string) (domain.Message, bool) {
	candidates := make([]string, 0, len(chat.Participants))
	for _, p := range chat.Participants {
		if p != exclude {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return domain.Message{}, false
	}
	prevWho := ""
	if prev != nil {
		prevWho = prev.Who
	}
	who := rot.Next(g.rng, candidates, prevWho)
	if who == prevWho && len(chat.Participants) > 1 {
		return domain.Message{}, false
	}
	speaker, ok := g.dir.PersonByName(who)
	if !ok {
		speaker = domain.Person{Name: who}
	}

	turn := Turn{
		Chat:     chat,
		Speaker:  speaker,
		Partner:  g.partnerFor(chat, who, prevWho),
		Previous: prev,
		Company:  g.dir.Company(),
		Vocab:    g.vocab,
		Rng:      g.rng,
	}
	strategy := g.StrategyFor(chat.ID)
	text := ""
	for attempt := 0; attempt < g.opts.MaxAttempts; attempt++ {
		candidate, ok := strategy.Text(turn)
		if !ok {
			continue
		}
		candidate = embellishTraits(candidate, speaker, g.vocab, g.rng)
		if prev != nil && candidate == prev.Text {
			continue
		}
		text = candidate
		break
	}
	if text == "" {
		metrics.GenerationFallbacks.Inc()
		text, _ = g.generic.Text(turn)
	}
	if linked, t, ok := proposeEmbed(text, turn.Company.Name, g.vocab, budget, g.rng); ok && (prev == nil || linked != prev.Text) {
		budget.commit(t)
		text = linked
	}

	msg := domain.Message{
		Who:       who,
		Text:      text,
		Timestamp: at,
		Reactions: reactionsFor(text, chat, g.rng),
	}
	if file, ok := attachmentFor(chat, who, g.dir.Assistant().Name, at, g.vocab); ok {
		msg.Files = []domain.FileAttachment{file}
	}
	return msg, true
}

// partnerFor выбирает, к кому обращается говорящий.
func (g *Generator) partnerFor(chat domain.Chat, who, prevWho string) string {
	if prevWho != "" && prevWho != who {
		return prevWho
	}
	for _, p := range chat.Participants {
		if p != who {
			return p
		}
	}
	return ""
}
