package synthesis

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
	"slack-mock/internal/infra/metrics"
)

const (
	// DefaultUnreadClearDelay: пауза перед сбросом непрочитанных у открытого чата.
	DefaultUnreadClearDelay = 1500 * time.Millisecond
	// DefaultReplyTimeout ограничивает стриминг одного ответа ассистента.
	DefaultReplyTimeout = 60 * time.Second

	unavailableReply = "Sorry, I can't answer right now. Please try again in a moment."

	// maxExtraChats ограничивает число чатов вне каталога, открытых по запросу.
	maxExtraChats = 32
	maxChatIDLen  = 64
)

var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("slack-mock/messages"))

// MessageID возвращает стабильный идентификатор n-го сообщения чата.
func MessageID(chatID string, seq int) string {
	return uuid.NewSHA1(messageNamespace, []byte(fmt.Sprintf("%s:%d", chatID, seq))).String()
}

// Config: зависимости движка, которые подменяются в тестах и в main.
type Config struct {
	UnreadClearDelay time.Duration
	ReplyTimeout     time.Duration
	Clock            domain.Clock
	AfterFunc        domain.AfterFunc
	// Completer стримит ответ ассистента. nil: сразу используется Fallback.
	Completer domain.Completer
	// Fallback: локальный заготовленный ответ на случай, если модель недоступна.
	Fallback domain.Completer
}

// Snapshot: сериализуемый срез состояния для слоя представления.
type Snapshot struct {
	Messages domain.ChatMessages `json:"messages"`
	Unread   map[string]int      `json:"unread"`
	Selected string              `json:"selected"`
}

// Engine владеет сообщениями всех чатов, счётчиками непрочитанных и выбранным чатом.
// Безопасен для конкурентного использования; события публикуются после снятия блокировки.
type Engine struct {
	gen     *Generator
	catalog *Catalog
	dir     domain.Directory
	pub     domain.EventPublisher
	log     zerolog.Logger
	cfg     Config

	mu         sync.Mutex
	messages   domain.ChatMessages
	unread     map[string]int
	states     map[string]domain.ChatState
	budgets    map[string]*EmbedBudget
	seq        map[string]int
	fired      map[string]bool
	selected   string
	clearTimer domain.Stopper
	extra      int

	replies sync.WaitGroup
}

// NewEngine создаёт движок. pub может быть nil.
func NewEngine(dir domain.Directory, catalog *Catalog, gen *Generator, pub domain.EventPublisher, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.UnreadClearDelay <= 0 {
		cfg.UnreadClearDelay = DefaultUnreadClearDelay
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = domain.RealAfterFunc
	}
	return &Engine{
		gen:      gen,
		catalog:  catalog,
		dir:      dir,
		pub:      pub,
		log:      logger,
		cfg:      cfg,
		messages: make(domain.ChatMessages),
		unread:   make(map[string]int),
		states:   make(map[string]domain.ChatState),
		budgets:  make(map[string]*EmbedBudget),
		seq:      make(map[string]int),
		fired:    make(map[string]bool),
	}
}

// Init строит историю всех чатов каталога. Повторный вызов начинает сессию заново.
func (e *Engine) Init() {
	start := time.Now()
	e.mu.Lock()
	now := e.cfg.Clock()
	e.messages = make(domain.ChatMessages)
	e.unread = make(map[string]int)
	e.states = make(map[string]domain.ChatState)
	e.budgets = make(map[string]*EmbedBudget)
	e.seq = make(map[string]int)
	e.extra = 0
	total := 0
	for _, chat := range e.catalog.Chats() {
		budget := NewEmbedBudget(e.gen.Random())
		backlog := e.gen.Backlog(chat, budget, now)
		e.budgets[chat.ID] = budget
		e.seq[chat.ID] = 0
		e.unread[chat.ID] = 0
		e.messages[chat.ID] = make([]domain.Message, 0, len(backlog))
		for _, m := range backlog {
			e.appendLocked(chat.ID, m, domain.SourceBacklog)
		}
		total += len(backlog)
		switch {
		case e.gen.Scripted(chat.ID):
			e.states[chat.ID] = domain.ChatStateScriptExhausted
		case len(backlog) > 0:
			e.states[chat.ID] = domain.ChatStateBacklog
		default:
			e.states[chat.ID] = domain.ChatStateEmpty
		}
	}
	e.fired = make(map[string]bool)
	e.mu.Unlock()

	metrics.BacklogBuildSeconds.Observe(time.Since(start).Seconds())
	metrics.UnreadRatio.Set(0)
	e.log.Info().
		Int("chats", len(e.catalog.Chats())).
		Int("messages", total).
		Dur("took", time.Since(start)).
		Msg("synthesis: backlog built")
}

// ensureLocked открывает чат вне каталога: его история состоит из одного приветствия.
// false означает, что идентификатор не годится или лимит таких чатов исчерпан.
func (e *Engine) ensureLocked(chatID string) bool {
	if _, ok := e.messages[chatID]; ok {
		return true
	}
	if !validChatID(chatID) || e.extra >= maxExtraChats {
		return false
	}
	budget := NewEmbedBudget(e.gen.Random())
	e.budgets[chatID] = budget
	e.seq[chatID] = 0
	e.unread[chatID] = 0
	e.messages[chatID] = nil
	for _, m := range e.gen.BacklogFor(chatID, budget, e.cfg.Clock()) {
		e.appendLocked(chatID, m, domain.SourceBacklog)
	}
	e.states[chatID] = domain.ChatStateBacklog
	e.extra++
	e.log.Info().Str("chat", chatID).Msg("synthesis: unknown chat opened with greeting")
	return true
}

func validChatID(id string) bool {
	if id == "" || len(id) > maxChatIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// appendLocked присваивает сообщению id и время, дописывает его в чат и возвращает событие.
// История чата обрезается до последних Max сообщений генератора.
func (e *Engine) appendLocked(chatID string, msg domain.Message, source domain.MessageSource) domain.Event {
	msgs := e.messages[chatID]
	if n := len(msgs); n > 0 && msg.Timestamp.Before(msgs[n-1].Timestamp) {
		msg.Timestamp = msgs[n-1].Timestamp
	}
	e.seq[chatID]++
	msg.ID = MessageID(chatID, e.seq[chatID])
	msg.When = domain.FormatWhen(msg.Timestamp)
	msgs = append(msgs, msg)
	if limit := e.gen.Max(); len(msgs) > limit {
		n := copy(msgs, msgs[len(msgs)-limit:])
		clear(msgs[n:])
		msgs = msgs[:n]
	}
	e.messages[chatID] = msgs
	metrics.IncGenerated(string(source))

	out := msg.Clone()
	return domain.Event{
		Type:       domain.EventMessageAppended,
		ChatID:     chatID,
		Message:    &out,
		Source:     source,
		OccurredAt: e.cfg.Clock(),
	}
}

func (e *Engine) unreadEventLocked(chatID string) domain.Event {
	n := e.unread[chatID]
	return domain.Event{Type: domain.EventUnreadChanged, ChatID: chatID, Unread: &n, OccurredAt: e.cfg.Clock()}
}

func (e *Engine) updatedEventLocked(chatID string, msg domain.Message) domain.Event {
	out := msg.Clone()
	return domain.Event{Type: domain.EventMessageUpdated, ChatID: chatID, Message: &out, OccurredAt: e.cfg.Clock()}
}

func (e *Engine) markLiveLocked(chatID string) {
	if e.states[chatID] != domain.ChatStateScriptExhausted {
		e.states[chatID] = domain.ChatStateLive
	}
}

func (e *Engine) unreadRatioLocked() float64 {
	chats := e.catalog.Chats()
	if len(chats) == 0 {
		return 0
	}
	withUnread := 0
	for _, c := range chats {
		if e.unread[c.ID] > 0 {
			withUnread++
		}
	}
	return float64(withUnread) / float64(len(chats))
}

func (e *Engine) findLocked(chatID, msgID string) (int, error) {
	msgs, ok := e.messages[chatID]
	if !ok {
		return -1, domain.ErrChatNotFound
	}
	for i := range msgs {
		if msgs[i].ID == msgID {
			return i, nil
		}
	}
	return -1, domain.ErrMessageNotFound
}

func (e *Engine) publish(events ...domain.Event) {
	if e.pub == nil {
		return
	}
	for _, ev := range events {
		if err := e.pub.Publish(context.Background(), ev); err != nil {
			e.log.Warn().Err(err).Str("type", string(ev.Type)).Str("chat", ev.ChatID).Msg("synthesis: publish event failed")
		}
	}
}

// Select делает чат текущим и через UnreadClearDelay сбрасывает его непрочитанные.
// Подписчики узнают о смене из события chat.selected.
func (e *Engine) Select(chatID string) error {
	e.mu.Lock()
	if !e.ensureLocked(chatID) {
		e.mu.Unlock()
		return domain.ErrChatNotFound
	}
	e.selected = chatID
	if e.clearTimer != nil {
		e.clearTimer.Stop()
	}
	e.clearTimer = e.cfg.AfterFunc(e.cfg.UnreadClearDelay, func() { e.clearUnread(chatID) })
	ev := domain.Event{Type: domain.EventChatSelected, ChatID: chatID, OccurredAt: e.cfg.Clock()}
	e.mu.Unlock()

	e.publish(ev)
	return nil
}

// clearUnread обнуляет счётчик, только если чат всё ещё открыт. Повторный вызов ничего не меняет.
func (e *Engine) clearUnread(chatID string) {
	e.mu.Lock()
	if e.selected != chatID || e.unread[chatID] == 0 {
		e.mu.Unlock()
		return
	}
	e.unread[chatID] = 0
	ev := e.unreadEventLocked(chatID)
	ratio := e.unreadRatioLocked()
	e.mu.Unlock()

	metrics.UnreadRatio.Set(ratio)
	e.publish(ev)
}

// Selected возвращает идентификатор открытого чата.
func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// InjectRandom дописывает одно входящее сообщение в случайный неоткрытый чат.
// false означает, что подходящих чатов нет.
func (e *Engine) InjectRandom() (string, domain.Message, bool) {
	e.mu.Lock()
	viewer := e.dir.Viewer().Name
	var targets []domain.Chat
	for _, chat := range e.catalog.Chats() {
		if chat.ID == e.selected || e.states[chat.ID] == domain.ChatStateScriptExhausted {
			continue
		}
		if Eligible(chat, e.messages[chat.ID], viewer) {
			targets = append(targets, chat)
		}
	}
	if len(targets) == 0 {
		e.mu.Unlock()
		return "", domain.Message{}, false
	}
	chat := Pick(e.gen.Random(), targets)
	msg, ok := e.gen.Next(chat, e.messages[chat.ID], e.budgets[chat.ID], e.cfg.Clock(), viewer)
	if !ok {
		e.mu.Unlock()
		return "", domain.Message{}, false
	}
	appended := e.appendLocked(chat.ID, msg, domain.SourceInjector)
	e.unread[chat.ID]++
	e.markLiveLocked(chat.ID)
	unread := e.unreadEventLocked(chat.ID)
	ratio := e.unreadRatioLocked()
	out := appended.Message.Clone()
	e.mu.Unlock()

	metrics.UnreadRatio.Set(ratio)
	e.publish(appended, unread)
	return chat.ID, out, true
}

// AppendToSelected дописывает реплику собеседника в открытый чат без увеличения непрочитанных.
func (e *Engine) AppendToSelected() (domain.Message, bool) {
	e.mu.Lock()
	chat, ok := e.catalog.Chat(e.selected)
	if !ok || e.states[chat.ID] == domain.ChatStateScriptExhausted {
		e.mu.Unlock()
		return domain.Message{}, false
	}
	viewer := e.dir.Viewer().Name
	if chat.ID == e.catalog.AssistantChatID() || !Eligible(chat, e.messages[chat.ID], viewer) {
		e.mu.Unlock()
		return domain.Message{}, false
	}
	msg, ok := e.gen.Next(chat, e.messages[chat.ID], e.budgets[chat.ID], e.cfg.Clock(), viewer)
	if !ok {
		e.mu.Unlock()
		return domain.Message{}, false
	}
	appended := e.appendLocked(chat.ID, msg, domain.SourcePartner)
	e.markLiveLocked(chat.ID)
	out := appended.Message.Clone()
	e.mu.Unlock()

	e.publish(appended)
	return out, true
}

// Send публикует сообщение зрителя. В чате с ассистентом запускает потоковый ответ.
func (e *Engine) Send(ctx context.Context, chatID, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, domain.ErrEmptyText
	}
	e.mu.Lock()
	if !e.ensureLocked(chatID) {
		e.mu.Unlock()
		return domain.Message{}, domain.ErrChatNotFound
	}
	now := e.cfg.Clock()
	sent := e.appendLocked(chatID, domain.Message{
		Who:       e.dir.Viewer().Name,
		Text:      html.EscapeString(text),
		Timestamp: now,
	}, domain.SourceViewer)
	e.markLiveLocked(chatID)
	events := []domain.Event{sent}

	var replyID string
	if chatID == e.catalog.AssistantChatID() {
		placeholder := e.appendLocked(chatID, domain.Message{
			Who:       e.dir.Assistant().Name,
			Status:    e.dir.Assistant().Name + " is thinking…",
			Timestamp: now,
		}, domain.SourceAI)
		replyID = placeholder.Message.ID
		events = append(events, placeholder)
		e.replies.Add(1)
	}
	out := sent.Message.Clone()
	e.mu.Unlock()

	e.publish(events...)
	if replyID != "" {
		go e.streamReply(context.WithoutCancel(ctx), chatID, replyID, text)
	}
	return out, nil
}

func (e *Engine) streamReply(ctx context.Context, chatID, msgID, prompt string) {
	defer e.replies.Done()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ReplyTimeout)
	defer cancel()

	var b strings.Builder
	onFragment := func(fragment string) {
		b.WriteString(fragment)
		e.setText(chatID, msgID, b.String())
	}

	if e.cfg.Completer != nil {
		err := e.cfg.Completer.Stream(ctx, prompt, onFragment)
		if err == nil && b.Len() > 0 {
			return
		}
		if err != nil {
			e.log.Warn().Err(err).Str("chat", chatID).Msg("synthesis: assistant completion failed, using local reply")
		}
		if b.Len() > 0 {
			e.setText(chatID, msgID, "")
		}
		b.Reset()
	}
	if e.cfg.Fallback != nil {
		var err error
		if staged, ok := e.cfg.Fallback.(domain.StagedCompleter); ok {
			onStatus := func(status string) { e.setStatus(chatID, msgID, status) }
			err = staged.StreamStaged(ctx, prompt, onStatus, onFragment)
		} else {
			err = e.cfg.Fallback.Stream(ctx, prompt, onFragment)
		}
		if err != nil {
			e.log.Warn().Err(err).Str("chat", chatID).Msg("synthesis: local reply failed")
		}
	}
	if b.Len() == 0 {
		e.setText(chatID, msgID, unavailableReply)
	}
}

func (e *Engine) setText(chatID, msgID, text string) {
	e.mu.Lock()
	i, err := e.findLocked(chatID, msgID)
	if err != nil {
		e.mu.Unlock()
		return
	}
	e.messages[chatID][i].Text = text
	e.messages[chatID][i].Status = ""
	ev := e.updatedEventLocked(chatID, e.messages[chatID][i])
	e.mu.Unlock()

	e.publish(ev)
}

// setStatus меняет временный статус ответа, пока текст ещё пуст.
func (e *Engine) setStatus(chatID, msgID, status string) {
	e.mu.Lock()
	i, err := e.findLocked(chatID, msgID)
	if err != nil || e.messages[chatID][i].Text != "" {
		e.mu.Unlock()
		return
	}
	e.messages[chatID][i].Status = status
	ev := e.updatedEventLocked(chatID, e.messages[chatID][i])
	e.mu.Unlock()

	e.publish(ev)
}

// Wait дожидается завершения всех потоковых ответов ассистента.
func (e *Engine) Wait() {
	e.replies.Wait()
}

// ToggleReaction ставит или снимает реакцию зрителя.
func (e *Engine) ToggleReaction(chatID, msgID, emoji string) (domain.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return domain.Message{}, domain.ErrEmptyReaction
	}
	e.mu.Lock()
	i, err := e.findLocked(chatID, msgID)
	if err != nil {
		e.mu.Unlock()
		return domain.Message{}, err
	}
	msg := &e.messages[chatID][i]
	if msg.Reactions == nil {
		msg.Reactions = make(map[string]int)
	}
	if idx := indexOf(msg.Reacted, emoji); idx >= 0 {
		msg.Reacted = append(msg.Reacted[:idx], msg.Reacted[idx+1:]...)
		if msg.Reactions[emoji] <= 1 {
			delete(msg.Reactions, emoji)
		} else {
			msg.Reactions[emoji]--
		}
	} else {
		msg.Reacted = append(msg.Reacted, emoji)
		msg.Reactions[emoji]++
	}
	out := msg.Clone()
	ev := domain.Event{Type: domain.EventReactionChanged, ChatID: chatID, Message: &out, OccurredAt: e.cfg.Clock()}
	e.mu.Unlock()

	e.publish(ev)
	return out.Clone(), nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// ResolveAction нажимает кнопку: убирает все кнопки сообщения и дописывает подтверждение
// от имени зрителя. Повторное нажатие возвращает ErrActionNotFound.
func (e *Engine) ResolveAction(chatID, msgID, actionID string) (domain.Message, error) {
	e.mu.Lock()
	i, err := e.findLocked(chatID, msgID)
	if err != nil {
		e.mu.Unlock()
		return domain.Message{}, err
	}
	msg := &e.messages[chatID][i]
	var action *domain.Action
	for j := range msg.Actions {
		if msg.Actions[j].ID == actionID {
			a := msg.Actions[j]
			action = &a
			break
		}
	}
	if action == nil {
		e.mu.Unlock()
		return domain.Message{}, domain.ErrActionNotFound
	}
	msg.Actions = nil
	updated := e.updatedEventLocked(chatID, *msg)
	confirm := e.appendLocked(chatID, domain.Message{
		Who:       e.dir.Viewer().Name,
		Text:      action.ConfirmationText,
		Timestamp: e.cfg.Clock(),
	}, domain.SourceScript)
	events := []domain.Event{updated, confirm}
	out := confirm.Message.Clone()
	e.mu.Unlock()

	e.log.Info().Str("chat", chatID).Str("action", actionID).Msg("synthesis: action resolved")
	e.publish(events...)
	return out, nil
}

// Trigger проигрывает продолжение сценария по горячей клавише. Каждая срабатывает один раз за сессию.
func (e *Engine) Trigger(key string) ([]domain.Message, error) {
	s, ok := ScenarioByTrigger(e.gen.Scenarios(), key)
	if !ok {
		return nil, domain.ErrUnknownTrigger
	}
	e.mu.Lock()
	if e.fired[key] {
		e.mu.Unlock()
		return nil, domain.ErrTriggerUsed
	}
	if _, exists := e.messages[s.ChatID]; !exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("trigger %q: %w", key, domain.ErrChatNotFound)
	}
	e.fired[key] = true
	now := e.cfg.Clock()
	var events []domain.Event
	var out []domain.Message
	for i, m := range e.gen.FollowUp(s, now) {
		m.Timestamp = now.Add(time.Duration(i) * time.Second)
		ev := e.appendLocked(s.ChatID, m, domain.SourceScript)
		events = append(events, ev)
		out = append(out, ev.Message.Clone())
		if s.ChatID != e.selected {
			e.unread[s.ChatID]++
		}
	}
	if s.ChatID != e.selected {
		events = append(events, e.unreadEventLocked(s.ChatID))
	}
	ratio := e.unreadRatioLocked()
	e.mu.Unlock()

	metrics.UnreadRatio.Set(ratio)
	e.log.Info().Str("key", key).Str("chat", s.ChatID).Msg("synthesis: scenario triggered")
	e.publish(events...)
	return out, nil
}

// Snapshot возвращает глубокую копию сообщений и счётчиков.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := make(domain.ChatMessages, len(e.messages))
	for id, list := range e.messages {
		msgs[id] = cloneMessages(list)
	}
	return Snapshot{Messages: msgs, Unread: e.unreadCopyLocked(), Selected: e.selected}
}

// Messages возвращает копию сообщений чата. Чат вне каталога открывается с одним приветствием.
func (e *Engine) Messages(chatID string) ([]domain.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ensureLocked(chatID) {
		return nil, domain.ErrChatNotFound
	}
	return cloneMessages(e.messages[chatID]), nil
}

// UnreadCounts возвращает копию счётчиков непрочитанных.
func (e *Engine) UnreadCounts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unreadCopyLocked()
}

func (e *Engine) unreadCopyLocked() map[string]int {
	out := make(map[string]int, len(e.unread))
	for id, n := range e.unread {
		out[id] = n
	}
	return out
}

func cloneMessages(list []domain.Message) []domain.Message {
	out := make([]domain.Message, len(list))
	for i, m := range list {
		out[i] = m.Clone()
	}
	return out
}

// UnreadRatio: доля чатов, в которых есть непрочитанные.
func (e *Engine) UnreadRatio() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unreadRatioLocked()
}

// State возвращает стадию жизненного цикла чата.
func (e *Engine) State(chatID string) domain.ChatState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.states[chatID]; ok {
		return s
	}
	return domain.ChatStateEmpty
}

// ChatItems собирает проекцию боковой панели в порядке каталога.
func (e *Engine) ChatItems() []domain.ChatItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.cfg.Clock()
	assistant := e.dir.Assistant().Name
	items := make([]domain.ChatItem, 0, len(e.catalog.Chats()))
	for _, chat := range e.catalog.Chats() {
		item := domain.ChatItem{
			ID:        chat.ID,
			Name:      chat.Name,
			Type:      chat.Section,
			Unread:    e.unread[chat.ID],
			IsPrivate: chat.IsPrivate,
		}
		if chat.Kind == domain.ChatKindDM {
			item.Avatar = chat.Avatar
			item.IsOnline = chat.Name == assistant || hash32(chat.Name)%3 != 0
		}
		if list := e.messages[chat.ID]; len(list) > 0 {
			item.LastActivity = humanize.RelTime(list[len(list)-1].Timestamp, now, "ago", "from now")
		}
		items = append(items, item)
	}
	return items
}

// Chat возвращает описание чата из каталога.
func (e *Engine) Chat(chatID string) (domain.Chat, bool) {
	return e.catalog.Chat(chatID)
}
