package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
)

func TestEngineInit(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	snap := engine.Snapshot()
	for _, chat := range engine.catalog.Chats() {
		msgs := snap.Messages[chat.ID]
		if len(msgs) == 0 {
			t.Fatalf("%s: ожидали историю", chat.ID)
		}
		seen := make(map[string]bool, len(msgs))
		for _, m := range msgs {
			if m.ID == "" || seen[m.ID] {
				t.Fatalf("%s: пустой или повторный id %q", chat.ID, m.ID)
			}
			seen[m.ID] = true
			if m.When == "" {
				t.Fatalf("%s: не заполнено поле when", chat.ID)
			}
		}
		if snap.Unread[chat.ID] != 0 {
			t.Fatalf("%s: после старта непрочитанных быть не должно", chat.ID)
		}
	}
	if engine.State(ChangeReviewChatID) != domain.ChatStateScriptExhausted {
		t.Fatalf("сценарный чат должен быть исчерпан")
	}
	if engine.State("platform") != domain.ChatStateBacklog {
		t.Fatalf("обычный чат должен быть в состоянии backlog_populated")
	}
	if MessageID("platform", 1) != snap.Messages["platform"][0].ID {
		t.Fatalf("id первого сообщения должен быть стабильным")
	}
}

func TestSelectClearsUnreadIdempotent(t *testing.T) {
	engine, timers, _ := newTestEngine(t, nil)
	if _, err := engine.Trigger("l"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := engine.UnreadCounts()[HRBotChatID]; got != 1 {
		t.Fatalf("ожидали 1 непрочитанное, получили %d", got)
	}

	for i := 0; i < 2; i++ {
		if err := engine.Select(HRBotChatID); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if got := engine.UnreadCounts()[HRBotChatID]; i == 0 && got != 1 {
			t.Fatalf("до истечения задержки счётчик не сбрасывается, получили %d", got)
		}
		timers.Fire()
		if got := engine.UnreadCounts()[HRBotChatID]; got != 0 {
			t.Fatalf("выбор %d: ожидали 0 непрочитанных, получили %d", i+1, got)
		}
	}
	if engine.UnreadRatio() != 0 {
		t.Fatalf("ожидали нулевую долю непрочитанных")
	}
}

func TestSelectSwitchCancelsPendingClear(t *testing.T) {
	engine, timers, _ := newTestEngine(t, nil)
	if _, err := engine.Trigger("l"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	_ = engine.Select(HRBotChatID)
	_ = engine.Select("platform")
	if n := timers.Fire(); n != 1 {
		t.Fatalf("ожидали один активный таймер, сработало %d", n)
	}
	if got := engine.UnreadCounts()[HRBotChatID]; got != 1 {
		t.Fatalf("ушли из чата до сброса, счётчик должен остаться 1, получили %d", got)
	}
	if err := engine.Select("no such chat"); !errors.Is(err, domain.ErrChatNotFound) {
		t.Fatalf("ожидали ErrChatNotFound, получили %v", err)
	}
}

func TestInjectRandomSkipsSelected(t *testing.T) {
	engine, _, pub := newTestEngine(t, nil)
	if err := engine.Select("general"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	injected := 0
	for i := 0; i < 30; i++ {
		chatID, msg, ok := engine.InjectRandom()
		if !ok {
			continue
		}
		injected++
		if chatID == "general" {
			t.Fatalf("открытый чат не должен получать инъекции")
		}
		if chatID == ChangeReviewChatID || chatID == HRBotChatID {
			t.Fatalf("сценарные чаты не должны получать инъекции")
		}
		if msg.Who == engine.dir.Viewer().Name {
			t.Fatalf("инъекция не может быть от имени зрителя")
		}
	}
	if injected == 0 {
		t.Fatalf("ожидали хотя бы одну инъекцию")
	}
	if engine.UnreadRatio() == 0 {
		t.Fatalf("после инъекций доля непрочитанных должна вырасти")
	}
	if pub.count(domain.EventUnreadChanged) != injected {
		t.Fatalf("ожидали %d событий unread.changed, получили %d", injected, pub.count(domain.EventUnreadChanged))
	}
	for _, chat := range engine.catalog.Chats() {
		msgs, _ := engine.Messages(chat.ID)
		checkBacklog(t, chat, msgs)
	}
}

func TestAppendToSelected(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	if _, ok := engine.AppendToSelected(); ok {
		t.Fatalf("без открытого чата собеседник молчит")
	}
	chatID := DMChatID("Carol Diaz")
	_ = engine.Select(chatID)
	if _, err := engine.Send(context.Background(), chatID, "hey, got a minute?"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	msg, ok := engine.AppendToSelected()
	if !ok {
		t.Fatalf("ожидали ответ собеседника")
	}
	if msg.Who != "Carol Diaz" {
		t.Fatalf("ожидали Carol Diaz, получили %s", msg.Who)
	}
	if engine.UnreadCounts()[chatID] != 0 {
		t.Fatalf("ответ в открытом чате не увеличивает непрочитанные")
	}
	if _, ok := engine.AppendToSelected(); ok {
		t.Fatalf("собеседник не должен писать дважды подряд")
	}
	if engine.State(chatID) != domain.ChatStateLive {
		t.Fatalf("ожидали состояние live")
	}
}

func TestSendEscapesAndValidates(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	if _, err := engine.Send(context.Background(), "platform", "   "); !errors.Is(err, domain.ErrEmptyText) {
		t.Fatalf("ожидали ErrEmptyText, получили %v", err)
	}
	if _, err := engine.Send(context.Background(), strings.Repeat("x", maxChatIDLen+1), "hi"); !errors.Is(err, domain.ErrChatNotFound) {
		t.Fatalf("ожидали ErrChatNotFound, получили %v", err)
	}
	msg, err := engine.Send(context.Background(), "platform", " <b>ship it</b> ")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if msg.Text != "&lt;b&gt;ship it&lt;/b&gt;" {
		t.Fatalf("текст должен быть экранирован: %q", msg.Text)
	}
	if msg.Who != engine.dir.Viewer().Name {
		t.Fatalf("автор должен быть зрителем")
	}
}

func TestSendToAssistantStreams(t *testing.T) {
	cases := []struct {
		name      string
		completer domain.Completer
		want      string
	}{
		{"модель", fakeCompleter{fragments: []string{"<p>Hello", ", world</p>"}}, "<p>Hello, world</p>"},
		{"ошибка модели", fakeCompleter{err: errors.New("boom")}, "Local reply"},
		{"без модели", nil, "Local reply"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, _, pub := newTestEngine(t, tc.completer)
			chatID := engine.catalog.AssistantChatID()
			if _, err := engine.Send(context.Background(), chatID, "summarize my day"); err != nil {
				t.Fatalf("не ожидали ошибку: %v", err)
			}
			engine.Wait()
			msgs, _ := engine.Messages(chatID)
			last := msgs[len(msgs)-1]
			if last.Who != engine.dir.Assistant().Name {
				t.Fatalf("последним должен быть ассистент, получили %s", last.Who)
			}
			if last.Text != tc.want {
				t.Fatalf("ожидали %q, получили %q", tc.want, last.Text)
			}
			if pub.count(domain.EventMessageUpdated) == 0 {
				t.Fatalf("ожидали события message.updated")
			}
		})
	}
}

func TestSendToAssistantStagedFallback(t *testing.T) {
	gen, catalog, dir := newTestGenerator(42, Options{})
	pub := &recordingPublisher{}
	engine := NewEngine(dir, catalog, gen, pub, Config{
		Clock:     func() time.Time { return testNow },
		AfterFunc: (&fakeTimers{}).AfterFunc,
		Completer: fakeCompleter{fragments: []string{"<p>half"}, err: errors.New("boom")},
		Fallback: stagedCompleter{
			fakeCompleter: fakeCompleter{fragments: []string{"<p>Peak 14", "</p>"}},
			statuses:      []string{"connecting…", "fetching error logs…"},
		},
	}, zerolog.Nop())
	engine.Init()

	chatID := catalog.AssistantChatID()
	if _, err := engine.Send(context.Background(), chatID, "show me error logs"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	engine.Wait()

	var statuses []string
	pub.mu.Lock()
	for _, ev := range pub.events {
		if ev.Message != nil && ev.Message.Who == dir.Assistant().Name && ev.Message.Status != "" {
			statuses = append(statuses, ev.Message.Status)
		}
	}
	pub.mu.Unlock()
	want := []string{dir.Assistant().Name + " is thinking…", "connecting…", "fetching error logs…"}
	if strings.Join(statuses, "|") != strings.Join(want, "|") {
		t.Fatalf("ожидали статусы %v, получили %v", want, statuses)
	}

	msgs, _ := engine.Messages(chatID)
	last := msgs[len(msgs)-1]
	if last.Text != "<p>Peak 14</p>" || last.Status != "" {
		t.Fatalf("ответ должен заменить частичный текст и снять статус: %+v", last)
	}
}

func TestToggleReaction(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	msgs, _ := engine.Messages("platform")
	target := msgs[0]
	before := target.Reactions["🎯"]

	msg, err := engine.ToggleReaction("platform", target.ID, "🎯")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if msg.Reactions["🎯"] != before+1 || len(msg.Reacted) != 1 {
		t.Fatalf("реакция не добавлена: %+v", msg)
	}
	msg, _ = engine.ToggleReaction("platform", target.ID, "🎯")
	if msg.Reactions["🎯"] != before || len(msg.Reacted) != 0 {
		t.Fatalf("реакция не снята: %+v", msg)
	}

	if _, err := engine.ToggleReaction("platform", "missing", "🎯"); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("ожидали ErrMessageNotFound, получили %v", err)
	}
	if _, err := engine.ToggleReaction("platform", target.ID, " "); !errors.Is(err, domain.ErrEmptyReaction) {
		t.Fatalf("ожидали ErrEmptyReaction, получили %v", err)
	}
}

func TestTriggerAndResolveActionOnce(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	follow, err := engine.Trigger("p")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(follow) != 1 || len(follow[0].Actions) != 2 {
		t.Fatalf("ожидали одно сообщение с двумя кнопками, получили %+v", follow)
	}
	if _, err := engine.Trigger("p"); !errors.Is(err, domain.ErrTriggerUsed) {
		t.Fatalf("ожидали ErrTriggerUsed, получили %v", err)
	}
	if _, err := engine.Trigger("x"); !errors.Is(err, domain.ErrUnknownTrigger) {
		t.Fatalf("ожидали ErrUnknownTrigger, получили %v", err)
	}

	approval := follow[0]
	confirm, err := engine.ResolveAction(ChangeReviewChatID, approval.ID, "approve")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if confirm.Who != engine.dir.Viewer().Name || !strings.Contains(confirm.Text, "Approved") {
		t.Fatalf("неожиданное подтверждение: %+v", confirm)
	}
	if _, err := engine.ResolveAction(ChangeReviewChatID, approval.ID, "request-changes"); !errors.Is(err, domain.ErrActionNotFound) {
		t.Fatalf("кнопки одноразовые, ожидали ErrActionNotFound, получили %v", err)
	}

	msgs, _ := engine.Messages(ChangeReviewChatID)
	for _, m := range msgs {
		if m.ID == approval.ID && len(m.Actions) != 0 {
			t.Fatalf("кнопки должны быть убраны после нажатия")
		}
	}
	checkBacklog(t, mustChat(t, engine, ChangeReviewChatID), msgs)
}

func TestChatItems(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	items := engine.ChatItems()
	if len(items) != len(engine.catalog.Chats()) {
		t.Fatalf("ожидали %d элементов, получили %d", len(engine.catalog.Chats()), len(items))
	}
	byID := make(map[string]domain.ChatItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	if byID["itom-4412"].Type != domain.SectionStarred {
		t.Fatalf("itom-4412 должен быть в избранном")
	}
	if !byID["leads"].IsPrivate {
		t.Fatalf("leads должен быть приватным")
	}
	if !byID["dm-rovo"].IsOnline {
		t.Fatalf("ассистент всегда онлайн")
	}
	if !strings.HasSuffix(byID["platform"].LastActivity, "ago") {
		t.Fatalf("ожидали относительное время, получили %q", byID["platform"].LastActivity)
	}
}

func TestUnknownChatOpensWithGreeting(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	msgs, err := engine.Messages("dm-someone-new")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != Greeting {
		t.Fatalf("ожидали одно приветствие, получили %+v", msgs)
	}
	if msgs[0].ID != MessageID("dm-someone-new", 1) {
		t.Fatalf("приветствие должно получить стабильный id")
	}
	again, _ := engine.Messages("dm-someone-new")
	if len(again) != 1 {
		t.Fatalf("повторное чтение не должно добавлять приветствие: %d", len(again))
	}
	if err := engine.Select("dm-someone-new"); err != nil {
		t.Fatalf("выбор неизвестного чата: %v", err)
	}
	if _, err := engine.Send(context.Background(), "dm-someone-new", "hello?"); err != nil {
		t.Fatalf("отправка в неизвестный чат: %v", err)
	}
	if got, _ := engine.Messages("dm-someone-new"); len(got) != 2 {
		t.Fatalf("ожидали приветствие и сообщение зрителя, получили %d", len(got))
	}
	if engine.State("dm-someone-new") != domain.ChatStateLive {
		t.Fatalf("после отправки чат должен стать live")
	}
	if len(engine.ChatItems()) != len(engine.catalog.Chats()) {
		t.Fatalf("чат вне каталога не должен попадать в боковую панель")
	}
}

func TestUnknownChatsAreLimited(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	for i := 0; i < maxExtraChats; i++ {
		if _, err := engine.Messages(fmt.Sprintf("extra-%d", i)); err != nil {
			t.Fatalf("чат %d: не ожидали ошибку: %v", i, err)
		}
	}
	if _, err := engine.Messages("one-too-many"); !errors.Is(err, domain.ErrChatNotFound) {
		t.Fatalf("ожидали ErrChatNotFound после лимита, получили %v", err)
	}
	engine.Init()
	if _, err := engine.Messages("one-too-many"); err != nil {
		t.Fatalf("Init должен сбрасывать лимит: %v", err)
	}
	if _, ok := engine.Snapshot().Messages["extra-0"]; ok {
		t.Fatalf("Init должен убирать чаты прошлой сессии")
	}
}

func TestLiveHistoryIsBounded(t *testing.T) {
	const limit = 20
	gen, catalog, dir := newTestGenerator(42, Options{Max: limit})
	engine := NewEngine(dir, catalog, gen, nil, Config{
		Clock:     func() time.Time { return testNow },
		AfterFunc: (&fakeTimers{}).AfterFunc,
	}, zerolog.Nop())
	engine.Init()

	injected := 0
	for i := 0; i < 600; i++ {
		if _, _, ok := engine.InjectRandom(); ok {
			injected++
		}
	}
	if injected < limit {
		t.Fatalf("ожидали заметное число вставок, получили %d", injected)
	}
	for id, msgs := range engine.Snapshot().Messages {
		if len(msgs) > limit {
			t.Fatalf("%s: история выросла до %d при пределе %d", id, len(msgs), limit)
		}
		seen := make(map[string]bool, len(msgs))
		for _, m := range msgs {
			if seen[m.ID] {
				t.Fatalf("%s: повторный id после обрезки", id)
			}
			seen[m.ID] = true
		}
	}
}

func mustChat(t *testing.T, e *Engine, id string) domain.Chat {
	t.Helper()
	chat, ok := e.Chat(id)
	if !ok {
		t.Fatalf("чат %s не найден", id)
	}
	return chat
}
