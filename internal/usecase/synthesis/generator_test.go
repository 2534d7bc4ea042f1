package synthesis

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"slack-mock/internal/domain"
)

func checkBacklog(t *testing.T, chat domain.Chat, msgs []domain.Message) {
	t.Helper()
	if len(msgs) > DefaultMaxMessages {
		t.Fatalf("%s: ожидали не больше %d сообщений, получили %d", chat.ID, DefaultMaxMessages, len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		prev, cur := msgs[i-1], msgs[i]
		if len(chat.Participants) > 1 && prev.Who == cur.Who {
			t.Fatalf("%s: %s говорит дважды подряд на позиции %d", chat.ID, cur.Who, i)
		}
		if prev.Text == cur.Text {
			t.Fatalf("%s: повтор текста на позиции %d: %q", chat.ID, i, cur.Text)
		}
		if cur.Timestamp.Before(prev.Timestamp) {
			t.Fatalf("%s: время убывает на позиции %d", chat.ID, i)
		}
	}
}

func TestBacklogInvariants(t *testing.T) {
	gen, catalog, _ := newTestGenerator(7, Options{})
	for _, chat := range catalog.Chats() {
		budget := NewEmbedBudget(gen.Random())
		msgs := gen.Backlog(chat, budget, testNow)
		checkBacklog(t, chat, msgs)

		if gen.Scripted(chat.ID) {
			continue
		}
		if minimum := gen.MinMessages(chat); len(msgs) < minimum {
			t.Fatalf("%s: ожидали минимум %d сообщений, получили %d", chat.ID, minimum, len(msgs))
		}
		for _, m := range msgs {
			if wd := m.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
				t.Fatalf("%s: сообщение в выходной день %s", chat.ID, m.Timestamp)
			}
			if !m.Timestamp.Before(testNow) {
				t.Fatalf("%s: сообщение из будущего %s", chat.ID, m.Timestamp)
			}
			if !contains(chat.Participants, m.Who) {
				t.Fatalf("%s: автор %s не участник чата", chat.ID, m.Who)
			}
		}
		if budget.Total() > budget.Cap {
			t.Fatalf("%s: ссылок %d больше лимита %d", chat.ID, budget.Total(), budget.Cap)
		}
	}
}

func TestBacklogDMAlternation(t *testing.T) {
	gen, catalog, _ := newTestGenerator(11, Options{MinMessages: map[domain.ChatKind]int{domain.ChatKindDM: 40}})
	chat, ok := catalog.Chat(DMChatID("Alice Carlysle"))
	if !ok {
		t.Fatalf("ожидали личный чат с Alice Carlysle")
	}
	if !reflect.DeepEqual(chat.Participants, []string{"Alice Carlysle", "James McGill"}) {
		t.Fatalf("неожиданные участники: %v", chat.Participants)
	}
	msgs := gen.Backlog(chat, NewEmbedBudget(gen.Random()), testNow)
	if len(msgs) < 40 || len(msgs) > 200 {
		t.Fatalf("ожидали от 40 до 200 сообщений, получили %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Who == msgs[i-1].Who {
			t.Fatalf("личный чат должен чередоваться, позиция %d", i)
		}
	}
}

func TestBacklogTruncatesToMax(t *testing.T) {
	gen, catalog, _ := newTestGenerator(3, Options{
		Max:         25,
		MinMessages: map[domain.ChatKind]int{domain.ChatKindChannel: 60, domain.ChatKindGroupDM: 20, domain.ChatKindDM: 16},
	})
	chat, _ := catalog.Chat("itom-4412")
	msgs := gen.Backlog(chat, nil, testNow)
	if len(msgs) != 25 {
		t.Fatalf("ожидали 25 последних сообщений, получили %d", len(msgs))
	}
}

func TestBacklogDeterministic(t *testing.T) {
	build := func() domain.ChatMessages {
		gen, catalog, _ := newTestGenerator(99, Options{})
		out := make(domain.ChatMessages)
		for _, chat := range catalog.Chats() {
			out[chat.ID] = gen.Backlog(chat, NewEmbedBudget(gen.Random()), testNow)
		}
		return out
	}
	a, b := build(), build()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("одинаковый сид и часы должны давать одинаковую историю")
	}
}

func TestBacklogForUnknownChat(t *testing.T) {
	gen, _, _ := newTestGenerator(1, Options{})
	msgs := gen.BacklogFor("no-such-chat", nil, testNow)
	if len(msgs) != 1 || msgs[0].Text != Greeting {
		t.Fatalf("ожидали одно приветствие, получили %+v", msgs)
	}
}

func TestEmbedBudgetCommittedOnlyOnAccept(t *testing.T) {
	gen, _, _ := newTestGenerator(11, Options{})
	budget := &EmbedBudget{Cap: 3, Used: make(map[domain.EmbedType]int)}
	proposed := 0
	for i := 0; i < 200; i++ {
		linked, typ, ok := proposeEmbed("rollout looks good", "Acme", gen.vocab, budget, gen.Random())
		if !ok {
			if linked != "rollout looks good" {
				t.Fatalf("без ссылки текст не должен меняться: %q", linked)
			}
			continue
		}
		proposed++
		if typ == "" || !strings.Contains(linked, "http") {
			t.Fatalf("ожидали ссылку с типом, получили %q (%q)", linked, typ)
		}
	}
	if proposed == 0 {
		t.Fatalf("за 200 попыток ожидали хотя бы одно предложение ссылки")
	}
	if budget.Total() != 0 {
		t.Fatalf("предложение не должно тратить бюджет, потрачено %d", budget.Total())
	}

	budget.commit(domain.EmbedTypes[0])
	budget.commit(domain.EmbedTypes[0])
	budget.commit(domain.EmbedTypes[0])
	for i := 0; i < 50; i++ {
		if _, _, ok := proposeEmbed("rollout looks good", "Acme", gen.vocab, budget, gen.Random()); ok {
			t.Fatalf("исчерпанный бюджет не должен предлагать ссылки")
		}
	}
}

func TestBacklogAttachesFiles(t *testing.T) {
	gen, catalog, dir := newTestGenerator(5, Options{})
	files := 0
	for _, chat := range catalog.Chats() {
		for _, m := range gen.Backlog(chat, NewEmbedBudget(gen.Random()), testNow) {
			for _, f := range m.Files {
				files++
				if f.UploadedBy != m.Who {
					t.Fatalf("%s: файл %s приложил %s, а сообщение от %s", chat.ID, f.Name, f.UploadedBy, m.Who)
				}
				if m.Who == dir.Assistant().Name {
					t.Fatalf("%s: ассистент не прикладывает файлы", chat.ID)
				}
				if f.Name == "" || f.Icon == "" || f.Color == "" || !strings.HasSuffix(f.Size, "B") {
					t.Fatalf("%s: неполная карточка файла %+v", chat.ID, f)
				}
			}
		}
	}
	if files == 0 {
		t.Fatalf("ожидали хотя бы одно вложение во всей истории")
	}
}

func TestAttachmentForDeterministic(t *testing.T) {
	chat := domain.Chat{ID: "platform", Kind: domain.ChatKindChannel}
	vocab := Vocabulary{Services: []string{"payments-api"}}
	hits := 0
	for i := 0; i < 500; i++ {
		at := testNow.Add(time.Duration(i) * time.Minute)
		a, okA := attachmentFor(chat, "Carol Diaz", "Rovo", at, vocab)
		b, okB := attachmentFor(chat, "Carol Diaz", "Rovo", at, vocab)
		if okA != okB || a != b {
			t.Fatalf("одинаковые входы дали разные вложения: %+v / %+v", a, b)
		}
		if okA {
			hits++
		}
		if _, ok := attachmentFor(chat, "Rovo", "Rovo", at, vocab); ok {
			t.Fatalf("ассистент не должен прикладывать файлы")
		}
	}
	if hits == 0 || hits > 500/fileEvery*3 {
		t.Fatalf("неправдоподобная частота вложений: %d из 500", hits)
	}
}

func TestScriptedBacklog(t *testing.T) {
	gen, catalog, _ := newTestGenerator(1, Options{})
	chat, ok := catalog.Chat(ChangeReviewChatID)
	if !ok {
		t.Fatalf("ожидали сценарный канал %s", ChangeReviewChatID)
	}
	a := gen.Backlog(chat, nil, testNow)
	b := gen.Backlog(chat, nil, testNow)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("сценарий должен проигрываться одинаково")
	}
	if len(a) != len(changeReviewScript(gen)) {
		t.Fatalf("ожидали %d реплик, получили %d", len(changeReviewScript(gen)), len(a))
	}
	last := a[len(a)-1]
	if want := testNow.Add(-20 * time.Minute); !last.Timestamp.Equal(want) {
		t.Fatalf("последняя реплика должна быть в %s, получили %s", want, last.Timestamp)
	}
	if !strings.Contains(a[2].Text, "confluence") {
		t.Fatalf("ожидали ссылку на confluence от ассистента: %q", a[2].Text)
	}

	hr, ok := catalog.Chat(HRBotChatID)
	if !ok {
		t.Fatalf("ожидали чат с HR-ботом в каталоге")
	}
	if hr.Kind != domain.ChatKindDM {
		t.Fatalf("HR-бот должен быть личным чатом")
	}
}

func changeReviewScript(g *Generator) []ScriptLine {
	s, _ := ScenarioByTrigger(g.Scenarios(), "p")
	return s.Script(g.Cast())
}

func TestNextSkipsViewer(t *testing.T) {
	gen, catalog, dir := newTestGenerator(5, Options{})
	chat, _ := catalog.Chat(DMChatID("Bob Jenkins"))
	history := []domain.Message{{Who: dir.Viewer().Name, Text: "hi", Timestamp: testNow.Add(-time.Hour)}}
	msg, ok := gen.Next(chat, history, nil, testNow, dir.Viewer().Name)
	if !ok {
		t.Fatalf("ожидали ответ собеседника")
	}
	if msg.Who != "Bob Jenkins" {
		t.Fatalf("ожидали Bob Jenkins, получили %s", msg.Who)
	}
	if Eligible(chat, append(history, msg), dir.Viewer().Name) {
		t.Fatalf("после реплики Bob в личном чате некому писать, кроме зрителя")
	}
}

func TestCalendar(t *testing.T) {
	cal, err := NewCalendar("")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	cases := []struct {
		day  time.Time
		want bool
	}{
		{time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC), false},
		{time.Date(2025, 3, 16, 23, 59, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := cal.IsWorkday(tc.day); got != tc.want {
			t.Fatalf("%s: ожидали %v, получили %v", tc.day.Weekday(), tc.want, got)
		}
	}

	fourDays, err := NewCalendar("0 9 * * 1-4")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if fourDays.IsWorkday(time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("пятница не рабочая при 1-4")
	}
	if _, err := NewCalendar("1-5"); err == nil {
		t.Fatalf("ожидали ошибку для неполного выражения")
	}
}

func TestRotationLeastRecent(t *testing.T) {
	rot := NewRotation([]domain.Message{{Who: "A"}, {Who: "B"}, {Who: "C"}})
	rng := NewRandom(1)
	if got := rot.Next(rng, []string{"A", "B", "C"}, "C"); got != "A" {
		t.Fatalf("ожидали A, получили %s", got)
	}
	if got := rot.Next(rng, []string{"C"}, "C"); got != "C" {
		t.Fatalf("единственный кандидат должен остаться, получили %s", got)
	}
	if got := rot.Next(rng, []string{"A", "B", "D"}, "A"); got != "D" {
		t.Fatalf("ожидали молчавшего D, получили %s", got)
	}
}

func TestDetectFlavor(t *testing.T) {
	cases := []struct {
		company domain.Company
		want    string
	}{
		{domain.Company{Industry: "Automotive manufacturing"}, "automotive"},
		{domain.Company{Description: "IT Operations and Service Management platform"}, "itsm"},
		{domain.Company{Industry: "Fintech"}, "tech"},
	}
	for _, tc := range cases {
		if got := DetectFlavor(tc.company, Flavors).Name(); got != tc.want {
			t.Fatalf("ожидали %s, получили %s", tc.want, got)
		}
	}
}

func TestCatalog(t *testing.T) {
	_, catalog, dir := newTestGenerator(1, Options{})
	general, ok := catalog.Chat("general")
	if !ok || !general.Broadcast {
		t.Fatalf("ожидали broadcast-канал general")
	}
	if len(general.Participants) != len(dir.People())-1 {
		t.Fatalf("в general должны быть все люди, получили %d", len(general.Participants))
	}
	platform, _ := catalog.Chat("platform")
	if n := len(platform.Participants); n < 2 || !contains(platform.Participants, dir.Viewer().Name) {
		t.Fatalf("канал должен включать зрителя, участники: %v", platform.Participants)
	}
	group, _ := catalog.Chat("group-1")
	if !contains(group.Participants, dir.Viewer().Name) {
		t.Fatalf("групповой чат должен включать зрителя")
	}
	if catalog.AssistantChatID() != "dm-rovo" {
		t.Fatalf("ожидали dm-rovo, получили %s", catalog.AssistantChatID())
	}
	if _, ok := catalog.Chat(DMChatID(dir.Viewer().Name)); ok {
		t.Fatalf("личного чата с самим собой быть не должно")
	}
}
