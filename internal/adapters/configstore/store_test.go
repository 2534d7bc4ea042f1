package configstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"slack-mock/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	ws, err := LoadDefaults(zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ws.Viewer().Name != "James McGill" {
		t.Fatalf("ожидали зрителя James McGill, получили %q", ws.Viewer().Name)
	}
	if !ws.Assistant().IsAssistant() {
		t.Fatalf("ожидали AI-ассистента, получили %+v", ws.Assistant())
	}
	if len(ws.Channels().Starred) == 0 || len(ws.Channels().GroupDMs) == 0 {
		t.Fatalf("ожидали каналы и групповые чаты по умолчанию")
	}
	for _, ch := range ws.Channels().Private {
		if !ch.IsPrivate {
			t.Fatalf("приватный канал %s без флага isPrivate", ch.ID)
		}
	}
	if ws.Theme().Name == "" {
		t.Fatalf("ожидали тему по умолчанию")
	}
	if _, ok := ws.PersonByName("Alice Carlysle"); !ok {
		t.Fatalf("ожидали найти Alice Carlysle")
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	people := `
- name: Ada Lovelace
  avatar: /assets/faces/ada-lovelace.jpg
  me: true
- name: Grace Hopper
  avatar: /assets/faces/grace-hopper.jpg
  role: SRE
  emoji-heavy: true
`
	channels := `
starred: []
public:
  - id: general
    name: "#general"
private: []
groupDMs:
  - id: g1
    name: Grace, Ghost
    members: [Grace Hopper, Ghost]
messageThemes:
  general:
    - Good morning team
    - who: Grace Hopper
      text: Deploy is green
`
	writeFile(t, dir, "people.yaml", people)
	writeFile(t, dir, "channel-config.yml", channels)

	ws, err := Load(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ws.Viewer().Name != "Ada Lovelace" {
		t.Fatalf("ожидали зрителя из YAML, получили %q", ws.Viewer().Name)
	}
	if ws.Viewer().Initials != "AL" {
		t.Fatalf("ожидали инициалы AL, получили %q", ws.Viewer().Initials)
	}
	grace, _ := ws.PersonByName("Grace Hopper")
	if !grace.EmojiHeavy {
		t.Fatalf("ожидали флаг emoji-heavy")
	}
	if ws.Assistant().Name != domain.DefaultAssistantName {
		t.Fatalf("ожидали ассистента по умолчанию, получили %q", ws.Assistant().Name)
	}
	if got := ws.Channels().GroupDMs[0].Members; len(got) != 1 || got[0] != "Grace Hopper" {
		t.Fatalf("ожидали, что неизвестный участник отброшен: %v", got)
	}
	themes := ws.Channels().MessageThemes["general"]
	if len(themes) != 2 || themes[0].Text != "Good morning team" || themes[1].Who != "Grace Hopper" {
		t.Fatalf("неверно разобраны messageThemes: %+v", themes)
	}
	if ws.Company().Name == "" {
		t.Fatalf("ожидали компанию по умолчанию для отсутствующего файла")
	}
}

func TestLoadFallbackViewer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.json", `[{"name":"Bob Jenkins","avatar":""},{"name":"Carol Diaz","avatar":""}]`)
	ws, err := Load(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ws.Viewer().Name != domain.DefaultViewerName {
		t.Fatalf("ожидали запасного зрителя, получили %q", ws.Viewer().Name)
	}
	groups := ws.Channels().GroupDMs
	if len(groups) != 1 || groups[0].ID != "group-1" {
		t.Fatalf("ожидали только group-1, где есть известные участники: %+v", groups)
	}
	if got := groups[0].Members; len(got) != 2 || got[0] != "Carol Diaz" || got[1] != "Bob Jenkins" {
		t.Fatalf("ожидали участников Carol Diaz и Bob Jenkins, получили %v", got)
	}
}

func TestLoadDropsGroupsWithoutKnownMembers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.json", `[{"name":"Nora Vance","avatar":"","me":true},{"name":"Omar Reyes","avatar":""}]`)
	ws, err := Load(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("замена одного people.json не должна ломать загрузку: %v", err)
	}
	if n := len(ws.Channels().GroupDMs); n != 0 {
		t.Fatalf("ожидали, что все групповые диалоги отброшены, осталось %d", n)
	}
	if len(ws.Channels().Public) == 0 {
		t.Fatalf("каналы по умолчанию должны остаться")
	}
	if ws.Viewer().Name != "Nora Vance" {
		t.Fatalf("ожидали зрителя Nora Vance, получили %q", ws.Viewer().Name)
	}
	// Строгая проверка для generate по-прежнему отвергает такую конфигурацию.
	people := []domain.Person{{Name: "Nora Vance"}}
	channels := domain.ChannelConfig{GroupDMs: []domain.GroupDM{{ID: "g", Members: []string{"Ghost"}}}}
	if err := Validate(people, channels); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("ожидали ErrInvalidConfig от Validate, получили %v", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "company.json", `{"name": 42`)
	_, err := Load(dir, zerolog.Nop())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("ожидали ErrInvalidConfig, получили %v", err)
	}
	if !strings.Contains(err.Error(), "company.json") {
		t.Fatalf("ожидали путь к файлу в ошибке: %v", err)
	}
}

func TestValidate(t *testing.T) {
	people := []domain.Person{{Name: "A"}, {Name: "B"}}
	cases := []struct {
		name     string
		people   []domain.Person
		channels domain.ChannelConfig
		wantErr  string
	}{
		{
			name:     "ok",
			people:   people,
			channels: domain.ChannelConfig{Public: []domain.Channel{{ID: "general"}}, GroupDMs: []domain.GroupDM{{ID: "g", Members: []string{"A", "B"}}}},
		},
		{
			name:     "empty id",
			people:   people,
			channels: domain.ChannelConfig{Public: []domain.Channel{{ID: " "}}},
			wantErr:  "public[0]: empty id",
		},
		{
			name:     "duplicate id across sections",
			people:   people,
			channels: domain.ChannelConfig{Starred: []domain.Channel{{ID: "x"}}, Private: []domain.Channel{{ID: "x"}}},
			wantErr:  `private[0]: id "x" already used by starred[0]`,
		},
		{
			name:     "group without known members",
			people:   people,
			channels: domain.ChannelConfig{GroupDMs: []domain.GroupDM{{ID: "g", Members: []string{"Z"}}}},
			wantErr:  "groupDMs[0]: none of the members",
		},
		{
			name:     "duplicate person",
			people:   []domain.Person{{Name: "A"}, {Name: "A"}},
			wantErr:  `people[1]: duplicate name "A"`,
		},
		{
			name:     "two viewers",
			people:   []domain.Person{{Name: "A", Me: true}, {Name: "B", Me: true}},
			wantErr:  "2 persons marked as me",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.people, tc.channels)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("не ожидали ошибку: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("ожидали ошибку с %q, получили %v", tc.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("ожидали ErrInvalidConfig в цепочке")
			}
		})
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"James McGill":         "JM",
		"Rovo":                 "R",
		"Mary Ann Smith-Jones": "MA",
		"":                     "",
	}
	for in, want := range cases {
		if got := Initials(in); got != want {
			t.Fatalf("Initials(%q) = %q, ожидали %q", in, got, want)
		}
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("не удалось записать %s: %v", name, err)
	}
}
