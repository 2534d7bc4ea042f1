package workspace

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"slack-mock/internal/adapters/configstore"
	"slack-mock/internal/domain"
)

type fakeFetcher struct {
	calls []string
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, p domain.Person) (domain.AvatarImage, error) {
	f.calls = append(f.calls, p.Name)
	if f.err != nil {
		return domain.AvatarImage{}, f.err
	}
	return domain.AvatarImage{Data: []byte("<svg/>"), Ext: ".svg", Source: "fake"}, nil
}

func newTestService(t *testing.T, fetcher domain.AvatarFetcher) (*Service, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s := NewService(t.TempDir(), "", fetcher, &out, zerolog.Nop())
	s.Pause = 0
	return s, &out
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readPeople(t *testing.T, dir string) map[string]domain.Person {
	t.Helper()
	var people []domain.Person
	if err := readConfig(filepath.Join(dir, "people.json"), &people); err != nil {
		t.Fatalf("people.json не читается: %v", err)
	}
	out := make(map[string]domain.Person, len(people))
	for _, p := range people {
		out[p.Name] = p
	}
	return out
}

func TestRestoreDefaults(t *testing.T) {
	s, out := newTestService(t, &fakeFetcher{})
	writeFile(t, filepath.Join(s.Dir(), "company-context.json"), `{"company":{"name":"Custom"}}`)
	writeFile(t, filepath.Join(s.Dir(), "people.yaml"), "- name: Someone\n")

	if err := s.RestoreDefaults(context.Background(), true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !exists(filepath.Join(s.Dir(), "company-context.json.backup")) {
		t.Fatalf("ожидали резервную копию company-context.json")
	}
	if exists(filepath.Join(s.Dir(), "company-context.json")) || exists(filepath.Join(s.Dir(), "people.yaml")) {
		t.Fatalf("пользовательские файлы должны быть удалены")
	}
	for _, name := range configstore.Files {
		if !exists(filepath.Join(s.Dir(), name+".json")) {
			t.Fatalf("нет файла %s.json", name)
		}
	}
	if _, err := s.Validate(); err != nil {
		t.Fatalf("восстановленный набор должен быть валиден: %v", err)
	}
	if !strings.Contains(out.String(), "company-context.json.backup") {
		t.Fatalf("в выводе нет пути к резервной копии:\n%s", out.String())
	}
}

func TestRestoreDefaultsAvatarFailureIsWarning(t *testing.T) {
	s, out := newTestService(t, &fakeFetcher{err: errors.New("offline")})
	if err := s.RestoreDefaults(context.Background(), false); err != nil {
		t.Fatalf("ошибка аватаров не должна прерывать восстановление: %v", err)
	}
	if !strings.Contains(out.String(), "mockctl download-avatars") {
		t.Fatalf("ожидали подсказку про download-avatars:\n%s", out.String())
	}
}

func TestDownloadAvatars(t *testing.T) {
	fetcher := &fakeFetcher{}
	s, _ := newTestService(t, fetcher)
	people := []domain.Person{
		{Name: "Ada Lovelace", Avatar: "/assets/faces/ada.jpg", Me: true},
		{Name: "Grace Hopper", Gender: "female"},
		{Name: "Rovo", Role: domain.RoleAIAssistant},
	}
	if err := writeConfig(filepath.Join(s.Dir(), "people.json"), people); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeFile(t, filepath.Join(s.Dir(), "channel-config.json"), `{"starred":[],"public":[{"id":"general","name":"#general"}],"private":[],"groupDMs":[]}`)
	writeFile(t, filepath.Join(s.Faces(), "ada-lovelace.png"), "png")

	report, err := s.DownloadAvatars(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Done != 1 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("неожиданный отчёт: %+v", report)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != "Grace Hopper" {
		t.Fatalf("скачивать нужно только недостающие аватары людей: %v", fetcher.calls)
	}
	if !exists(filepath.Join(s.Faces(), "grace-hopper.svg")) {
		t.Fatalf("файл аватара не записан")
	}
	got := readPeople(t, s.Dir())
	if got["Ada Lovelace"].Avatar != "/assets/faces/ada-lovelace.png" || got["Grace Hopper"].Avatar != "/assets/faces/grace-hopper.svg" {
		t.Fatalf("пути аватаров не обновлены: %+v", got)
	}
	if got["Rovo"].Avatar != "" {
		t.Fatalf("аватар ассистента трогать нельзя")
	}
}

func TestDownloadAvatarsWithoutFetcher(t *testing.T) {
	s, _ := newTestService(t, nil)
	if _, err := s.DownloadAvatars(context.Background()); !errors.Is(err, ErrNoFetcher) {
		t.Fatalf("ожидали ErrNoFetcher, получили %v", err)
	}
}

func TestRenameAvatars(t *testing.T) {
	s, _ := newTestService(t, nil)
	people := []domain.Person{
		{Name: "Ada Lovelace", Avatar: "/assets/faces/female-01.jpg", Gender: "female", Me: true},
		{Name: "Alan Turing", Avatar: "/assets/faces/male-01.png", Gender: "male"},
		{Name: "Grace O'Hopper", Avatar: "/assets/faces/female-02.jpg"},
		{Name: "Linus", Avatar: "/assets/faces/linus.jpg"},
		{Name: "Rovo", Avatar: "/assets/rovo-icon.svg", Role: domain.RoleAIAssistant},
	}
	if err := writeConfig(filepath.Join(s.Dir(), "people.json"), people); err != nil {
		t.Fatalf("write: %v", err)
	}
	writeFile(t, filepath.Join(s.Dir(), "company-context.json"),
		`{"company":{"name":"Acme"},"employees":[{"name":"Alan Turing","avatar":"/assets/faces/male-01.png"},{"name":"Rovo","role":"AI Assistant","avatar":"/assets/rovo-icon.svg"}]}`)
	writeFile(t, filepath.Join(s.Faces(), "female-01.jpg"), "a")
	writeFile(t, filepath.Join(s.Faces(), "male-01.png"), "b")
	writeFile(t, filepath.Join(s.Faces(), "female-02.jpg"), "c")
	writeFile(t, filepath.Join(s.Faces(), "grace-ohopper.jpg"), "taken")
	writeFile(t, filepath.Join(s.Faces(), "linus.jpg"), "d")

	report, err := s.RenameAvatars()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Done != 2 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("неожиданный отчёт: %+v", report)
	}
	if !exists(filepath.Join(s.Faces(), "ada-lovelace.jpg")) || !exists(filepath.Join(s.Faces(), "alan-turing.png")) {
		t.Fatalf("файлы не переименованы")
	}
	if !exists(filepath.Join(s.Faces(), "female-02.jpg")) {
		t.Fatalf("при занятом имени исходный файл остаётся на месте")
	}

	got := readPeople(t, s.Dir())
	want := map[string]string{
		"Ada Lovelace":   "/assets/faces/ada-lovelace.jpg",
		"Alan Turing":    "/assets/faces/alan-turing.png",
		"Grace O'Hopper": "/assets/faces/grace-ohopper.jpg",
		"Linus":          "/assets/faces/linus.jpg",
		"Rovo":           "/assets/rovo-icon.svg",
	}
	for name, avatar := range want {
		if got[name].Avatar != avatar {
			t.Fatalf("%s: ожидали %s, получили %s", name, avatar, got[name].Avatar)
		}
	}

	var cc CompanyContext
	if err := readConfig(filepath.Join(s.Dir(), "company-context.json"), &cc); err != nil {
		t.Fatalf("company-context.json не читается: %v", err)
	}
	if cc.Employees[0].Avatar != "/assets/faces/alan-turing.png" || cc.Employees[1].Avatar != "/assets/rovo-icon.svg" {
		t.Fatalf("company-context.json не обновлён: %+v", cc.Employees)
	}
}

func TestRenameAvatarsMissingFile(t *testing.T) {
	s, out := newTestService(t, nil)
	people := []domain.Person{{Name: "Ada Lovelace", Avatar: "/assets/faces/gone.jpg", Me: true}}
	if err := writeConfig(filepath.Join(s.Dir(), "people.yaml"), people); err != nil {
		t.Fatalf("write: %v", err)
	}
	report, err := s.RenameAvatars()
	if err != nil {
		t.Fatalf("отсутствующий файл — предупреждение, а не ошибка: %v", err)
	}
	if report.Failed != 1 || !strings.Contains(out.String(), "gone.jpg not found") {
		t.Fatalf("ожидали предупреждение о gone.jpg: %+v\n%s", report, out.String())
	}
	var saved []domain.Person
	if err := readConfig(filepath.Join(s.Dir(), "people.yaml"), &saved); err != nil {
		t.Fatalf("people.yaml должен остаться YAML: %v", err)
	}
	if saved[0].Avatar != "/assets/faces/ada-lovelace.jpg" || !saved[0].Me {
		t.Fatalf("неожиданная запись: %+v", saved[0])
	}
}

func TestRenameAvatarsRequiresPeople(t *testing.T) {
	s, _ := newTestService(t, nil)
	if _, err := s.RenameAvatars(); !errors.Is(err, ErrNoPeople) {
		t.Fatalf("ожидали ErrNoPeople, получили %v", err)
	}
}

const contextYAML = `
company:
  name: Northwind Health
  logo: /assets/your-logo.png
  description: Clinic network with telemedicine
  industry: Healthcare
  companySize: Growing startup
employees:
  - name: Priya Shah
    role: Operations Lead
    gender: female
    me: true
  - name: Tom Baker
    role: Engineering Manager
    gender: male
  - name: Ann Lee
    gender: female
  - name: Rovo
    role: AI Assistant
channels:
  starred:
    - id: on-call
      name: "#on-call"
  public:
    - id: general
      name: "#general"
      topics: [announcements]
    - id: dev-platform
      name: "#dev-platform"
      topics: [deployments, announcements]
  private:
    - id: leads
      name: "#leads"
groupDMs:
  - id: g1
    name: Tom, Ann
    members: [Tom Baker, Ann Lee]
`

func TestGenerate(t *testing.T) {
	s, _ := newTestService(t, nil)
	writeFile(t, filepath.Join(s.Dir(), "company-context.yaml"), contextYAML)
	writeFile(t, filepath.Join(s.Faces(), "priya-shah.png"), "p")
	writeFile(t, filepath.Join(s.Faces(), "face-1.jpg"), "m")
	writeFile(t, filepath.Join(s.Faces(), "face-2.jpg"), "f")

	if err := s.Generate(); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ws, err := s.Validate()
	if err != nil {
		t.Fatalf("сгенерированный набор невалиден: %v", err)
	}

	company := ws.Company()
	if company.LogoInitials != "NH" || company.Logo != "" {
		t.Fatalf("неожиданный логотип: %+v", company)
	}
	if strings.Join(company.Topics, ",") != "announcements,deployments" {
		t.Fatalf("темы должны собираться из публичных каналов без повторов: %v", company.Topics)
	}

	avatars := map[string]string{}
	for _, p := range ws.People() {
		avatars[p.Name] = p.Avatar
		if p.Initials == "" {
			t.Fatalf("%s: нет инициалов", p.Name)
		}
	}
	want := map[string]string{
		"Priya Shah": "/assets/faces/priya-shah.png",
		"Tom Baker":  "/assets/faces/face-1.jpg",
		"Ann Lee":    "/assets/faces/face-2.jpg",
		"Rovo":       "",
	}
	for name, avatar := range want {
		if avatars[name] != avatar {
			t.Fatalf("%s: ожидали %q, получили %q", name, avatar, avatars[name])
		}
	}

	themes := ws.Channels().MessageThemes
	general := themes["general"]
	if len(general) != 3 || general[0].Who != "Priya Shah" || !strings.Contains(general[1].Text, "🏥") {
		t.Fatalf("неожиданные анонсы #general: %+v", general)
	}
	if len(themes["dev-platform"]) != 4 || !strings.Contains(themes["dev-platform"][2].Text, "dev-platform improvements") {
		t.Fatalf("неожиданные темы #dev-platform: %+v", themes["dev-platform"])
	}
	if themes["leads"][0].Text != "Update on updates" {
		t.Fatalf("канал без тем получает общие реплики: %+v", themes["leads"])
	}
}

func TestGenerateWithoutContext(t *testing.T) {
	s, _ := newTestService(t, nil)
	if err := s.Generate(); !errors.Is(err, ErrNoContext) {
		t.Fatalf("ожидали ErrNoContext, получили %v", err)
	}
}

func TestCompanyInitials(t *testing.T) {
	cases := map[string]string{
		"":                  "CO",
		"Atlassian":         "AT",
		"Northwind Health":  "NH",
		"acme rocket works": "AR",
		"X":                 "X",
	}
	for in, want := range cases {
		if got := CompanyInitials(in); got != want {
			t.Fatalf("%q: ожидали %q, получили %q", in, want, got)
		}
	}
}
