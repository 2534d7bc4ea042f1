package configstore

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"slack-mock/internal/domain"
)

// Имена файлов конфигурации без расширения.
const (
	CompanyFile  = "company"
	PeopleFile   = "people"
	ChannelsFile = "channel-config"
	ThemeFile    = "theme"
)

// Files перечисляет файлы рабочего набора в порядке загрузки.
var Files = []string{CompanyFile, PeopleFile, ChannelsFile, ThemeFile}

var extensions = []string{".json", ".yaml", ".yml"}

//go:embed defaults/*.json
var defaultsFS embed.FS

// ErrInvalidConfig возвращается, когда файл конфигурации не проходит проверку.
var ErrInvalidConfig = errors.New("invalid configuration")

// Workspace: загруженный набор конфигурации демо-компании.
type Workspace struct {
	company   domain.Company
	people    []domain.Person
	channels  domain.ChannelConfig
	theme     domain.Theme
	viewer    domain.Person
	assistant domain.Person
	byName    map[string]domain.Person
}

var _ domain.Directory = (*Workspace)(nil)

// DefaultFile возвращает встроенный файл по умолчанию.
func DefaultFile(name string) ([]byte, error) {
	data, err := defaultsFS.ReadFile("defaults/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("default %s: %w", name, err)
	}
	return data, nil
}

// LoadDefaults собирает рабочий набор только из встроенных файлов.
func LoadDefaults(logger zerolog.Logger) (*Workspace, error) {
	return Load("", logger)
}

// Load читает конфигурацию из каталога dir. Отсутствующие файлы заменяются встроенными.
// Пустой dir означает встроенный набор. Групповые диалоги, где не осталось известных
// участников, отбрасываются с предупреждением, так что замена одного people.json не ломает запуск.
func Load(dir string, logger zerolog.Logger) (*Workspace, error) {
	var ws Workspace
	targets := map[string]any{
		CompanyFile:  &ws.company,
		PeopleFile:   &ws.people,
		ChannelsFile: &ws.channels,
		ThemeFile:    &ws.theme,
	}
	for _, name := range Files {
		data, path, err := readFile(dir, name)
		if err != nil {
			return nil, err
		}
		if path == "" {
			if dir != "" {
				logger.Warn().Str("file", name).Str("dir", dir).Msg("configstore: file not found, using default")
			}
			path = name + ".json"
		}
		if err := Decode(path, data, targets[name]); err != nil {
			return nil, err
		}
	}

	if err := validate(ws.people, ws.channels, false); err != nil {
		return nil, err
	}
	ws.normalize(logger)
	logger.Debug().
		Int("people", len(ws.people)).
		Int("channels", len(ws.channels.Starred)+len(ws.channels.Public)+len(ws.channels.Private)).
		Int("group_dms", len(ws.channels.GroupDMs)).
		Msg("configstore: workspace loaded")
	return &ws, nil
}

// readFile ищет файл name с одним из поддерживаемых расширений. Пустой path означает встроенный файл.
func readFile(dir, name string) ([]byte, string, error) {
	if dir != "" {
		for _, ext := range extensions {
			path := filepath.Join(dir, name+ext)
			data, err := os.ReadFile(path)
			if err == nil {
				return data, path, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, "", fmt.Errorf("read %s: %w", path, err)
			}
		}
	}
	data, err := DefaultFile(name)
	if err != nil {
		return nil, "", err
	}
	return data, "", nil
}

// Decode разбирает JSON или YAML. YAML приводится к JSON, чтобы работали одни и те же теги.
func Decode(path string, data []byte, out any) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
		data = converted
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func (w *Workspace) normalize(logger zerolog.Logger) {
	w.byName = make(map[string]domain.Person, len(w.people))
	for i, p := range w.people {
		if p.Initials == "" {
			p.Initials = Initials(p.Name)
			w.people[i] = p
		}
		w.byName[p.Name] = p
	}

	viewerFound := false
	for _, p := range w.people {
		if p.Me {
			w.viewer = p
			viewerFound = true
			break
		}
	}
	if !viewerFound {
		if p, ok := w.byName[domain.DefaultViewerName]; ok {
			w.viewer = p
		} else {
			w.viewer = domain.Person{Name: domain.DefaultViewerName, Initials: Initials(domain.DefaultViewerName), Me: true}
		}
		logger.Warn().Str("viewer", w.viewer.Name).Msg("configstore: no person marked as me, using fallback")
	}

	assistantFound := false
	for _, p := range w.people {
		if p.IsAssistant() {
			w.assistant = p
			assistantFound = true
			break
		}
	}
	if !assistantFound {
		w.assistant = domain.Person{Name: domain.DefaultAssistantName, Initials: Initials(domain.DefaultAssistantName), Role: domain.RoleAIAssistant}
	}

	fix := func(list []domain.Channel) {
		for i := range list {
			if list[i].Name == "" {
				list[i].Name = "#" + list[i].ID
			}
		}
	}
	fix(w.channels.Starred)
	fix(w.channels.Public)
	fix(w.channels.Private)
	for i := range w.channels.Private {
		w.channels.Private[i].IsPrivate = true
	}

	groups := w.channels.GroupDMs[:0:0]
	for _, g := range w.channels.GroupDMs {
		members := g.Members[:0:0]
		for _, m := range g.Members {
			if _, ok := w.byName[m]; !ok {
				logger.Warn().Str("group", g.ID).Str("member", m).Msg("configstore: unknown group member dropped")
				continue
			}
			members = append(members, m)
		}
		if len(members) == 0 {
			logger.Warn().Str("group", g.ID).Msg("configstore: group dm without known members dropped")
			continue
		}
		g.Members = members
		groups = append(groups, g)
	}
	w.channels.GroupDMs = groups
}

// Company возвращает профиль компании.
func (w *Workspace) Company() domain.Company { return w.company }

// People возвращает копию списка персон.
func (w *Workspace) People() []domain.Person {
	return append([]domain.Person(nil), w.people...)
}

// Viewer возвращает персону, от лица которой открыт интерфейс.
func (w *Workspace) Viewer() domain.Person { return w.viewer }

// Assistant возвращает AI-ассистента.
func (w *Workspace) Assistant() domain.Person { return w.assistant }

// PersonByName ищет персону по имени.
func (w *Workspace) PersonByName(name string) (domain.Person, bool) {
	if p, ok := w.byName[name]; ok {
		return p, true
	}
	if name == w.viewer.Name {
		return w.viewer, true
	}
	if name == w.assistant.Name {
		return w.assistant, true
	}
	return domain.Person{}, false
}

// Channels возвращает топологию каналов.
func (w *Workspace) Channels() domain.ChannelConfig { return w.channels }

// Theme возвращает визуальную тему.
func (w *Workspace) Theme() domain.Theme { return w.theme }

// Initials строит инициалы из первых букв первых двух слов имени.
func Initials(name string) string {
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			b.WriteString(strings.ToUpper(string(r)))
			break
		}
		if n++; n == 2 {
			break
		}
	}
	return b.String()
}
