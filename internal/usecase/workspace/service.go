package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"slack-mock/internal/adapters/configstore"
	"slack-mock/internal/domain"
)

// ContextFile: описание компании, из которого генерируется рабочий набор.
const ContextFile = "company-context"

// FacesURLPrefix: путь, по которому интерфейс отдаёт каталог аватаров.
const FacesURLPrefix = "/assets/faces/"

var (
	// ErrNoContext возвращается, если company-context.* не найден.
	ErrNoContext = errors.New("company-context not found")
	// ErrNoPeople возвращается, если в каталоге нет people.*.
	ErrNoPeople = errors.New("people file not found")
)

var configExtensions = []string{".json", ".yaml", ".yml"}

// Report: итог пакетной операции над аватарами.
type Report struct {
	Done    int
	Skipped int
	Failed  int
}

// Service выполняет обслуживание каталога с конфигурацией демо.
type Service struct {
	dir     string
	faces   string
	fetcher domain.AvatarFetcher
	out     io.Writer
	log     zerolog.Logger
	// Pause: задержка между скачиваниями аватаров.
	Pause time.Duration
}

// NewService создаёт сервис. Пустой faces означает dir/assets/faces.
func NewService(dir, faces string, fetcher domain.AvatarFetcher, out io.Writer, logger zerolog.Logger) *Service {
	if faces == "" {
		faces = filepath.Join(dir, "assets", "faces")
	}
	if out == nil {
		out = io.Discard
	}
	return &Service{dir: dir, faces: faces, fetcher: fetcher, out: out, log: logger, Pause: 200 * time.Millisecond}
}

// Dir возвращает каталог конфигурации.
func (s *Service) Dir() string { return s.dir }

// Faces возвращает каталог аватаров.
func (s *Service) Faces() string { return s.faces }

func (s *Service) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// Validate загружает и проверяет рабочий набор.
func (s *Service) Validate() (*configstore.Workspace, error) {
	ws, err := configstore.Load(s.dir, s.log)
	if err != nil {
		return nil, err
	}
	ch := ws.Channels()
	s.printf("✅ Configuration is valid: %d people, %d channels, %d group DMs\n",
		len(ws.People()), len(ch.Starred)+len(ch.Public)+len(ch.Private), len(ch.GroupDMs))
	s.printf("   Viewer: %s, assistant: %s\n", ws.Viewer().Name, ws.Assistant().Name)
	return ws, nil
}

// findFile ищет name с одним из поддерживаемых расширений.
func findFile(dir, name string) (string, bool) {
	for _, ext := range configExtensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func readConfig(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return configstore.Decode(path, data, out)
}

// writeConfig сохраняет v в формате, заданном расширением path. Для YAML ключи берутся из JSON-тегов.
func writeConfig(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		if data, err = yaml.Marshal(generic); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	} else {
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// faceFor ищет в каталоге аватаров файл, названный слагом имени.
func (s *Service) faceFor(name string) (string, bool) {
	slug := domain.Slug(name)
	entries, err := os.ReadDir(s.faces)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		if strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())) == slug {
			return e.Name(), true
		}
	}
	return "", false
}

func isImage(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".svg":
		return true
	}
	return false
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func readDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
