package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slack-mock/internal/adapters/configstore"
	"slack-mock/internal/domain"
)

// ErrNoFetcher возвращается, если сервис создан без клиента аватаров.
var ErrNoFetcher = errors.New("avatar fetcher is not configured")

// DownloadAvatars скачивает недостающие аватары всех людей, кроме AI-ассистента.
// Уже существующие файлы пропускаются, ошибки по отдельным людям считаются в отчёте.
func (s *Service) DownloadAvatars(ctx context.Context) (Report, error) {
	var report Report
	if s.fetcher == nil {
		return report, ErrNoFetcher
	}
	ws, err := configstore.Load(s.dir, s.log)
	if err != nil {
		return report, err
	}
	if err := os.MkdirAll(s.faces, 0o755); err != nil {
		return report, fmt.Errorf("download avatars: %w", err)
	}

	people := ws.People()
	s.printf("\n📥 Downloading avatars for %d people...\n\n", len(people))
	paths := map[string]string{}
	for _, p := range people {
		if p.IsAssistant() {
			continue
		}
		if file, ok := s.faceFor(p.Name); ok {
			s.printf("  ⏭️  Skipped %s (already exists)\n", p.Name)
			paths[p.Name] = FacesURLPrefix + file
			report.Skipped++
			continue
		}
		img, err := s.fetcher.Fetch(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			s.printf("  ✗ Failed to download avatar for %s: %v\n", p.Name, err)
			s.log.Warn().Err(err).Str("person", p.Name).Msg("workspace: avatar download failed")
			report.Failed++
			continue
		}
		file := domain.Slug(p.Name) + img.Ext
		if err := os.WriteFile(filepath.Join(s.faces, file), img.Data, 0o644); err != nil {
			return report, fmt.Errorf("download avatars: %w", err)
		}
		s.printf("  ✓ Downloaded avatar for %s (%s)\n", p.Name, img.Source)
		paths[p.Name] = FacesURLPrefix + file
		report.Done++
		if err := sleep(ctx, s.Pause); err != nil {
			return report, err
		}
	}

	if _, ok := findFile(s.dir, configstore.PeopleFile); ok {
		if err := s.rewriteAvatars(paths); err != nil {
			return report, err
		}
	}
	s.printf("\n✅ Avatar download complete!\n   Downloaded: %d\n   Skipped: %d\n   Errors: %d\n", report.Done, report.Skipped, report.Failed)
	s.printf("\n📁 Avatars saved to: %s\n", s.faces)
	return report, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RenameAvatars переименовывает файлы аватаров в слаги имён и переписывает пути
// в people.* и company-context.*. AI-ассистент не трогается.
func (s *Service) RenameAvatars() (Report, error) {
	var report Report
	peoplePath, ok := findFile(s.dir, configstore.PeopleFile)
	if !ok {
		return report, fmt.Errorf("rename avatars: %w in %s", ErrNoPeople, s.dir)
	}
	var people []domain.Person
	if err := readConfig(peoplePath, &people); err != nil {
		return report, err
	}

	s.printf("🔄 Renaming avatar files to match person names...\n\n")
	paths := map[string]string{}
	for _, p := range people {
		if p.IsAssistant() {
			continue
		}
		current := strings.TrimPrefix(p.Avatar, FacesURLPrefix)
		ext := strings.ToLower(filepath.Ext(current))
		if ext == "" {
			ext = ".jpg"
		}
		target := domain.Slug(p.Name) + ext
		paths[p.Name] = FacesURLPrefix + target
		if current == target {
			continue
		}
		from := filepath.Join(s.faces, current)
		to := filepath.Join(s.faces, target)
		switch {
		case current == "" || !exists(from):
			s.printf("  ✗ %s: %s not found\n", p.Name, current)
			report.Failed++
		case exists(to):
			s.printf("  ⚠️  %s: %s already exists, skipping\n", p.Name, target)
			report.Skipped++
		default:
			if err := os.Rename(from, to); err != nil {
				s.printf("  ✗ %s: error renaming, %v\n", p.Name, err)
				report.Failed++
				continue
			}
			s.printf("  ✓ %s (%s): %s → %s\n", p.Name, p.Gender, current, target)
			report.Done++
		}
	}
	s.printf("\n✅ Renamed %d files\n", report.Done)
	if report.Failed > 0 {
		s.printf("   Errors: %d\n", report.Failed)
	}

	if err := s.rewriteAvatars(paths); err != nil {
		return report, err
	}
	return report, nil
}

// rewriteAvatars обновляет поле avatar у людей из paths в people.* и company-context.*.
func (s *Service) rewriteAvatars(paths map[string]string) error {
	peoplePath, ok := findFile(s.dir, configstore.PeopleFile)
	if !ok {
		return fmt.Errorf("rewrite avatars: %w in %s", ErrNoPeople, s.dir)
	}
	var people []domain.Person
	if err := readConfig(peoplePath, &people); err != nil {
		return err
	}
	for i, p := range people {
		if path, ok := paths[p.Name]; ok && !p.IsAssistant() {
			people[i].Avatar = path
		}
	}
	if err := writeConfig(peoplePath, people); err != nil {
		return err
	}
	s.printf("📝 Updated %s\n", filepath.Base(peoplePath))

	ctxPath, ok := findFile(s.dir, ContextFile)
	if !ok {
		return nil
	}
	var raw map[string]any
	if err := readConfig(ctxPath, &raw); err != nil {
		return err
	}
	employees, _ := raw["employees"].([]any)
	for _, e := range employees {
		emp, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, _ := emp["name"].(string)
		if role, _ := emp["role"].(string); role == domain.RoleAIAssistant {
			continue
		}
		if path, ok := paths[name]; ok {
			emp["avatar"] = path
		}
	}
	if err := writeConfig(ctxPath, raw); err != nil {
		return err
	}
	s.printf("📝 Updated %s\n", filepath.Base(ctxPath))
	return nil
}
