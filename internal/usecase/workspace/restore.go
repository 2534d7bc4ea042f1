package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"slack-mock/internal/adapters/configstore"
)

// RestoreDefaults возвращает встроенный рабочий набор: сохраняет company-context в .backup,
// удаляет его, записывает файлы по умолчанию и скачивает аватары. Ошибка скачивания
// аватаров не прерывает восстановление.
func (s *Service) RestoreDefaults(ctx context.Context, skipAvatars bool) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("restore defaults: %w", err)
	}

	backup := ""
	if path, ok := findFile(s.dir, ContextFile); ok {
		backup = path + ".backup"
		if err := copyFile(path, backup); err != nil {
			return fmt.Errorf("restore defaults: backup %s: %w", path, err)
		}
		s.printf("✅ Backed up %s to %s\n", filepath.Base(path), filepath.Base(backup))
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("restore defaults: %w", err)
		}
		s.printf("✅ Removed custom %s\n", filepath.Base(path))
	}

	for _, name := range configstore.Files {
		data, err := configstore.DefaultFile(name)
		if err != nil {
			return fmt.Errorf("restore defaults: %w", err)
		}
		for _, ext := range configExtensions[1:] {
			if err := removeIfExists(filepath.Join(s.dir, name+ext)); err != nil {
				return fmt.Errorf("restore defaults: %w", err)
			}
		}
		target := filepath.Join(s.dir, name+".json")
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("restore defaults: write %s: %w", target, err)
		}
		s.printf("✅ Restored default %s.json\n", name)
	}
	s.log.Info().Str("dir", s.dir).Msg("workspace: defaults restored")

	if !skipAvatars {
		s.printf("\n📥 Downloading avatars for default people...\n")
		report, err := s.DownloadAvatars(ctx)
		if err != nil || report.Failed > 0 {
			s.log.Warn().Err(err).Int("failed", report.Failed).Msg("workspace: avatar download incomplete")
			s.printf("⚠️  Warning: avatar download failed, but continuing...\n")
			s.printf("   You can run \"mockctl download-avatars\" later to download avatars.\n")
		}
	}

	s.printf("\n🎉 Default configuration restored!\n")
	if backup != "" {
		s.printf("   Your custom config is backed up at: %s\n", filepath.Base(backup))
	}
	return nil
}
