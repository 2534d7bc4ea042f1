package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	skipAvatars bool
	assumeYes   bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore-defaults",
	Short: "Restore the built-in demo company, people, channels and theme",
	Long: `Backs up company-context.* to .backup, removes it, writes the built-in
company, people, channel-config and theme files and downloads avatars.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc := newService(cmd)
		if !assumeYes && !confirm(cmd, fmt.Sprintf("Replace configuration in %s with defaults?", absPath(svc.Dir()))) {
			return errors.New("aborted")
		}
		return svc.RestoreDefaults(cmd.Context(), skipAvatars)
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename-avatars",
	Short: "Rename avatar files to match person names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := newService(cmd).RenameAvatars()
		return err
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download-avatars",
	Short: "Download missing avatars from DiceBear or UI Avatars",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := newService(cmd).DownloadAvatars(cmd.Context())
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d avatars failed to download", report.Failed)
		}
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate company, people and channel-config from company-context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc := newService(cmd)
		if err := svc.Generate(); err != nil {
			return err
		}
		_, err := svc.Validate()
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the workspace configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := newService(cmd).Validate()
		return err
	},
}

func init() {
	restoreCmd.Flags().BoolVar(&skipAvatars, "skip-avatars", false, "do not download avatars after restoring")
	restoreCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(restoreCmd, renameCmd, downloadCmd, generateCmd, validateCmd)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
