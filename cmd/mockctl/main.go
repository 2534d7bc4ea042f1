package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"slack-mock/internal/adapters/avatars"
	"slack-mock/internal/usecase/workspace"
)

var (
	dataDir  string
	facesDir string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "mockctl",
	Short:         "Maintenance tool for the slack-mock demo workspace",
	Long:          `mockctl restores the default demo company, generates configuration from company-context and manages avatar files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	defaultDir := os.Getenv("DATA_DIR")
	if defaultDir == "" {
		defaultDir = "."
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", defaultDir, "workspace configuration directory")
	rootCmd.PersistentFlags().StringVar(&facesDir, "faces", "", "avatar directory (default is <dir>/assets/faces)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// newService собирает сервис обслуживания каталога для текущих флагов.
func newService(cmd *cobra.Command) *workspace.Service {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("component", "mockctl").Logger().Level(level)
	client := avatars.NewClient(15*time.Second, rate.NewLimiter(rate.Every(100*time.Millisecond), 1))
	return workspace.NewService(dataDir, facesDir, client, cmd.OutOrStdout(), logger)
}
