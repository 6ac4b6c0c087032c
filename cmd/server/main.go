package main // Entry point package

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv" // .env support for local runs
	"github.com/spf13/cobra"

	"github.com/iliyamo/deal-finder/internal/config"  // Internal config loader
	"github.com/iliyamo/deal-finder/internal/logging" // process logger
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "deal-finder",
	Short:         "Game deal aggregation API and ingestion tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// a missing .env is fine; real deployments use the environment
		_ = godotenv.Load()
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
