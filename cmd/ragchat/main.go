package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rag-chat-be/internal/bootstrap"
	"rag-chat-be/internal/config"
	"rag-chat-be/internal/pkg/logger"
	"rag-chat-be/pkg/database"

	"github.com/spf13/cobra"
)

// app holds what every subcommand needs once the root command has run.
type app struct {
	cfg       *config.Config
	container *bootstrap.Container
}

var rootCmd = &cobra.Command{
	Use:           "ragchat",
	Short:         "Talk to the retrieval-augmented chat pipeline from a terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(
		newAskCommand(),
		newChatCommand(),
		newSessionsCommand(),
		newHistoryCommand(),
		newEventsCommand(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newApp builds the same container the REST server uses. Logs go to the
// log file only so they do not interleave with streamed answers.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.Connection)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.Driver == database.DriverSqlite {
		if err := database.AutoMigrate(db, cfg.Database.Driver); err != nil {
			return nil, err
		}
	}

	container, err := bootstrap.NewContainer(ctx, db, cfg,
		bootstrap.WithLogger(logger.NewIsolatedLogger(cfg.App.LogFilePath)))
	if err != nil {
		return nil, err
	}
	if err := container.ConsumerService.Consume(ctx); err != nil {
		container.Close()
		return nil, fmt.Errorf("start event consumer: %w", err)
	}

	return &app{cfg: cfg, container: container}, nil
}

func (a *app) Close() {
	a.container.Close()
}
