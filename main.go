package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"github.com/yidakee/partivotes/internal/cmd/app"
	"github.com/yidakee/partivotes/internal/cmd/backup"
	"github.com/yidakee/partivotes/internal/cmd/export"
	"github.com/yidakee/partivotes/internal/cmd/health"
	"github.com/yidakee/partivotes/internal/cmd/interactive"
	"github.com/yidakee/partivotes/internal/cmd/polls"
	"github.com/yidakee/partivotes/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		log.Warn("Failed to load .env", "err", err)
	}

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	cfg := config.DefaultConfig()

	var commands []*cli.Command
	commands = append(commands, polls.Commands()...)
	commands = append(commands, backup.Commands()...)
	commands = append(commands, export.Command(), health.Command(), interactive.Command())

	return &cli.Command{
		Name:     "dbmanager",
		Usage:    "Administer the PartiVotes polls database",
		Flags:    app.Flags(&cfg),
		Before:   app.Before(&cfg),
		Commands: commands,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Present() {
				log.Error("Unknown command", "command", cmd.Args().First())
			}
			return cli.ShowRootCommandHelp(cmd)
		},
	}
}
