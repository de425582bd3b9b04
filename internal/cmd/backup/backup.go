// Package backup provides the backup, list-backups and restore commands.
package backup

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"github.com/yidakee/partivotes/internal/cmd/app"
	"github.com/yidakee/partivotes/internal/prompt"
	"github.com/yidakee/partivotes/internal/render"
)

// Commands returns the backup sub-commands.
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "backup",
			Usage: "Write a JSON backup of all polls and votes",
			Action: app.Action(func(ctx context.Context, _ *cli.Command, s *app.Session) error {
				return Create(ctx, s)
			}),
		},
		{
			Name:  "list-backups",
			Usage: "List backup files, newest first",
			Action: app.Action(func(_ context.Context, _ *cli.Command, s *app.Session) error {
				return List(s)
			}),
		},
		{
			Name:  "restore",
			Usage: "Replace all polls and votes with the contents of a backup file",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "backup-file",
					Usage: "Path of the backup file to restore",
				},
				&cli.BoolFlag{
					Name:  "force",
					Usage: "Skip the confirmation prompt",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				path := cmd.String("backup-file")
				if path == "" {
					log.Error("--backup-file is required for restore")
					return nil
				}
				return app.Action(func(ctx context.Context, cmd *cli.Command, s *app.Session) error {
					return Restore(ctx, s, path, prompt.Force(cmd.Bool("force"), s.Confirm))
				})(ctx, cmd)
			},
		},
	}
}

// Create writes a new backup.
func Create(ctx context.Context, s *app.Session) error {
	res, err := s.Backups.Create(ctx)
	if err != nil {
		return app.Fail("Backup failed", err)
	}
	log.Info("Backup created", "file", res.Path, "polls", res.Polls, "votes", res.Votes, "size", render.Bytes(res.Size))
	return nil
}

// List prints the backup files.
func List(s *app.Session) error {
	files, err := s.Backups.List()
	if err != nil {
		return app.Fail("Cannot list backups", err)
	}
	s.Println(render.Backups(files))
	return nil
}

// Restore replaces the database contents with the backup at path.
func Restore(ctx context.Context, s *app.Session, path string, confirm prompt.Confirmer) error {
	res := s.Backups.Restore(ctx, path, confirm)
	if res.SafetyBackup != "" && !res.OK() {
		log.Warn("Previous data was saved before the restore", "file", res.SafetyBackup)
	}
	return app.Report(res.Outcome)
}
