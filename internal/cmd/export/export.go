// Package export provides the export command.
package export

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"github.com/yidakee/partivotes/internal/cmd/app"
	csvexport "github.com/yidakee/partivotes/internal/export"
)

// Command returns the export sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export all polls to a CSV file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output",
				Usage: "Output file; defaults to a timestamped file in the export directory",
			},
		},
		Action: app.Action(func(ctx context.Context, cmd *cli.Command, s *app.Session) error {
			return Run(ctx, s, cmd.String("output"))
		}),
	}
}

// Run writes the CSV export.
func Run(ctx context.Context, s *app.Session, output string) error {
	res, err := s.Exporter.CSV(ctx, output)
	if errors.Is(err, csvexport.ErrNoPolls) {
		return app.Fail("Nothing to export", err)
	}
	if err != nil {
		return app.Fail("Export failed", err)
	}
	log.Info("Polls exported", "file", res.Path, "rows", res.Rows)
	return nil
}
