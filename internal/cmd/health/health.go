// Package health provides the health command.
package health

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"github.com/yidakee/partivotes/internal/cmd/app"
	"github.com/yidakee/partivotes/internal/render"
)

// Command returns the health sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check connectivity, statistics and poll integrity",
		Action: app.Action(func(ctx context.Context, _ *cli.Command, s *app.Session) error {
			return Run(ctx, s)
		}),
	}
}

// Run prints the health report.
func Run(ctx context.Context, s *app.Session) error {
	r, err := s.Admin.Health(ctx)
	if err != nil {
		return app.Fail("Health check failed", err)
	}
	s.Println(render.Health(r))
	if !r.Healthy() {
		log.Warn("Integrity problems found", "incomplete", len(r.Incomplete), "counter_mismatches", len(r.Mismatches))
	}
	return nil
}
