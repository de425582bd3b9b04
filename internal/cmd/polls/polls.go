// Package polls provides the list, view, delete and delete-all commands.
package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"github.com/yidakee/partivotes/internal/admin"
	"github.com/yidakee/partivotes/internal/cmd/app"
	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/model"
	"github.com/yidakee/partivotes/internal/prompt"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"github.com/yidakee/partivotes/internal/render"
)

// Commands returns the poll sub-commands.
func Commands() []*cli.Command {
	return []*cli.Command{
		listCommand(),
		viewCommand(),
		deleteCommand(),
		deleteAllCommand(),
	}
}

func pollIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "poll-id",
		Usage: "Poll identifier (24 hex characters)",
	}
}

func forceFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "force",
		Usage: "Skip the confirmation prompt",
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List polls matching optional filters",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Poll type (" + strings.Join(typeNames(), "|") + ")",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Poll status (" + strings.Join(statusNames(), "|") + ")",
			},
			&cli.StringFlag{
				Name:  "creator",
				Usage: "Case-insensitive substring of the creator address",
			},
			&cli.StringFlag{
				Name:  "search",
				Usage: "Case-insensitive keyword matched against title and description",
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: config.DefaultListLimit,
				Usage: "Maximum number of polls to show",
			},
			&cli.StringFlag{
				Name:  "sort",
				Value: registrystore.DefaultSortField,
				Usage: "Sort field (" + strings.Join(registrystore.SortableFields, "|") + ")",
			},
			&cli.StringFlag{
				Name:  "order",
				Value: "desc",
				Usage: "Sort order (asc|desc)",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to the JSON array of matching polls",
			},
		},
		Action: app.Action(func(ctx context.Context, cmd *cli.Command, s *app.Session) error {
			q, err := QueryFromFlags(cmd)
			if err != nil {
				log.Error(err.Error())
				return nil
			}
			return List(ctx, s, q, cmd.String("jq"))
		}),
	}
}

func typeNames() []string {
	out := make([]string, len(model.PollTypes))
	for i, t := range model.PollTypes {
		out[i] = string(t)
	}
	return out
}

func statusNames() []string {
	out := make([]string, len(model.PollStatuses))
	for i, st := range model.PollStatuses {
		out[i] = string(st)
	}
	return out
}

// QueryFromFlags builds a poll query from the list flags.
func QueryFromFlags(cmd *cli.Command) (registrystore.PollQuery, error) {
	q := registrystore.PollQuery{
		Creator:   cmd.String("creator"),
		Keyword:   cmd.String("search"),
		Limit:     cmd.Int("limit"),
		SortField: cmd.String("sort"),
	}
	if raw := cmd.String("type"); raw != "" {
		t, ok := model.ParsePollType(raw)
		if !ok {
			return q, fmt.Errorf("unknown poll type %q; valid: %s", raw, strings.Join(typeNames(), ", "))
		}
		q.Type = t
	}
	if raw := cmd.String("status"); raw != "" {
		st, ok := model.ParsePollStatus(raw)
		if !ok {
			return q, fmt.Errorf("unknown poll status %q; valid: %s", raw, strings.Join(statusNames(), ", "))
		}
		q.Status = st
	}
	dir, err := ParseOrder(cmd.String("order"))
	if err != nil {
		return q, err
	}
	q.SortDirection = dir
	return q, nil
}

// ParseOrder maps asc/desc to a sort direction.
func ParseOrder(raw string) (registrystore.SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "desc", "descending":
		return registrystore.SortDescending, nil
	case "asc", "ascending":
		return registrystore.SortAscending, nil
	default:
		return 0, fmt.Errorf("unknown sort order %q; valid: asc, desc", raw)
	}
}

// List prints the polls matching q, or the results of expr over them.
func List(ctx context.Context, s *app.Session, q registrystore.PollQuery, expr string) error {
	polls, err := s.Admin.List(ctx, q)
	if err != nil {
		return err
	}
	if expr == "" {
		s.Println(render.Polls(polls))
		if len(polls) > 0 {
			s.Printf("%d polls shown\n", len(polls))
		}
		return nil
	}
	results, err := admin.Project(polls, expr)
	if err != nil {
		return app.Fail("jq evaluation failed", err)
	}
	for _, r := range results {
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		s.Println(string(b))
	}
	return nil
}

func viewCommand() *cli.Command {
	return &cli.Command{
		Name:  "view",
		Usage: "Show one poll with its counted votes",
		Flags: []cli.Flag{pollIDFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.String("poll-id")
			if id == "" {
				log.Error("--poll-id is required for view")
				return nil
			}
			return app.Action(func(ctx context.Context, _ *cli.Command, s *app.Session) error {
				return View(ctx, s, id)
			})(ctx, cmd)
		},
	}
}

// View prints one poll. Unknown or malformed ids are reported, not fatal.
func View(ctx context.Context, s *app.Session, id string) error {
	d, err := s.Admin.View(ctx, id)
	if err != nil {
		var invalid *model.InvalidIDError
		var notFound *registrystore.NotFoundError
		if errors.As(err, &invalid) || errors.As(err, &notFound) {
			return app.Fail("Poll not found", err)
		}
		return err
	}
	s.Println(render.PollDetail(d))
	return nil
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete one poll and its votes",
		Flags: []cli.Flag{pollIDFlag(), forceFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.String("poll-id")
			if id == "" {
				log.Error("--poll-id is required for delete")
				return nil
			}
			return app.Action(func(ctx context.Context, cmd *cli.Command, s *app.Session) error {
				return Delete(ctx, s, id, prompt.Force(cmd.Bool("force"), s.Confirm))
			})(ctx, cmd)
		},
	}
}

// Delete removes one poll and its votes after confirmation.
func Delete(ctx context.Context, s *app.Session, id string, confirm prompt.Confirmer) error {
	res := s.Admin.Delete(ctx, id, confirm)
	return app.Report(res.Outcome)
}

func deleteAllCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-all",
		Usage: "Delete every poll and vote",
		Flags: []cli.Flag{forceFlag()},
		Action: app.Action(func(ctx context.Context, cmd *cli.Command, s *app.Session) error {
			return DeleteAll(ctx, s, prompt.Force(cmd.Bool("force"), s.Confirm))
		}),
	}
}

// DeleteAll empties both collections after confirmation.
func DeleteAll(ctx context.Context, s *app.Session, confirm prompt.Confirmer) error {
	res := s.Admin.DeleteAll(ctx, confirm)
	return app.Report(res.Outcome)
}
