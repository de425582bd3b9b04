// Package export writes polls to CSV for spreadsheets.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/model"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"github.com/yidakee/partivotes/internal/tempfiles"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Header is the fixed column order of an export.
var Header = []string{
	"Poll ID", "Title", "Description", "Type", "Status", "Creator",
	"Total Votes", "Actual Vote Count", "Created At", "Start Date", "End Date", "Options",
}

const (
	dateLayout = "2006-01-02 15:04"
	nameLayout = "20060102_150405"
)

// ErrNoPolls is returned when there is nothing to export. No file is written.
var ErrNoPolls = errors.New("no polls found to export")

// Result reports a finished export.
type Result struct {
	Path string
	Rows int
}

// Exporter renders the polls collection.
type Exporter struct {
	store registrystore.PollStore
	dir   string
	now   func() time.Time
}

// New returns an Exporter writing default files into cfg.ExportDir.
func New(s registrystore.PollStore, cfg *config.Config) *Exporter {
	dir := "exports"
	if cfg != nil && strings.TrimSpace(cfg.ExportDir) != "" {
		dir = cfg.ExportDir
	}
	return &Exporter{store: s, dir: dir, now: time.Now}
}

// DefaultPath returns the timestamped file name used when no output is given.
func (e *Exporter) DefaultPath() string {
	return filepath.Join(e.dir, "polls_export_"+e.now().Format(nameLayout)+".csv")
}

// CSV writes every poll, in stored order, to outputPath (DefaultPath when
// empty). Each row carries both the stored total and the counted votes.
func (e *Exporter) CSV(ctx context.Context, outputPath string) (*Result, error) {
	polls, err := e.store.AllPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read polls: %w", err)
	}
	if len(polls) == 0 {
		return nil, ErrNoPolls
	}
	tally, err := e.store.VoteTally(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	if outputPath == "" {
		outputPath = e.DefaultPath()
	}
	if _, err := tempfiles.WriteFile(outputPath, func(w io.Writer) error {
		return Write(w, polls, tally)
	}); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}
	return &Result{Path: outputPath, Rows: len(polls)}, nil
}

// Write renders the header and one row per poll.
func Write(w io.Writer, polls []model.Poll, tally map[bson.ObjectID]int64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range polls {
		if err := cw.Write(Row(&polls[i], tally[polls[i].ID])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders a single poll.
func Row(p *model.Poll, counted int64) []string {
	return []string{
		p.ID.Hex(),
		p.Title,
		p.Description,
		string(p.Type),
		string(p.Status),
		p.Creator,
		strconv.FormatInt(p.TotalVotes, 10),
		strconv.FormatInt(counted, 10),
		FormatDate(p.CreatedAt),
		FormatDate(p.StartDate),
		FormatDate(p.EndDate),
		FormatOptions(p.Options),
	}
}

// FormatDate renders t in UTC, or N/A when unset.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(dateLayout)
}

// FormatOptions renders "text (N votes)" entries joined by "; ".
func FormatOptions(options []model.PollOption) string {
	parts := make([]string, len(options))
	for i, o := range options {
		parts[i] = fmt.Sprintf("%s (%d votes)", o.Text, o.Votes)
	}
	return strings.Join(parts, "; ")
}
