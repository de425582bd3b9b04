// Package render formats admin results for the terminal.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/yidakee/partivotes/internal/admin"
	"github.com/yidakee/partivotes/internal/backup"
	"github.com/yidakee/partivotes/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(16)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const titleWidth = 40

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// Date renders t in UTC minutes, or N/A when unset.
func Date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// Bytes renders a size with a binary unit.
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// Polls renders a poll list.
func Polls(polls []model.Poll) string {
	if len(polls) == 0 {
		return "No polls found"
	}
	rows := make([][]string, len(polls))
	for i, p := range polls {
		rows[i] = []string{
			p.ID.Hex(),
			truncate(p.Title, titleWidth),
			string(p.Type),
			string(p.Status),
			truncate(p.Creator, 20),
			strconv.FormatInt(p.TotalVotes, 10),
			Date(p.CreatedAt),
		}
	}
	return Table([]string{"ID", "Title", "Type", "Status", "Creator", "Votes", "Created"}, rows)
}

func field(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label+":") + " " + value + "\n")
}

// PollDetail renders a single poll with both vote numbers.
func PollDetail(d *admin.PollDetail) string {
	p := &d.Poll
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Title) + "\n\n")
	field(&b, "ID", p.ID.Hex())
	field(&b, "Description", p.Description)
	field(&b, "Type", string(p.Type))
	if p.MaxSelections != nil {
		field(&b, "Max selections", strconv.FormatInt(*p.MaxSelections, 10))
	}
	field(&b, "Status", string(p.Status))
	field(&b, "Creator", p.Creator)
	if p.Network != "" {
		field(&b, "Network", p.Network)
	}
	field(&b, "Created", Date(p.CreatedAt))
	field(&b, "Updated", Date(p.UpdatedAt))
	field(&b, "Start", Date(p.StartDate))
	field(&b, "End", Date(p.EndDate))
	field(&b, "Total votes", strconv.FormatInt(p.TotalVotes, 10))
	counted := strconv.FormatInt(d.CountedVotes, 10)
	if d.CounterDiverges() {
		counted = warnStyle.Render(counted + " (differs from stored total)")
	}
	field(&b, "Counted votes", counted)
	if d.Invalid != nil {
		field(&b, "Warning", warnStyle.Render(d.Invalid.Error()))
	}

	rows := make([][]string, len(p.Options))
	for i, o := range p.Options {
		rows[i] = []string{strconv.Itoa(i + 1), o.Text, strconv.FormatInt(o.Votes, 10)}
	}
	b.WriteString("\n" + Table([]string{"#", "Option", "Votes"}, rows))
	return b.String()
}

// Backups renders backup files in the order given.
func Backups(files []backup.File) string {
	if len(files) == 0 {
		return "No backups found"
	}
	rows := make([][]string, len(files))
	for i, f := range files {
		created := "unknown"
		if !f.CreatedAt.IsZero() {
			created = f.CreatedAt.Format("2006-01-02 15:04:05")
		}
		rows[i] = []string{strconv.Itoa(i + 1), created, Bytes(f.Size), f.Name}
	}
	return Table([]string{"#", "Created", "Size", "Filename"}, rows)
}

// Health renders a health report.
func Health(r *admin.HealthReport) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Database health") + "\n\n")
	if r.Stats != nil {
		field(&b, "Database", r.Stats.Name)
		field(&b, "Data size", Bytes(r.Stats.DataSize))
		field(&b, "Storage size", Bytes(r.Stats.StorageSize))
		field(&b, "Collections", fmt.Sprintf("%d (%s)", len(r.Stats.Collections), strings.Join(r.Stats.Collections, ", ")))
	}
	field(&b, "Polls", strconv.FormatInt(r.Polls, 10))
	field(&b, "Votes", strconv.FormatInt(r.Votes, 10))

	if len(r.Incomplete) == 0 {
		field(&b, "Integrity", "all polls have title, options and status")
	} else {
		ids := make([]string, len(r.Incomplete))
		for i, id := range r.Incomplete {
			ids[i] = id.Hex()
		}
		field(&b, "Integrity", warnStyle.Render(fmt.Sprintf("%d incomplete polls: %s", len(ids), strings.Join(ids, ", "))))
	}

	if len(r.Mismatches) > 0 {
		rows := make([][]string, len(r.Mismatches))
		for i, m := range r.Mismatches {
			rows[i] = []string{m.PollID.Hex(), truncate(m.Title, titleWidth), strconv.FormatInt(m.Stored, 10), strconv.FormatInt(m.Counted, 10)}
		}
		b.WriteString("\n" + warnStyle.Render("Vote counters differing from counted votes:") + "\n")
		b.WriteString(Table([]string{"Poll ID", "Title", "Stored", "Counted"}, rows) + "\n")
	}

	if len(r.Latency) > 0 {
		rows := make([][]string, len(r.Latency))
		for i, l := range r.Latency {
			rows[i] = []string{l.Operation, strconv.FormatUint(l.Count, 10), time.Duration(l.Mean() * float64(time.Second)).Round(time.Microsecond).String()}
		}
		b.WriteString("\n" + Table([]string{"Store operation", "Calls", "Mean"}, rows) + "\n")
	}
	return b.String()
}
