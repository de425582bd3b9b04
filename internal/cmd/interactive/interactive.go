// Package interactive provides a numbered menu over every dbmanager operation.
package interactive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
	"github.com/yidakee/partivotes/internal/backup"
	"github.com/yidakee/partivotes/internal/cmd/app"
	cmdbackup "github.com/yidakee/partivotes/internal/cmd/backup"
	cmdexport "github.com/yidakee/partivotes/internal/cmd/export"
	cmdhealth "github.com/yidakee/partivotes/internal/cmd/health"
	"github.com/yidakee/partivotes/internal/cmd/polls"
	"github.com/yidakee/partivotes/internal/model"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"github.com/yidakee/partivotes/internal/render"
)

// menuListLimit is the number of polls shown by the list entry.
const menuListLimit = 50

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).
			Border(lipgloss.DoubleBorder()).Padding(0, 2)
	headingStyle = lipgloss.NewStyle().Bold(true)
)

var mainOptions = []string{
	"List polls",
	"View poll details",
	"Delete poll",
	"Delete all polls",
	"Create backup",
	"List backups",
	"Restore from backup",
	"Export polls to CSV",
	"Check database health",
}

// Command returns the interactive sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "interactive",
		Usage: "Run the interactive menu",
		Action: app.Action(func(ctx context.Context, _ *cli.Command, s *app.Session) error {
			return New(s).Run(ctx)
		}),
	}
}

// Menu drives the session from the terminal.
type Menu struct {
	s *app.Session
}

// New returns a Menu reading from the session terminal.
func New(s *app.Session) *Menu {
	return &Menu{s: s}
}

// Run shows the main menu until the operator exits or input ends.
func (m *Menu) Run(ctx context.Context) error {
	m.s.Println(bannerStyle.Render("PartiVotes Database Manager"))
	for {
		m.printMenu("Main Menu", mainOptions, "Exit")
		choice, ok := m.choose(len(mainOptions))
		if !ok || choice == 0 {
			m.s.Println("Goodbye.")
			return nil
		}
		switch choice {
		case 1:
			m.listPolls(ctx, registrystore.PollQuery{Limit: menuListLimit})
			continue
		case 2:
			if id, ok := m.readPollID(); ok {
				m.handle("view", polls.View(ctx, m.s, id))
			}
		case 3:
			if id, ok := m.readPollID(); ok {
				m.handle("delete", polls.Delete(ctx, m.s, id, m.s.Confirm))
			}
		case 4:
			m.handle("delete-all", polls.DeleteAll(ctx, m.s, m.s.Confirm))
		case 5:
			m.handle("backup", cmdbackup.Create(ctx, m.s))
		case 6:
			m.listBackups(ctx)
			continue
		case 7:
			m.restore(ctx, nil)
		case 8:
			m.handle("export", cmdexport.Run(ctx, m.s, ""))
		case 9:
			m.handle("health", cmdhealth.Run(ctx, m.s))
		}
		m.wait()
	}
}

func (m *Menu) handle(operation string, err error) {
	app.Handle(operation, err)
}

func (m *Menu) printMenu(title string, options []string, back string) {
	m.s.Println()
	m.s.Println(headingStyle.Render(title))
	m.s.Println(strings.Repeat("-", len(title)))
	for i, o := range options {
		m.s.Printf("%d. %s\n", i+1, o)
	}
	m.s.Printf("0. %s\n\n", back)
}

// choose reads a number between 0 and max, asking again on bad input.
// It returns false when input has ended.
func (m *Menu) choose(max int) (int, bool) {
	for {
		line, err := m.s.Terminal.ReadLine(fmt.Sprintf("Enter your choice (0-%d): ", max))
		if err != nil {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			m.s.Println("Invalid input. Please enter a number.")
			continue
		}
		if n < 0 || n > max {
			m.s.Printf("Invalid choice. Please enter a number between 0 and %d.\n", max)
			continue
		}
		return n, true
	}
}

func (m *Menu) wait() {
	_, _ = m.s.Terminal.ReadLine("\nPress Enter to continue...")
}

func (m *Menu) readPollID() (string, bool) {
	line, err := m.s.Terminal.ReadLine("Enter poll ID (empty to go back): ")
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(line)
	return id, id != ""
}

func (m *Menu) ask(label string) string {
	line, err := m.s.Terminal.ReadLine(label)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func (m *Menu) listPolls(ctx context.Context, q registrystore.PollQuery) {
	found, err := m.s.Admin.List(ctx, q)
	if err != nil {
		m.handle("list", err)
		m.wait()
		return
	}
	m.s.Println(render.Polls(found))
	if len(found) == 0 {
		m.wait()
		return
	}

	m.printMenu("Options", []string{"View poll details", "Delete a poll", "Filter polls"}, "Back to main menu")
	choice, ok := m.choose(3)
	if !ok {
		return
	}
	switch choice {
	case 1:
		if p, ok := m.pickPoll(found, "view"); ok {
			m.handle("view", polls.View(ctx, m.s, p.ID.Hex()))
			m.wait()
		}
	case 2:
		if p, ok := m.pickPoll(found, "delete"); ok {
			m.handle("delete", polls.Delete(ctx, m.s, p.ID.Hex(), m.s.Confirm))
			m.wait()
		}
	case 3:
		m.listPolls(ctx, m.readFilter())
	}
}

func (m *Menu) pickPoll(list []model.Poll, verb string) (model.Poll, bool) {
	for {
		line, err := m.s.Terminal.ReadLine(fmt.Sprintf("Enter poll number to %s (0 to cancel): ", verb))
		if err != nil {
			return model.Poll{}, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 0 || n > len(list) {
			m.s.Printf("Invalid choice. Please enter a number between 0 and %d.\n", len(list))
			continue
		}
		if n == 0 {
			return model.Poll{}, false
		}
		return list[n-1], true
	}
}

func (m *Menu) readFilter() registrystore.PollQuery {
	q := registrystore.PollQuery{Limit: menuListLimit}
	if raw := m.ask("Poll type (blank for any): "); raw != "" {
		if t, ok := model.ParsePollType(raw); ok {
			q.Type = t
		} else {
			m.s.Printf("Ignoring unknown poll type %q.\n", raw)
		}
	}
	if raw := m.ask("Poll status (blank for any): "); raw != "" {
		if st, ok := model.ParsePollStatus(raw); ok {
			q.Status = st
		} else {
			m.s.Printf("Ignoring unknown poll status %q.\n", raw)
		}
	}
	q.Creator = m.ask("Creator address contains (blank for any): ")
	q.Keyword = m.ask("Title or description contains (blank for any): ")
	return q
}

func (m *Menu) listBackups(ctx context.Context) {
	files, err := m.s.Backups.List()
	if err != nil {
		m.handle("list-backups", err)
		m.wait()
		return
	}
	m.s.Println(render.Backups(files))
	if len(files) == 0 {
		m.wait()
		return
	}
	m.printMenu("Options", []string{"Restore a backup"}, "Back to main menu")
	if choice, ok := m.choose(1); ok && choice == 1 {
		m.restore(ctx, files)
		m.wait()
	}
}

// restore asks for a backup number from files, listing them first when nil.
func (m *Menu) restore(ctx context.Context, files []backup.File) {
	if files == nil {
		var err error
		if files, err = m.s.Backups.List(); err != nil {
			m.handle("restore", err)
			return
		}
		m.s.Println(render.Backups(files))
		if len(files) == 0 {
			return
		}
	}
	for {
		line, err := m.s.Terminal.ReadLine("Enter backup number to restore (0 to cancel): ")
		if err != nil {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 0 || n > len(files) {
			m.s.Printf("Invalid choice. Please enter a number between 0 and %d.\n", len(files))
			continue
		}
		if n == 0 {
			return
		}
		m.handle("restore", cmdbackup.Restore(ctx, m.s, files[n-1].Path, m.s.Confirm))
		return
	}
}
