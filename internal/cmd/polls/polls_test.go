package polls

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"github.com/yidakee/partivotes/internal/cmd/app"
	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/model"
	"github.com/yidakee/partivotes/internal/plugin/store/memory"
	"github.com/yidakee/partivotes/internal/prompt"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func parseListFlags(t *testing.T, args ...string) (registrystore.PollQuery, error) {
	t.Helper()
	var (
		q      registrystore.PollQuery
		qerr   error
		called bool
	)
	cmd := listCommand()
	cmd.Action = func(_ context.Context, cmd *cli.Command) error {
		called = true
		q, qerr = QueryFromFlags(cmd)
		return nil
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"list"}, args...)))
	require.True(t, called)
	return q, qerr
}

func TestQueryFromFlags(t *testing.T) {
	q, err := parseListFlags(t,
		"--type", "single_choice",
		"--status", "Active",
		"--creator", "0xAb",
		"--search", "budget",
		"--limit", "5",
		"--order", "asc",
	)
	require.NoError(t, err)
	assert.Equal(t, model.PollTypeSingleChoice, q.Type)
	assert.Equal(t, model.PollStatusActive, q.Status)
	assert.Equal(t, "0xAb", q.Creator)
	assert.Equal(t, "budget", q.Keyword)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, registrystore.DefaultSortField, q.SortField)
	assert.Equal(t, registrystore.SortAscending, q.SortDirection)
}

func TestQueryFromFlagsDefaults(t *testing.T) {
	q, err := parseListFlags(t)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultListLimit, q.Limit)
	assert.Equal(t, registrystore.SortDescending, q.SortDirection)
	assert.Empty(t, q.Type)
	assert.Empty(t, q.Status)
}

func TestQueryFromFlagsRejectsUnknownValues(t *testing.T) {
	_, err := parseListFlags(t, "--type", "approval")
	assert.ErrorContains(t, err, `unknown poll type "approval"`)

	_, err = parseListFlags(t, "--status", "archived")
	assert.ErrorContains(t, err, `unknown poll status "archived"`)

	_, err = parseListFlags(t, "--order", "sideways")
	assert.ErrorContains(t, err, "unknown sort order")
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		raw  string
		want registrystore.SortDirection
	}{
		{"", registrystore.SortDescending},
		{"desc", registrystore.SortDescending},
		{"DESCENDING", registrystore.SortDescending},
		{"asc", registrystore.SortAscending},
		{" Ascending ", registrystore.SortAscending},
	}
	for _, tt := range tests {
		got, err := ParseOrder(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func newSession(t *testing.T, polls ...model.Poll) (*app.Session, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if len(polls) > 0 {
		require.NoError(t, store.InsertPolls(ctx, polls))
	}
	cfg := config.DefaultConfig()
	cfg.BackupDir = t.TempDir()
	cfg.ExportDir = t.TempDir()
	var out bytes.Buffer
	return app.NewSession(ctx, &cfg, store, strings.NewReader(""), &out), &out
}

func poll(title string, created time.Time) model.Poll {
	return model.Poll{
		ID:        bson.NewObjectID(),
		Title:     title,
		Creator:   "0xabc",
		Type:      model.PollTypeSingleChoice,
		Status:    model.PollStatusActive,
		Options:   []model.PollOption{{Text: "Yes"}, {Text: "No"}},
		CreatedAt: &created,
	}
}

func TestListPrintsTable(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, out := newSession(t, poll("Alpha", base), poll("Beta", base.Add(time.Hour)))

	require.NoError(t, List(context.Background(), s, registrystore.PollQuery{}, ""))
	text := out.String()
	assert.Contains(t, text, "Alpha")
	assert.Contains(t, text, "Beta")
	assert.Contains(t, text, "2 polls shown")
	assert.Less(t, strings.Index(text, "Beta"), strings.Index(text, "Alpha"))
}

func TestListEmpty(t *testing.T) {
	s, out := newSession(t)
	require.NoError(t, List(context.Background(), s, registrystore.PollQuery{}, ""))
	assert.Contains(t, out.String(), "No polls found")
}

func TestListWithJQ(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, out := newSession(t, poll("Alpha", base))

	require.NoError(t, List(context.Background(), s, registrystore.PollQuery{}, ".[].title"))
	assert.Equal(t, "\"Alpha\"\n", out.String())

	out.Reset()
	assert.Error(t, List(context.Background(), s, registrystore.PollQuery{}, ".[."))
	assert.Empty(t, out.String())
}

func TestViewReportsUnknownPoll(t *testing.T) {
	s, out := newSession(t)
	assert.Error(t, View(context.Background(), s, bson.NewObjectID().Hex()))
	assert.Error(t, View(context.Background(), s, "not-an-id"))
	assert.Empty(t, out.String())
}

func TestDeleteWithForce(t *testing.T) {
	p := poll("Alpha", time.Now())
	s, _ := newSession(t, p)
	never := prompt.ConfirmFunc(func(string) bool { return false })

	assert.Error(t, Delete(context.Background(), s, p.ID.Hex(), never))
	n, err := s.Store.CountPolls(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, Delete(context.Background(), s, p.ID.Hex(), prompt.Force(true, never)))
	n, err = s.Store.CountPolls(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteAll(t *testing.T) {
	s, _ := newSession(t, poll("Alpha", time.Now()), poll("Beta", time.Now()))
	yes := prompt.ConfirmFunc(func(string) bool { return true })

	require.NoError(t, DeleteAll(context.Background(), s, yes))
	n, err := s.Store.CountPolls(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
