package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/yidakee/partivotes/internal/model"
	"github.com/yidakee/partivotes/internal/prompt"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
)

// RestoreResult reports how far a restore got.
type RestoreResult struct {
	model.Outcome
	// SafetyBackup is the path of the backup taken before existing data was
	// replaced, empty when the store was empty.
	SafetyBackup  string
	PollsRestored int
	VotesRestored int
}

// Restore replaces both collections with the contents of the backup at path.
// The file is fully decoded before anything is deleted. When the store holds
// data the operator is asked through confirm and a safety backup is taken.
func (m *Manager) Restore(ctx context.Context, path string, confirm prompt.Confirmer) RestoreResult {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = &registrystore.NotFoundError{Resource: "backup file", ID: path}
		}
		return RestoreResult{Outcome: model.Failed("cannot read backup file", err)}
	}
	snap, err := DecodeSnapshot(path, data)
	if err != nil {
		return RestoreResult{Outcome: model.Failed("cannot decode backup file", err)}
	}
	polls, votes, err := snap.Documents(path)
	if err != nil {
		return RestoreResult{Outcome: model.Failed("cannot decode backup file", err)}
	}

	pollCount, err := m.store.CountPolls(ctx)
	if err != nil {
		return RestoreResult{Outcome: model.Failed("cannot count polls", err)}
	}
	voteCount, err := m.store.CountVotes(ctx)
	if err != nil {
		return RestoreResult{Outcome: model.Failed("cannot count votes", err)}
	}

	var res RestoreResult
	if pollCount > 0 || voteCount > 0 {
		question := fmt.Sprintf("The database holds %d polls and %d votes that will be replaced by %d polls and %d votes. Continue?",
			pollCount, voteCount, len(polls), len(votes))
		if !confirm.Confirm(question) {
			return RestoreResult{Outcome: model.Failed("cancelled", nil)}
		}
		safety, err := m.Create(ctx)
		if err != nil {
			return RestoreResult{Outcome: model.Failed("safety backup failed, restore aborted", err)}
		}
		res.SafetyBackup = safety.Path
		log.Info("Safety backup created", "file", safety.Name)
	}

	partial := func(step string, err error) RestoreResult {
		detail := step
		if res.SafetyBackup != "" {
			detail = fmt.Sprintf("%s; previous data is in %s", step, res.SafetyBackup)
		}
		res.Outcome = model.Partial(detail, err)
		return res
	}

	if _, err := m.store.DeleteAllPolls(ctx); err != nil {
		res.Outcome = model.Failed("cannot clear polls", err)
		return res
	}
	if _, err := m.store.DeleteAllVotes(ctx); err != nil {
		return partial("cannot clear votes", err)
	}
	if err := m.store.InsertPolls(ctx, polls); err != nil {
		return partial("cannot insert polls", err)
	}
	res.PollsRestored = len(polls)
	if err := m.store.InsertVotes(ctx, votes); err != nil {
		return partial("cannot insert votes", err)
	}
	res.VotesRestored = len(votes)
	res.Outcome = model.Succeeded(fmt.Sprintf("restored %d polls and %d votes", len(polls), len(votes)))
	return res
}
