package admin

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/yidakee/partivotes/internal/model"
	"github.com/yidakee/partivotes/internal/prompt"
)

// DeleteResult reports what a delete sequence removed.
type DeleteResult struct {
	model.Outcome
	PollsDeleted int64
	VotesDeleted int64
}

// Delete removes one poll and the votes referencing it. Votes go first; if
// that step fails the poll is still deleted and the result is a
// PartialFailure. A malformed or unknown id never touches the store.
func (s *Service) Delete(ctx context.Context, rawID string, confirm prompt.Confirmer) DeleteResult {
	id, err := model.ParsePollID(rawID)
	if err != nil {
		return DeleteResult{Outcome: model.Failed("invalid poll id", err)}
	}
	poll, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return DeleteResult{Outcome: model.Failed("cannot load poll", err)}
	}
	if !confirm.Confirm(fmt.Sprintf("Delete poll %q (%s) and all of its votes?", poll.Title, id.Hex())) {
		return DeleteResult{Outcome: model.Failed("cancelled", nil)}
	}

	var res DeleteResult
	votesDeleted, voteErr := s.store.DeleteVotesForPoll(ctx, id)
	if voteErr != nil {
		log.Warn("Failed to delete votes for poll", "poll", id.Hex(), "err", voteErr)
	} else {
		res.VotesDeleted = votesDeleted
	}

	pollsDeleted, err := s.store.DeletePoll(ctx, id)
	if err == nil && pollsDeleted == 0 {
		err = fmt.Errorf("poll %s matched no documents", id.Hex())
	}
	if err != nil {
		if res.VotesDeleted > 0 {
			res.Outcome = model.Partial(fmt.Sprintf("deleted %d votes but not the poll", res.VotesDeleted), err)
		} else {
			res.Outcome = model.Failed("poll was not deleted", err)
		}
		return res
	}
	res.PollsDeleted = pollsDeleted

	if voteErr != nil {
		res.Outcome = model.Partial("poll deleted but its votes were not", voteErr)
		return res
	}
	res.Outcome = model.Succeeded(fmt.Sprintf("deleted poll %s and %d votes", id.Hex(), res.VotesDeleted))
	return res
}

// DeleteAll empties both collections, votes first.
func (s *Service) DeleteAll(ctx context.Context, confirm prompt.Confirmer) DeleteResult {
	polls, err := s.store.CountPolls(ctx)
	if err != nil {
		return DeleteResult{Outcome: model.Failed("cannot count polls", err)}
	}
	votes, err := s.store.CountVotes(ctx)
	if err != nil {
		return DeleteResult{Outcome: model.Failed("cannot count votes", err)}
	}
	if !confirm.Confirm(fmt.Sprintf("Delete ALL %d polls and %d votes? This cannot be undone.", polls, votes)) {
		return DeleteResult{Outcome: model.Failed("cancelled", nil)}
	}

	var res DeleteResult
	res.VotesDeleted, err = s.store.DeleteAllVotes(ctx)
	if err != nil {
		res.VotesDeleted = 0
		res.Outcome = model.Failed("cannot delete votes", err)
		return res
	}
	res.PollsDeleted, err = s.store.DeleteAllPolls(ctx)
	if err != nil {
		res.PollsDeleted = 0
		res.Outcome = model.Partial(fmt.Sprintf("deleted %d votes but no polls", res.VotesDeleted), err)
		return res
	}
	res.Outcome = model.Succeeded(fmt.Sprintf("deleted %d polls and %d votes", res.PollsDeleted, res.VotesDeleted))
	return res
}
