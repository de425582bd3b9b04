// Package admin implements the poll queries and destructive operations
// exposed by the dbmanager commands.
package admin

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/model"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
)

// Service runs admin operations against a PollStore.
type Service struct {
	store registrystore.PollStore
}

// New returns a Service over s.
func New(s registrystore.PollStore) *Service {
	return &Service{store: s}
}

// List returns at most q.Limit polls matching q. A non-positive limit means
// config.DefaultListLimit and an empty sort field means newest first.
func (s *Service) List(ctx context.Context, q registrystore.PollQuery) ([]model.Poll, error) {
	if q.Limit <= 0 {
		q.Limit = config.DefaultListLimit
	}
	if q.SortField == "" {
		q.SortField = registrystore.DefaultSortField
	}
	if q.SortDirection == 0 {
		q.SortDirection = registrystore.SortDescending
	}
	polls, err := s.store.ListPolls(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	if len(polls) > q.Limit {
		polls = polls[:q.Limit]
	}
	return polls, nil
}

// PollDetail is a poll together with the number of votes referencing it.
type PollDetail struct {
	Poll         model.Poll
	CountedVotes int64
	// Invalid is set when the stored document fails boundary validation.
	Invalid error
}

// CounterDiverges reports whether the stored total disagrees with the votes.
func (d *PollDetail) CounterDiverges() bool {
	return d.Poll.TotalVotes != d.CountedVotes
}

// View loads one poll by its hex identifier.
func (s *Service) View(ctx context.Context, rawID string) (*PollDetail, error) {
	id, err := model.ParsePollID(rawID)
	if err != nil {
		return nil, err
	}
	poll, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	counted, err := s.store.CountVotesForPoll(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	d := &PollDetail{Poll: *poll, CountedVotes: counted}
	if err := model.ValidatePoll(poll); err != nil {
		log.Warn("Poll document is incomplete", "poll", id.Hex(), "err", err)
		d.Invalid = err
	}
	return d, nil
}
