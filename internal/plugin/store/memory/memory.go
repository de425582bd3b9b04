// Package memory provides an in-process PollStore. It backs tests and dry
// runs with the same filtering and ordering rules as the mongo store.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yidakee/partivotes/internal/config"
	"github.com/yidakee/partivotes/internal/model"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "memory",
		Loader: func(ctx context.Context) (registrystore.PollStore, error) {
			return New(), nil
		},
	})
}

// Store keeps polls and votes in insertion order.
type Store struct {
	mu    sync.RWMutex
	polls []model.Poll
	votes []model.Vote
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matches(p *model.Poll, q registrystore.PollQuery) bool {
	if q.Type != "" && p.Type != q.Type {
		return false
	}
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	if q.Creator != "" && !containsFold(p.Creator, q.Creator) {
		return false
	}
	if q.Keyword != "" && !containsFold(p.Title, q.Keyword) && !containsFold(p.Description, q.Keyword) {
		return false
	}
	return true
}

func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

func comparePolls(field string, a, b *model.Poll) int {
	switch field {
	case "createdAt":
		return compareTime(a.CreatedAt, b.CreatedAt)
	case "updatedAt":
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	case "startDate":
		return compareTime(a.StartDate, b.StartDate)
	case "endDate":
		return compareTime(a.EndDate, b.EndDate)
	case "title":
		return cmp.Compare(a.Title, b.Title)
	case "type":
		return cmp.Compare(a.Type, b.Type)
	case "status":
		return cmp.Compare(a.Status, b.Status)
	case "creator":
		return cmp.Compare(a.Creator, b.Creator)
	case "totalVotes":
		return cmp.Compare(a.TotalVotes, b.TotalVotes)
	default:
		return 0
	}
}

func (s *Store) ListPolls(_ context.Context, q registrystore.PollQuery) ([]model.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = config.DefaultListLimit
	}

	out := []model.Poll{}
	for i := range s.polls {
		if matches(&s.polls[i], q) {
			out = append(out, s.polls[i])
		}
	}

	if q.SortField != "" {
		if registrystore.IsSortable(q.SortField) {
			dir := q.SortDirection
			if dir == 0 {
				dir = registrystore.SortDescending
			}
			slices.SortStableFunc(out, func(a, b model.Poll) int {
				return int(dir) * comparePolls(q.SortField, &a, &b)
			})
		} else {
			log.Warn("Ignoring unknown sort field", "field", q.SortField)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetPoll(_ context.Context, id bson.ObjectID) (*model.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.polls {
		if s.polls[i].ID == id {
			p := s.polls[i]
			return &p, nil
		}
	}
	return nil, &registrystore.NotFoundError{Resource: "poll", ID: id.Hex()}
}

func (s *Store) AllPolls(context.Context) ([]model.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.polls), nil
}

func (s *Store) AllVotes(context.Context) ([]model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.votes), nil
}

func (s *Store) CountPolls(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.polls)), nil
}

func (s *Store) CountVotes(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.votes)), nil
}

func (s *Store) CountVotesForPoll(_ context.Context, pollID bson.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, v := range s.votes {
		if v.PollID == pollID {
			n++
		}
	}
	return n, nil
}

func (s *Store) VoteTally(context.Context) (map[bson.ObjectID]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tally := map[bson.ObjectID]int64{}
	for _, v := range s.votes {
		tally[v.PollID]++
	}
	return tally, nil
}

func (s *Store) DeletePoll(_ context.Context, id bson.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.polls)
	s.polls = slices.DeleteFunc(s.polls, func(p model.Poll) bool { return p.ID == id })
	return int64(before - len(s.polls)), nil
}

func (s *Store) DeleteVotesForPoll(_ context.Context, pollID bson.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.votes)
	s.votes = slices.DeleteFunc(s.votes, func(v model.Vote) bool { return v.PollID == pollID })
	return int64(before - len(s.votes)), nil
}

func (s *Store) DeleteAllPolls(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.polls)
	s.polls = nil
	return int64(n), nil
}

func (s *Store) DeleteAllVotes(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.votes)
	s.votes = nil
	return int64(n), nil
}

func (s *Store) InsertPolls(_ context.Context, polls []model.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range polls {
		for _, existing := range s.polls {
			if existing.ID == p.ID {
				return fmt.Errorf("failed to insert polls: duplicate key %s", p.ID.Hex())
			}
		}
		s.polls = append(s.polls, p)
	}
	return nil
}

func (s *Store) InsertVotes(_ context.Context, votes []model.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range votes {
		for _, existing := range s.votes {
			if existing.ID == v.ID {
				return fmt.Errorf("failed to insert votes: duplicate key %s", v.ID.Hex())
			}
		}
		s.votes = append(s.votes, v)
	}
	return nil
}

// Stats reports the BSON-encoded size of the stored documents.
func (s *Store) Stats(context.Context) (*registrystore.DatabaseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var size int64
	for i := range s.polls {
		b, err := bson.Marshal(s.polls[i])
		if err != nil {
			return nil, fmt.Errorf("failed to size poll %s: %w", s.polls[i].ID.Hex(), err)
		}
		size += int64(len(b))
	}
	for i := range s.votes {
		b, err := bson.Marshal(s.votes[i])
		if err != nil {
			return nil, fmt.Errorf("failed to size vote %s: %w", s.votes[i].ID.Hex(), err)
		}
		size += int64(len(b))
	}
	return &registrystore.DatabaseStats{
		Name:        "memory",
		DataSize:    size,
		StorageSize: size,
		Collections: []string{"polls", "votes"},
	}, nil
}

func (s *Store) IncompletePollIDs(context.Context) ([]bson.ObjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []bson.ObjectID
	for _, p := range s.polls {
		if p.Title == "" || len(p.Options) == 0 || p.Status == "" {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}
