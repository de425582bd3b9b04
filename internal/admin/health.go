package admin

import (
	"context"
	"fmt"

	"github.com/yidakee/partivotes/internal/metrics"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// CounterMismatch is a poll whose stored total differs from its votes.
type CounterMismatch struct {
	PollID  bson.ObjectID
	Title   string
	Stored  int64
	Counted int64
}

// HealthReport summarizes the state of the database.
type HealthReport struct {
	Stats      *registrystore.DatabaseStats
	Polls      int64
	Votes      int64
	Incomplete []bson.ObjectID
	Mismatches []CounterMismatch
	Latency    []metrics.OperationLatency
}

// Health pings the store and gathers statistics. Divergent vote counters
// are reported and left as they are.
func (s *Service) Health(ctx context.Context) (*HealthReport, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read database stats: %w", err)
	}
	r := &HealthReport{Stats: stats}
	if r.Polls, err = s.store.CountPolls(ctx); err != nil {
		return nil, fmt.Errorf("failed to count polls: %w", err)
	}
	if r.Votes, err = s.store.CountVotes(ctx); err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	if r.Incomplete, err = s.store.IncompletePollIDs(ctx); err != nil {
		return nil, fmt.Errorf("failed to check poll integrity: %w", err)
	}

	polls, err := s.store.AllPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read polls: %w", err)
	}
	tally, err := s.store.VoteTally(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes per poll: %w", err)
	}
	for _, p := range polls {
		if counted := tally[p.ID]; counted != p.TotalVotes {
			r.Mismatches = append(r.Mismatches, CounterMismatch{
				PollID:  p.ID,
				Title:   p.Title,
				Stored:  p.TotalVotes,
				Counted: counted,
			})
		}
	}

	// Empty until InitMetrics has run.
	r.Latency, _ = metrics.StoreLatencySummary()
	return r, nil
}

// Healthy reports whether no integrity problem was found.
func (r *HealthReport) Healthy() bool {
	return len(r.Incomplete) == 0 && len(r.Mismatches) == 0
}
