package metrics

import (
	"context"
	"time"

	"github.com/yidakee/partivotes/internal/metrics"
	"github.com/yidakee/partivotes/internal/model"
	"github.com/yidakee/partivotes/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Wrap returns a PollStore that records StoreLatency for every operation.
func Wrap(inner store.PollStore) store.PollStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.PollStore
}

func observe(op string, start time.Time) {
	if metrics.StoreLatency == nil {
		return
	}
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) Ping(ctx context.Context) error {
	defer observe("ping", time.Now())
	return m.inner.Ping(ctx)
}

func (m *metricsStore) Close(ctx context.Context) error {
	return m.inner.Close(ctx)
}

func (m *metricsStore) ListPolls(ctx context.Context, query store.PollQuery) ([]model.Poll, error) {
	defer observe("list_polls", time.Now())
	return m.inner.ListPolls(ctx, query)
}

func (m *metricsStore) GetPoll(ctx context.Context, id bson.ObjectID) (*model.Poll, error) {
	defer observe("get_poll", time.Now())
	return m.inner.GetPoll(ctx, id)
}

func (m *metricsStore) AllPolls(ctx context.Context) ([]model.Poll, error) {
	defer observe("all_polls", time.Now())
	return m.inner.AllPolls(ctx)
}

func (m *metricsStore) AllVotes(ctx context.Context) ([]model.Vote, error) {
	defer observe("all_votes", time.Now())
	return m.inner.AllVotes(ctx)
}

func (m *metricsStore) CountPolls(ctx context.Context) (int64, error) {
	defer observe("count_polls", time.Now())
	return m.inner.CountPolls(ctx)
}

func (m *metricsStore) CountVotes(ctx context.Context) (int64, error) {
	defer observe("count_votes", time.Now())
	return m.inner.CountVotes(ctx)
}

func (m *metricsStore) CountVotesForPoll(ctx context.Context, pollID bson.ObjectID) (int64, error) {
	defer observe("count_votes_for_poll", time.Now())
	return m.inner.CountVotesForPoll(ctx, pollID)
}

func (m *metricsStore) VoteTally(ctx context.Context) (map[bson.ObjectID]int64, error) {
	defer observe("vote_tally", time.Now())
	return m.inner.VoteTally(ctx)
}

func (m *metricsStore) DeletePoll(ctx context.Context, id bson.ObjectID) (int64, error) {
	defer observe("delete_poll", time.Now())
	return m.inner.DeletePoll(ctx, id)
}

func (m *metricsStore) DeleteVotesForPoll(ctx context.Context, pollID bson.ObjectID) (int64, error) {
	defer observe("delete_votes_for_poll", time.Now())
	return m.inner.DeleteVotesForPoll(ctx, pollID)
}

func (m *metricsStore) DeleteAllPolls(ctx context.Context) (int64, error) {
	defer observe("delete_all_polls", time.Now())
	return m.inner.DeleteAllPolls(ctx)
}

func (m *metricsStore) DeleteAllVotes(ctx context.Context) (int64, error) {
	defer observe("delete_all_votes", time.Now())
	return m.inner.DeleteAllVotes(ctx)
}

func (m *metricsStore) InsertPolls(ctx context.Context, polls []model.Poll) error {
	defer observe("insert_polls", time.Now())
	return m.inner.InsertPolls(ctx, polls)
}

func (m *metricsStore) InsertVotes(ctx context.Context, votes []model.Vote) error {
	defer observe("insert_votes", time.Now())
	return m.inner.InsertVotes(ctx, votes)
}

func (m *metricsStore) Stats(ctx context.Context) (*store.DatabaseStats, error) {
	defer observe("stats", time.Now())
	return m.inner.Stats(ctx)
}

func (m *metricsStore) IncompletePollIDs(ctx context.Context) ([]bson.ObjectID, error) {
	defer observe("incomplete_poll_ids", time.Now())
	return m.inner.IncompletePollIDs(ctx)
}
