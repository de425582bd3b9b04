package storetest

import (
	"context"

	"github.com/yidakee/partivotes/internal/model"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Faulty wraps a PollStore and fails the write operations named in Fail,
// keyed by method name.
type Faulty struct {
	registrystore.PollStore
	Fail map[string]error
}

// NewFaulty returns a Faulty over inner with no failures armed.
func NewFaulty(inner registrystore.PollStore) *Faulty {
	return &Faulty{PollStore: inner, Fail: map[string]error{}}
}

func (f *Faulty) AllPolls(ctx context.Context) ([]model.Poll, error) {
	if err := f.Fail["AllPolls"]; err != nil {
		return nil, err
	}
	return f.PollStore.AllPolls(ctx)
}

func (f *Faulty) DeletePoll(ctx context.Context, id bson.ObjectID) (int64, error) {
	if err := f.Fail["DeletePoll"]; err != nil {
		return 0, err
	}
	return f.PollStore.DeletePoll(ctx, id)
}

func (f *Faulty) DeleteVotesForPoll(ctx context.Context, pollID bson.ObjectID) (int64, error) {
	if err := f.Fail["DeleteVotesForPoll"]; err != nil {
		return 0, err
	}
	return f.PollStore.DeleteVotesForPoll(ctx, pollID)
}

func (f *Faulty) DeleteAllPolls(ctx context.Context) (int64, error) {
	if err := f.Fail["DeleteAllPolls"]; err != nil {
		return 0, err
	}
	return f.PollStore.DeleteAllPolls(ctx)
}

func (f *Faulty) DeleteAllVotes(ctx context.Context) (int64, error) {
	if err := f.Fail["DeleteAllVotes"]; err != nil {
		return 0, err
	}
	return f.PollStore.DeleteAllVotes(ctx)
}

func (f *Faulty) InsertPolls(ctx context.Context, polls []model.Poll) error {
	if err := f.Fail["InsertPolls"]; err != nil {
		return err
	}
	return f.PollStore.InsertPolls(ctx, polls)
}

func (f *Faulty) InsertVotes(ctx context.Context, votes []model.Vote) error {
	if err := f.Fail["InsertVotes"]; err != nil {
		return err
	}
	return f.PollStore.InsertVotes(ctx, votes)
}
