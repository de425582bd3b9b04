// Package storetest holds fixtures and a behaviour suite shared by the
// PollStore implementations.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yidakee/partivotes/internal/backup"
	"github.com/yidakee/partivotes/internal/model"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Base is the reference instant used for fixture timestamps.
var Base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := Base.Add(d)
	return &t
}

// NewPoll returns a valid poll created offset after Base.
func NewPoll(title string, offset time.Duration) model.Poll {
	oid := bson.NewObjectID()
	return model.Poll{
		ID:          bson.NewObjectID(),
		Title:       title,
		Description: "Description of " + title,
		Creator:     "addr1_creator",
		Options: []model.PollOption{
			{ID: &oid, Text: "Yes", Votes: 1},
			{Text: "No", Votes: 0},
		},
		StartDate: at(offset),
		EndDate:   at(offset + 72*time.Hour),
		Type:      model.PollTypeSingleChoice,
		Status:    model.PollStatusActive,
		Network:   "testnet",
		CreatedAt: at(offset),
		UpdatedAt: at(offset),
	}
}

// NewVote returns a vote referencing pollID.
func NewVote(pollID bson.ObjectID, voter string) model.Vote {
	return model.Vote{
		ID:        bson.NewObjectID(),
		PollID:    pollID,
		Voter:     voter,
		Option:    "Yes",
		Timestamp: at(time.Hour),
		TxID:      "tx-" + voter,
		Type:      "Public",
		Network:   "testnet",
	}
}

// Seed inserts polls and votes, failing the test on error.
func Seed(t testing.TB, ctx context.Context, s registrystore.PollStore, polls []model.Poll, votes []model.Vote) {
	t.Helper()
	require.NoError(t, s.InsertPolls(ctx, polls))
	require.NoError(t, s.InsertVotes(ctx, votes))
}

func pollsByID(polls []model.Poll) map[bson.ObjectID]model.Poll {
	out := make(map[bson.ObjectID]model.Poll, len(polls))
	for _, p := range polls {
		out[p.ID] = p
	}
	return out
}

func votesByID(votes []model.Vote) map[bson.ObjectID]model.Vote {
	out := make(map[bson.ObjectID]model.Vote, len(votes))
	for _, v := range votes {
		out[v.ID] = v
	}
	return out
}

func titles(polls []model.Poll) []string {
	out := make([]string, len(polls))
	for i, p := range polls {
		out[i] = p.Title
	}
	return out
}

// Run exercises the PollStore contract against stores produced by open.
// Each sub-test receives an empty store.
func Run(t *testing.T, open func(t *testing.T) registrystore.PollStore) {
	ctx := context.Background()

	t.Run("ListFiltersAndLimits", func(t *testing.T) {
		s := open(t)
		a := NewPoll("Budget vote", 0)
		b := NewPoll("Stake pool choice", time.Hour)
		b.Type = model.PollTypeRankedChoice
		b.Creator = "ADDR1_Whale"
		c := NewPoll("Logo contest", 2*time.Hour)
		c.Status = model.PollStatusEnded
		c.Description = "pick the new BUDGET logo"
		Seed(t, ctx, s, []model.Poll{a, b, c}, nil)

		all, err := s.ListPolls(ctx, registrystore.PollQuery{Limit: 10, SortField: "createdAt", SortDirection: registrystore.SortDescending})
		require.NoError(t, err)
		assert.Equal(t, []string{"Logo contest", "Stake pool choice", "Budget vote"}, titles(all))

		byType, err := s.ListPolls(ctx, registrystore.PollQuery{Type: model.PollTypeRankedChoice, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Stake pool choice"}, titles(byType))

		byStatus, err := s.ListPolls(ctx, registrystore.PollQuery{Status: model.PollStatusEnded, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Logo contest"}, titles(byStatus))

		byCreator, err := s.ListPolls(ctx, registrystore.PollQuery{Creator: "whale", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Stake pool choice"}, titles(byCreator))

		byKeyword, err := s.ListPolls(ctx, registrystore.PollQuery{Keyword: "budget", Limit: 10, SortField: "createdAt", SortDirection: registrystore.SortAscending})
		require.NoError(t, err)
		assert.Equal(t, []string{"Budget vote", "Logo contest"}, titles(byKeyword))

		combined, err := s.ListPolls(ctx, registrystore.PollQuery{Keyword: "budget", Status: model.PollStatusActive, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Budget vote"}, titles(combined))

		limited, err := s.ListPolls(ctx, registrystore.PollQuery{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		none, err := s.ListPolls(ctx, registrystore.PollQuery{Keyword: "nothing-matches", Limit: 5})
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("ListTreatsFilterTextLiterally", func(t *testing.T) {
		s := open(t)
		p := NewPoll("Fees (2025)?", 0)
		Seed(t, ctx, s, []model.Poll{p, NewPoll("Fees 2025", time.Hour)}, nil)

		got, err := s.ListPolls(ctx, registrystore.PollQuery{Keyword: "(2025)?", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Fees (2025)?"}, titles(got))
	})

	t.Run("ListFallsBackOnUnknownSortField", func(t *testing.T) {
		s := open(t)
		Seed(t, ctx, s, []model.Poll{NewPoll("One", 0), NewPoll("Two", time.Hour)}, nil)

		got, err := s.ListPolls(ctx, registrystore.PollQuery{Limit: 10, SortField: "$bogus"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("GetPollAndCounts", func(t *testing.T) {
		s := open(t)
		p := NewPoll("Counted", 0)
		other := NewPoll("Other", time.Hour)
		Seed(t, ctx, s, []model.Poll{p, other}, []model.Vote{
			NewVote(p.ID, "v1"), NewVote(p.ID, "v2"), NewVote(other.ID, "v3"),
		})

		got, err := s.GetPoll(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Counted", got.Title)
		assert.Len(t, got.Options, 2)
		require.NotNil(t, got.CreatedAt)
		assert.True(t, got.CreatedAt.Equal(*p.CreatedAt))

		n, err := s.CountVotesForPoll(ctx, p.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		tally, err := s.VoteTally(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, tally[p.ID])
		assert.EqualValues(t, 1, tally[other.ID])

		polls, err := s.CountPolls(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, polls)
		votes, err := s.CountVotes(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, votes)

		_, err = s.GetPoll(ctx, bson.NewObjectID())
		var nf *registrystore.NotFoundError
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("Deletes", func(t *testing.T) {
		s := open(t)
		p := NewPoll("Doomed", 0)
		keep := NewPoll("Kept", time.Hour)
		Seed(t, ctx, s, []model.Poll{p, keep}, []model.Vote{NewVote(p.ID, "v1"), NewVote(keep.ID, "v2")})

		n, err := s.DeleteVotesForPoll(ctx, p.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		n, err = s.DeletePoll(ctx, p.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		n, err = s.DeletePoll(ctx, p.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)

		n, err = s.DeleteAllVotes(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		n, err = s.DeleteAllPolls(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		all, err := s.AllPolls(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("IncompletePollsAndStats", func(t *testing.T) {
		s := open(t)
		good := NewPoll("Complete", 0)
		bad := NewPoll("", time.Hour)
		bad.Options = nil
		Seed(t, ctx, s, []model.Poll{good, bad}, nil)

		ids, err := s.IncompletePollIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []bson.ObjectID{bad.ID}, ids)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Contains(t, stats.Collections, "polls")
		assert.NotEmpty(t, stats.Name)
	})

	t.Run("BackupRoundTrip", func(t *testing.T) {
		s := open(t)
		a := NewPoll("Treasury allocation", 0)
		version := int64(2)
		a.Version = &version
		a.TotalVotes = 2
		a.Extra = bson.M{"category": "governance", "weight": int64(3), "ratio": 0.5, "tags": bson.A{"dao", "q1"}}
		b := NewPoll("Logo contest", time.Hour)
		b.Type = model.PollTypeMultipleChoice
		maxSel := int64(2)
		b.MaxSelections = &maxSel
		v1 := NewVote(a.ID, "addr1_alice")
		v2 := NewVote(a.ID, "addr1_bob")
		v3 := NewVote(b.ID, "addr1_carol")
		v3.Option = ""
		v3.Options = []string{"Yes", "No"}
		v3.VerificationHash = "deadbeef"
		v3.Version = &version
		v3.Extra = bson.M{"signature": "abc"}
		Seed(t, ctx, s, []model.Poll{a, b}, []model.Vote{v1, v2, v3})

		before, err := s.AllPolls(ctx)
		require.NoError(t, err)
		beforeVotes, err := s.AllVotes(ctx)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, backup.NewSnapshot(before, beforeVotes).Encode(&buf))
		snap, err := backup.DecodeSnapshot("roundtrip.json", buf.Bytes())
		require.NoError(t, err)
		polls, votes, err := snap.Documents("roundtrip.json")
		require.NoError(t, err)

		_, err = s.DeleteAllPolls(ctx)
		require.NoError(t, err)
		_, err = s.DeleteAllVotes(ctx)
		require.NoError(t, err)
		require.NoError(t, s.InsertPolls(ctx, polls))
		require.NoError(t, s.InsertVotes(ctx, votes))

		after, err := s.AllPolls(ctx)
		require.NoError(t, err)
		afterVotes, err := s.AllVotes(ctx)
		require.NoError(t, err)
		require.Len(t, after, 2)
		require.Len(t, afterVotes, 3)
		assert.Equal(t, pollsByID(before), pollsByID(after))
		assert.Equal(t, votesByID(beforeVotes), votesByID(afterVotes))

		tally, err := s.VoteTally(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, tally[a.ID])
		assert.EqualValues(t, 1, tally[b.ID])
	})
}
