package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yidakee/partivotes/internal/model"
	"github.com/yidakee/partivotes/internal/plugin/store/memory"
	registrystore "github.com/yidakee/partivotes/internal/registry/store"
	"github.com/yidakee/partivotes/internal/testutil/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) registrystore.PollStore {
		return memory.New()
	})
}

func TestRegisteredAsMemory(t *testing.T) {
	loader, err := registrystore.Select("memory")
	require.NoError(t, err)
	s, err := loader(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
}

func TestInsertRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p := storetest.NewPoll("Once", 0)
	require.NoError(t, s.InsertPolls(ctx, []model.Poll{p}))
	require.Error(t, s.InsertPolls(ctx, []model.Poll{p}))

	v := storetest.NewVote(p.ID, "voter")
	require.NoError(t, s.InsertVotes(ctx, []model.Vote{v}))
	require.Error(t, s.InsertVotes(ctx, []model.Vote{v}))
}

func TestListSortsMissingDatesFirstAscending(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	dated := storetest.NewPoll("Dated", time.Hour)
	undated := storetest.NewPoll("Undated", 0)
	undated.CreatedAt = nil
	storetest.Seed(t, ctx, s, []model.Poll{dated, undated}, nil)

	got, err := s.ListPolls(ctx, registrystore.PollQuery{Limit: 10, SortField: "createdAt", SortDirection: registrystore.SortAscending})
	require.NoError(t, err)
	require.Equal(t, "Undated", got[0].Title)
	require.Equal(t, "Dated", got[1].Title)
}
