package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yidakee/partivotes/internal/metrics"
	"github.com/yidakee/partivotes/internal/model"
	"github.com/yidakee/partivotes/internal/plugin/store/memory"
	storemetrics "github.com/yidakee/partivotes/internal/plugin/store/metrics"
	"github.com/yidakee/partivotes/internal/testutil/storetest"
)

func TestWrapRecordsLatencyAndDelegates(t *testing.T) {
	metrics.InitMetrics(prometheus.Labels{})
	ctx := context.Background()
	s := storemetrics.Wrap(memory.New())

	p := storetest.NewPoll("Measured", 0)
	require.NoError(t, s.InsertPolls(ctx, []model.Poll{p}))
	n, err := s.CountPolls(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	summary, err := metrics.StoreLatencySummary()
	require.NoError(t, err)
	ops := map[string]uint64{}
	for _, s := range summary {
		ops[s.Operation] = s.Count
	}
	assert.GreaterOrEqual(t, ops["insert_polls"], uint64(1))
	assert.GreaterOrEqual(t, ops["count_polls"], uint64(1))
}
