package metrics

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
)

const (
	namespace = "partivotes_dbmanager"
	jobName   = "partivotes_dbmanager"
)

var (
	// Registry holds every metric of this process. A dedicated registry
	// keeps Go runtime collectors out of Pushgateway payloads.
	Registry = prometheus.NewRegistry()

	// StoreLatency records the latency of each store operation.
	StoreLatency *prometheus.HistogramVec

	// CommandsTotal counts executed commands by outcome.
	CommandsTotal *prometheus.CounterVec

	// BackupLastSuccess is the Unix time of the last completed backup.
	BackupLastSuccess prometheus.Gauge

	// BackupSizeBytes is the size of the last written backup file.
	BackupSizeBytes prometheus.Gauge

	// BackupsPrunedTotal counts backup files removed by rotation.
	BackupsPrunedTotal prometheus.Counter
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseMetricsLabels parses a comma-separated list of key=value pairs into
// Prometheus labels. Values support ${VAR} / $VAR environment variable expansion.
// Label values may not contain commas. Returns nil for an empty string.
func ParseMetricsLabels(s string) (prometheus.Labels, error) {
	s = os.Expand(s, os.Getenv)
	if s == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(s, ",") {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid label %q: expected key=value", pair)
		}
		k, v := pair[:idx], pair[idx+1:]
		if !validLabelKey.MatchString(k) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", k)
		}
		labels[k] = v
	}
	return labels, nil
}

var initMetricsOnce sync.Once

// InitMetrics registers all metrics with the given constant labels.
// Safe to call multiple times; only the first call registers.
func InitMetrics(constLabels prometheus.Labels) {
	initMetricsOnce.Do(func() {
		initMetricsInner(constLabels)
	})
}

func initMetricsInner(constLabels prometheus.Labels) {
	reg := prometheus.WrapRegistererWith(constLabels, Registry)
	f := promauto.With(reg)

	StoreLatency = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_latency_seconds",
			Help:      "Store operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CommandsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Executed commands by outcome",
		},
		[]string{"command", "outcome"},
	)

	BackupLastSuccess = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backup_last_success_timestamp_seconds",
		Help:      "Unix time of the last completed backup",
	})

	BackupSizeBytes = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "backup_size_bytes",
		Help:      "Size of the last written backup file",
	})

	BackupsPrunedTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backups_pruned_total",
		Help:      "Backup files removed by rotation",
	})
}

// ObserveCommand counts one command execution. No-op before InitMetrics.
func ObserveCommand(command, outcome string) {
	if CommandsTotal == nil {
		return
	}
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// Push sends the registry to a Prometheus Pushgateway, replacing the
// metrics previously pushed for this job.
func Push(ctx context.Context, url string) error {
	if err := push.New(url, jobName).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// OperationLatency summarizes the latency histogram of one store operation.
type OperationLatency struct {
	Operation string
	Count     uint64
	Total     float64 // seconds
}

// Mean returns the average latency in seconds.
func (o OperationLatency) Mean() float64 {
	if o.Count == 0 {
		return 0
	}
	return o.Total / float64(o.Count)
}

// StoreLatencySummary returns the observed store latencies ordered by operation.
func StoreLatencySummary() ([]OperationLatency, error) {
	families, err := Registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	var out []OperationLatency
	for _, mf := range families {
		if mf.GetName() != namespace+"_store_latency_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			out = append(out, OperationLatency{
				Operation: labelValue(m, "operation"),
				Count:     m.GetHistogram().GetSampleCount(),
				Total:     m.GetHistogram().GetSampleSum(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out, nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// RecordBackup marks a completed backup of the given size. No-op before InitMetrics.
func RecordBackup(size int64) {
	if BackupLastSuccess == nil {
		return
	}
	BackupLastSuccess.SetToCurrentTime()
	BackupSizeBytes.Set(float64(size))
}

// RecordPruned counts backup files removed by rotation. No-op before InitMetrics.
func RecordPruned(n int) {
	if BackupsPrunedTotal == nil || n <= 0 {
		return
	}
	BackupsPrunedTotal.Add(float64(n))
}
