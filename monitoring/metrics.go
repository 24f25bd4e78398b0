package monitoring

import (
	"sort"
	"sync"
	"time"
)

// DatasetMetrics are running totals for one dataset.
type DatasetMetrics struct {
	Dataset      string        `json:"dataset"`
	Runs         int           `json:"runs"`
	Converged    int           `json:"converged"`
	Aborted      int           `json:"aborted"`
	Failed       int           `json:"failed"`
	TotalUpdates int64         `json:"total_updates"`
	LastGamma    float64       `json:"last_gamma"`
	LastMargin   float64       `json:"last_margin"`
	LastDuration time.Duration `json:"last_duration"`
	LastRun      time.Time     `json:"last_run"`
}

// MetricsCollector aggregates finished runs in memory.
type MetricsCollector struct {
	mu       sync.RWMutex
	datasets map[string]*DatasetMetrics
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{datasets: make(map[string]*DatasetMetrics)}
}

func (mc *MetricsCollector) entry(dataset string) *DatasetMetrics {
	m, ok := mc.datasets[dataset]
	if !ok {
		m = &DatasetMetrics{Dataset: dataset}
		mc.datasets[dataset] = m
	}
	return m
}

// RecordRun adds a finished run.
func (mc *MetricsCollector) RecordRun(dataset string, converged bool, updates int, gamma, margin float64, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	m := mc.entry(dataset)
	m.Runs++
	if converged {
		m.Converged++
	} else {
		m.Aborted++
	}
	m.TotalUpdates += int64(updates)
	m.LastGamma = gamma
	m.LastMargin = margin
	m.LastDuration = duration
	m.LastRun = time.Now()
}

// RecordFailure counts a run that ended with an error.
func (mc *MetricsCollector) RecordFailure(dataset string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	m := mc.entry(dataset)
	m.Runs++
	m.Failed++
	m.LastRun = time.Now()
}

// Snapshot returns a copy of all metrics sorted by dataset.
func (mc *MetricsCollector) Snapshot() []DatasetMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]DatasetMetrics, 0, len(mc.datasets))
	for _, m := range mc.datasets {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out
}
