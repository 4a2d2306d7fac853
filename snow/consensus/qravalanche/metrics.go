// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/qudag/qrdag/utils/math"
	"github.com/qudag/qrdag/utils/metric"
	"github.com/qudag/qrdag/utils/timer/mockable"
	"github.com/qudag/qrdag/utils/wrappers"
)

// Halflife of the recent finality latency average.
const recentFinalityHalflife = 10 * time.Second

// MetricsSnapshot is a point in time view of the engine's counters.
type MetricsSnapshot struct {
	TotalVerticesProcessed     uint64        `json:"totalVerticesProcessed"`
	FinalizedCount             uint64        `json:"finalizedCount"`
	RejectedCount              uint64        `json:"rejectedCount"`
	ByzantineBehaviorsDetected uint64        `json:"byzantineBehaviorsDetected"`
	ForksResolved              uint64        `json:"forksResolved"`
	TotalFinalityTime          time.Duration `json:"totalFinalityTime"`
	AverageFinalityTime        time.Duration `json:"averageFinalityTime"`
	RecentFinalityTime         time.Duration `json:"recentFinalityTime"`
	// CurrentThroughput is the number of vertices processed per second since
	// the engine was created.
	CurrentThroughput float64 `json:"currentThroughput"`
}

type metrics struct {
	clock *mockable.Clock

	lock           sync.Mutex
	startTime      time.Time
	processed      uint64
	finalized      uint64
	rejected       uint64
	byzantine      uint64
	forks          uint64
	totalFinality  time.Duration
	recentFinality math.Averager

	numProcessed  prometheus.Counter
	numFinalized  prometheus.Counter
	numRejected   prometheus.Counter
	numByzantine  prometheus.Counter
	numForks      prometheus.Counter
	numProcessing prometheus.Gauge
	latFinalized  prometheus.Histogram
}

func newMetrics(clock *mockable.Clock, namespace string, reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		clock:     clock,
		startTime: clock.Time(),
		numProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vertices_processed",
			Help:      "Number of vertices registered with consensus",
		}),
		numFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vertices_finalized",
			Help:      "Number of vertices that reached finality",
		}),
		numRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vertices_rejected",
			Help:      "Number of vertices that were rejected",
		}),
		numByzantine: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "byzantine_behaviors",
			Help:      "Number of byzantine behaviors detected",
		}),
		numForks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forks_resolved",
			Help:      "Number of vertices rejected while resolving forks",
		}),
		numProcessing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vertices_processing",
			Help:      "Number of vertices that are currently tips",
		}),
		latFinalized: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "finality_latency",
			Help:      "Latency of finalizing from the time the vertex was registered in milliseconds",
			Buckets:   metric.FinalityMillisecondsBuckets,
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.numProcessed),
		reg.Register(m.numFinalized),
		reg.Register(m.numRejected),
		reg.Register(m.numByzantine),
		reg.Register(m.numForks),
		reg.Register(m.numProcessing),
		reg.Register(m.latFinalized),
	)
	return m, errs.Err
}

func (m *metrics) Processed() {
	m.lock.Lock()
	m.processed++
	m.lock.Unlock()

	m.numProcessed.Inc()
}

// Finalized must be called at most once per vertex.
func (m *metrics) Finalized(latency time.Duration) {
	now := m.clock.Time()

	m.lock.Lock()
	m.finalized++
	m.totalFinality += latency
	if m.recentFinality == nil {
		m.recentFinality = math.NewAverager(float64(latency), recentFinalityHalflife, now)
	} else {
		m.recentFinality.Observe(float64(latency), now)
	}
	m.lock.Unlock()

	m.numFinalized.Inc()
	m.latFinalized.Observe(float64(latency.Milliseconds()))
}

func (m *metrics) Rejected() {
	m.lock.Lock()
	m.rejected++
	m.lock.Unlock()

	m.numRejected.Inc()
}

func (m *metrics) ByzantineDetected() {
	m.lock.Lock()
	m.byzantine++
	m.lock.Unlock()

	m.numByzantine.Inc()
}

func (m *metrics) ForkResolved() {
	m.lock.Lock()
	m.forks++
	m.lock.Unlock()

	m.numForks.Inc()
}

func (m *metrics) Processing(numTips int) {
	m.numProcessing.Set(float64(numTips))
}

func (m *metrics) Snapshot() MetricsSnapshot {
	elapsed := m.clock.Since(m.startTime)

	m.lock.Lock()
	defer m.lock.Unlock()

	snapshot := MetricsSnapshot{
		TotalVerticesProcessed:     m.processed,
		FinalizedCount:             m.finalized,
		RejectedCount:              m.rejected,
		ByzantineBehaviorsDetected: m.byzantine,
		ForksResolved:              m.forks,
		TotalFinalityTime:          m.totalFinality,
	}
	if m.finalized > 0 {
		snapshot.AverageFinalityTime = m.totalFinality / time.Duration(m.finalized)
	}
	if m.recentFinality != nil {
		snapshot.RecentFinalityTime = time.Duration(m.recentFinality.Read())
	}
	if elapsed > 0 {
		snapshot.CurrentThroughput = float64(m.processed) / elapsed.Seconds()
	}
	return snapshot
}
