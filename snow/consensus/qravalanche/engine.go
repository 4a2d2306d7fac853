// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/qudag/qrdag/ids"
	consensusmetrics "github.com/qudag/qrdag/snow/consensus/metrics"
	"github.com/qudag/qrdag/utils/logging"
	"github.com/qudag/qrdag/utils/timer/mockable"
)

const (
	defaultNamespace = "qravalanche"
	tipsDegree       = 2
)

var _ Consensus = (*Engine)(nil)

// Config wires the collaborators of an Engine. Only Params is required.
type Config struct {
	Log        logging.Logger
	Registerer prometheus.Registerer
	Namespace  string
	Params     Parameters

	Querier          Querier
	Sampler          Sampler
	ConflictDetector ConflictDetector
	PatternDetector  PatternDetector

	// Clock is used for every timestamp the engine records. Defaults to the
	// wall clock.
	Clock *mockable.Clock
}

// vertex is the engine's view of a single DAG vertex.
type vertex struct {
	lock sync.Mutex

	id         ids.ID
	status     Status
	confidence Confidence
	// startTime is when the vertex was registered, used to measure finality
	// latency.
	startTime time.Time
	// genesis is never rejected nor polled.
	genesis bool
	// pruned is set once the vertex was evicted from the engine. Its votes
	// must not be recorded anymore.
	pruned bool
}

// Engine implements QR-Avalanche consensus over DAG vertices.
//
// Each vertex is guarded by its own lock. Locks are always acquired in the
// order: vertex registry, vertex, tips.
type Engine struct {
	log              logging.Logger
	params           Parameters
	clock            *mockable.Clock
	querier          Querier
	sampler          Sampler
	conflictDetector ConflictDetector
	patternDetector  PatternDetector

	metrics *metrics
	polls   consensusmetrics.Polls

	verticesLock sync.RWMutex
	vertices     map[ids.ID]*vertex

	tipsLock sync.RWMutex
	tips     *btree.BTreeG[ids.ID]

	ledger       *VotingLedger
	participants participants
}

func New(config Config) (*Engine, error) {
	if err := config.Params.Verify(); err != nil {
		return nil, err
	}

	e := &Engine{
		log:              config.Log,
		params:           config.Params,
		clock:            config.Clock,
		querier:          config.Querier,
		sampler:          config.Sampler,
		conflictDetector: config.ConflictDetector,
		patternDetector:  config.PatternDetector,
		vertices:         make(map[ids.ID]*vertex),
		tips:             btree.NewG(tipsDegree, ids.ID.Less),
		ledger:           NewVotingLedger(),
	}
	if e.log == nil {
		e.log = logging.NoLog{}
	}
	if e.clock == nil {
		e.clock = &mockable.Clock{}
	}
	if e.querier == nil {
		e.querier = SimulatedQuerier{}
	}
	if e.sampler == nil {
		e.sampler = DistanceSampler{}
	}
	if e.conflictDetector == nil {
		e.conflictDetector = SimilarityDetector{}
	}
	if e.patternDetector == nil {
		e.patternDetector = DefaultPatternDetector
	}

	namespace := config.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	reg := config.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	var err error
	e.metrics, err = newMetrics(e.clock, namespace, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register consensus metrics: %w", err)
	}
	e.polls, err = consensusmetrics.NewPolls(namespace, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register poll metrics: %w", err)
	}
	return e, nil
}

// Parameters returns the parameters the engine was created with.
func (e *Engine) Parameters() Parameters {
	return e.params
}

// Initialize registers [genesisID] as an accepted tip. It must be called
// before any other vertex is registered. The genesis vertex can be finalized
// but never rejected.
func (e *Engine) Initialize(genesisID ids.ID) error {
	now := e.clock.Time()

	e.verticesLock.Lock()
	defer e.verticesLock.Unlock()

	if len(e.vertices) != 0 {
		return fmt.Errorf("%w: cannot initialize with %s after %d vertices were registered",
			ErrInvalidState,
			genesisID,
			len(e.vertices),
		)
	}

	e.vertices[genesisID] = &vertex{
		id:         genesisID,
		status:     Accepted,
		confidence: NewConfidence(now),
		startTime:  now,
		genesis:    true,
	}
	e.addTip(genesisID)

	e.log.Info("initialized consensus",
		zap.Stringer("genesisID", genesisID),
	)
	return nil
}

// ProcessVertex registers [vertexID] as a pending tip.
//
// Registering an undecided vertex again resets its confidence and latency
// clock without counting it twice. Registering a decided vertex is a no-op.
func (e *Engine) ProcessVertex(vertexID ids.ID) Status {
	now := e.clock.Time()

	e.verticesLock.Lock()
	vtx, exists := e.vertices[vertexID]
	if !exists {
		vtx = &vertex{
			id:         vertexID,
			status:     Pending,
			confidence: NewConfidence(now),
			startTime:  now,
		}
		vtx.lock.Lock()
		e.vertices[vertexID] = vtx
		e.verticesLock.Unlock()

		e.addTip(vertexID)
		vtx.lock.Unlock()

		e.metrics.Processed()
		e.log.Verbo("registered vertex",
			zap.Stringer("vertexID", vertexID),
		)
		return Pending
	}
	e.verticesLock.Unlock()

	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	if vtx.status.Decided() {
		return vtx.status
	}
	vtx.confidence = NewConfidence(now)
	vtx.startTime = now
	e.log.Verbo("re-registered vertex",
		zap.Stringer("vertexID", vertexID),
		zap.Stringer("status", vtx.status),
	)
	return vtx.status
}

// RecordVote records [vote] by [voterID] on [vertexID] and decides the vertex
// if its confidence crossed Beta or 1-Beta.
func (e *Engine) RecordVote(vertexID ids.ID, voterID ids.NodeID, vote bool) error {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		return err
	}
	return e.vote(vtx, voterID, vote)
}

func (e *Engine) vote(vtx *vertex, voterID ids.NodeID, vote bool) error {
	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	if vtx.pruned {
		return fmt.Errorf("%w: %s was pruned", ErrInvalidVertex, vtx.id)
	}
	if err := e.recordVote(vtx, voterID, vote); err != nil {
		return err
	}

	positive, negative := e.ledger.VoteCounts(vtx.id)
	vtx.confidence.UpdateVotes(positive, negative, e.clock.Time())
	if vtx.status.Decided() {
		return nil
	}

	switch value := vtx.confidence.Value; {
	case atLeast(value, e.params.Beta):
		e.finalize(vtx)
	case atMost(value, 1-e.params.Beta):
		e.reject(vtx)
	}
	return nil
}

// recordVote stores the vote in the ledger, reporting byzantine voters.
//
// Assumes [vtx.lock] is held.
func (e *Engine) recordVote(vtx *vertex, voterID ids.NodeID, vote bool) error {
	err := e.ledger.RecordVote(vtx.id, voterID, vote)
	if err != nil {
		e.metrics.ByzantineDetected()
		e.log.Warn("dropping contradicting vote",
			zap.Stringer("vertexID", vtx.id),
			zap.Stringer("nodeID", voterID),
			zap.Bool("vote", vote),
		)
	}
	return err
}

// Finalize marks [vertexID] as final. Finalizing a final vertex is a no-op.
func (e *Engine) Finalize(vertexID ids.ID) error {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		return err
	}

	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	switch vtx.status {
	case Final:
		return nil
	case Rejected:
		if winner, lost := e.ledger.LostTo(vertexID); lost {
			return fmt.Errorf("%w: %s lost a fork to %s", ErrConflictingVertices, vertexID, winner)
		}
		return fmt.Errorf("%w: cannot finalize rejected vertex %s", ErrInvalidState, vertexID)
	default:
		e.finalize(vtx)
		return nil
	}
}

// transition moves [vtx] to [to] if its status is one of [from].
//
// Assumes [vtx.lock] is held.
func (e *Engine) transition(vtx *vertex, to Status, from ...Status) bool {
	if !slices.Contains(from, vtx.status) {
		return false
	}
	previous := vtx.status
	vtx.status = to
	if to.Decided() {
		e.removeTip(vtx.id)
	}

	e.log.Debug("vertex status changed",
		zap.Stringer("vertexID", vtx.id),
		zap.Stringer("from", previous),
		zap.Stringer("to", to),
		zap.Float64("confidence", vtx.confidence.Value),
	)
	return true
}

// finalize records the finality latency of [vtx] the first time it becomes
// final.
//
// Assumes [vtx.lock] is held.
func (e *Engine) finalize(vtx *vertex) bool {
	if !e.transition(vtx, Final, Pending, Accepted) {
		return false
	}
	e.metrics.Finalized(e.clock.Since(vtx.startTime))
	return true
}

// Assumes [vtx.lock] is held.
func (e *Engine) reject(vtx *vertex) bool {
	if vtx.genesis || !e.transition(vtx, Rejected, Pending, Accepted) {
		return false
	}
	e.metrics.Rejected()
	return true
}

// Assumes [vtx.lock] is held.
func (e *Engine) accept(vtx *vertex) bool {
	return e.transition(vtx, Accepted, Pending)
}

func (e *Engine) getVertex(vertexID ids.ID) (*vertex, error) {
	e.verticesLock.RLock()
	defer e.verticesLock.RUnlock()

	vtx, ok := e.vertices[vertexID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidVertex, vertexID)
	}
	return vtx, nil
}

// Status returns the consensus status of [vertexID].
func (e *Engine) Status(vertexID ids.ID) (Status, error) {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		return Pending, err
	}

	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	return vtx.status, nil
}

func (e *Engine) GetConfidence(vertexID ids.ID) (Confidence, bool) {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		return Confidence{}, false
	}

	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	return vtx.confidence, true
}

// IsConsensusReached returns true if [vertexID] is final or accepted.
func (e *Engine) IsConsensusReached(vertexID ids.ID) (bool, error) {
	status, err := e.Status(vertexID)
	if err != nil {
		return false, err
	}
	return status == Final || status == Accepted, nil
}

// VoteCounts returns the positive and negative votes stored for [vertexID].
func (e *Engine) VoteCounts(vertexID ids.ID) (int, int) {
	return e.ledger.VoteCounts(vertexID)
}

func (e *Engine) IsByzantine(nodeID ids.NodeID) bool {
	return e.ledger.IsByzantine(nodeID)
}

func (e *Engine) ByzantineVoters() []ids.NodeID {
	return e.ledger.ByzantineVoters()
}

// Conflicts returns the vertices that lost a fork to [vertexID].
func (e *Engine) Conflicts(vertexID ids.ID) []ids.ID {
	return e.ledger.Conflicts(vertexID)
}

// Assumes the lock of the vertex is held.
func (e *Engine) addTip(vertexID ids.ID) {
	e.tipsLock.Lock()
	defer e.tipsLock.Unlock()

	e.tips.ReplaceOrInsert(vertexID)
	e.metrics.Processing(e.tips.Len())
}

// Assumes the lock of the vertex is held.
func (e *Engine) removeTip(vertexID ids.ID) {
	e.tipsLock.Lock()
	defer e.tipsLock.Unlock()

	e.tips.Delete(vertexID)
	e.metrics.Processing(e.tips.Len())
}

// Tips returns the undecided vertices in ascending order.
func (e *Engine) Tips() []ids.ID {
	e.tipsLock.RLock()
	defer e.tipsLock.RUnlock()

	tips := make([]ids.ID, 0, e.tips.Len())
	e.tips.Ascend(func(vertexID ids.ID) bool {
		tips = append(tips, vertexID)
		return true
	})
	return tips
}

// NumProcessing returns the number of undecided vertices.
func (e *Engine) NumProcessing() int {
	e.tipsLock.RLock()
	defer e.tipsLock.RUnlock()

	return e.tips.Len()
}

// Prune forgets every decided vertex and returns them in ascending order.
func (e *Engine) Prune() []ids.ID {
	e.verticesLock.Lock()
	defer e.verticesLock.Unlock()

	var pruned []ids.ID
	for vertexID, vtx := range e.vertices {
		vtx.lock.Lock()
		if !vtx.status.Decided() {
			vtx.lock.Unlock()
			continue
		}
		vtx.pruned = true
		e.ledger.Remove(vertexID)
		vtx.lock.Unlock()

		delete(e.vertices, vertexID)
		pruned = append(pruned, vertexID)
	}
	slices.SortFunc(pruned, ids.ID.Less)

	if len(pruned) > 0 {
		e.log.Debug("pruned decided vertices",
			zap.Int("numPruned", len(pruned)),
		)
	}
	return pruned
}

// AddParticipant makes [nodeID] eligible to be polled.
func (e *Engine) AddParticipant(nodeID ids.NodeID) {
	if e.participants.Add(nodeID) {
		e.log.Debug("added participant",
			zap.Stringer("nodeID", nodeID),
		)
	}
}

func (e *Engine) RemoveParticipant(nodeID ids.NodeID) {
	if e.participants.Remove(nodeID) {
		e.log.Debug("removed participant",
			zap.Stringer("nodeID", nodeID),
		)
	}
}

// Participants returns the known participants in ascending order.
func (e *Engine) Participants() []ids.NodeID {
	return e.participants.List()
}

func (e *Engine) GetMetrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

func (e *Engine) String() string {
	return fmt.Sprintf("QRAvalanche(NumProcessing = %d, NumParticipants = %d, NumByzantine = %d)",
		e.NumProcessing(),
		e.participants.Len(),
		e.ledger.NumByzantine(),
	)
}
