// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/qudag/qrdag/ids"
)

var _ ConflictDetector = SimilarityDetector{}

// ConflictDetector decides whether two vertices are forks of each other.
type ConflictDetector interface {
	Conflicts(a, b ids.ID) bool
}

// VertexStore provides the raw bytes of registered vertices.
type VertexStore interface {
	GetVertexBytes(vertexID ids.ID) ([]byte, error)
}

// SimilarityDetector treats two vertices as conflicting when their bytes have
// the same length and differ in at most a quarter of their positions.
//
// Vertices missing from Store, or every vertex when Store is nil, are
// compared by their IDs.
type SimilarityDetector struct {
	Store VertexStore
}

func (d SimilarityDetector) Conflicts(a, b ids.ID) bool {
	return similar(d.bytes(a), d.bytes(b))
}

func (d SimilarityDetector) bytes(vertexID ids.ID) []byte {
	if d.Store != nil {
		if bytes, err := d.Store.GetVertexBytes(vertexID); err == nil {
			return bytes
		}
	}
	return vertexID.Bytes()
}

func similar(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	differences := 0
	for i := range a {
		if a[i] != b[i] {
			differences++
		}
	}
	return differences <= len(a)/4
}

// DetectAndResolveForks groups the pending vertices that conflict with each
// other, keeps the most confident vertex of every group and rejects the
// rest. Returns the rejected vertices.
func (e *Engine) DetectAndResolveForks() []ids.ID {
	pending := e.pendingVertices()

	var (
		grouped  = make(map[ids.ID]bool, len(pending))
		rejected []ids.ID
	)
	for i, vtx := range pending {
		if grouped[vtx.id] {
			continue
		}

		group := []*vertex{vtx}
		for _, other := range pending[i+1:] {
			if grouped[other.id] || !e.conflictDetector.Conflicts(vtx.id, other.id) {
				continue
			}
			group = append(group, other)
			grouped[other.id] = true
		}
		if len(group) < 2 {
			continue
		}
		grouped[vtx.id] = true

		winner := mostConfident(group)
		for _, loser := range group {
			if loser == winner || !e.rejectFork(loser, winner.id) {
				continue
			}
			rejected = append(rejected, loser.id)
		}
	}
	return rejected
}

// rejectFork rejects [loser] if it is still pending.
func (e *Engine) rejectFork(loser *vertex, winnerID ids.ID) bool {
	loser.lock.Lock()
	defer loser.lock.Unlock()

	if !e.transition(loser, Rejected, Pending) {
		return false
	}
	e.ledger.RecordConflict(winnerID, loser.id)
	e.metrics.Rejected()
	e.metrics.ForkResolved()
	e.log.Debug("resolved fork",
		zap.Stringer("winnerID", winnerID),
		zap.Stringer("loserID", loser.id),
	)
	return true
}

// pendingVertices returns the pending vertices in ascending order.
func (e *Engine) pendingVertices() []*vertex {
	e.verticesLock.RLock()
	vertices := maps.Values(e.vertices)
	e.verticesLock.RUnlock()

	pending := vertices[:0]
	for _, vtx := range vertices {
		if vtx.currentStatus() == Pending {
			pending = append(pending, vtx)
		}
	}
	slices.SortFunc(pending, func(a, b *vertex) bool {
		return a.id.Less(b.id)
	})
	return pending
}

// mostConfident returns the first vertex of [group] with the highest
// confidence.
func mostConfident(group []*vertex) *vertex {
	var (
		winner     *vertex
		confidence float64
	)
	for _, vtx := range group {
		vtx.lock.Lock()
		value := vtx.confidence.Value
		vtx.lock.Unlock()

		if winner == nil || value > confidence {
			winner = vtx
			confidence = value
		}
	}
	return winner
}

// AdvancedForkResolution decides [vertexID] against the finality threshold
// once none of the vertices that lost a fork to it are pending anymore.
func (e *Engine) AdvancedForkResolution(vertexID ids.ID) (Status, error) {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		return Pending, err
	}

	for _, siblingID := range e.ledger.Conflicts(vertexID) {
		status, err := e.Status(siblingID)
		if err == nil && status == Pending {
			return Pending, nil
		}
	}

	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	if vtx.status.Decided() {
		return vtx.status, nil
	}

	switch value := vtx.confidence.Value; {
	case atLeast(value, e.params.FinalityThreshold):
		e.finalize(vtx)
	case atLeast(value, e.params.Beta):
		e.accept(vtx)
	case atMost(value, 1-e.params.Beta):
		e.reject(vtx)
	}
	return vtx.status, nil
}
