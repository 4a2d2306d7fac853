// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/utils/set"
)

var errMissingVertex = errors.New("missing vertex")

type conflictsFunc func(a, b ids.ID) bool

func (f conflictsFunc) Conflicts(a, b ids.ID) bool {
	return f(a, b)
}

// conflictGroups makes every pair of vertices in the same group conflict.
func conflictGroups(groups ...[]ids.ID) conflictsFunc {
	groupOf := make(map[ids.ID]int)
	for i, group := range groups {
		for _, vertexID := range group {
			groupOf[vertexID] = i + 1
		}
	}
	return func(a, b ids.ID) bool {
		return groupOf[a] != 0 && groupOf[a] == groupOf[b]
	}
}

type mapStore map[ids.ID][]byte

func (s mapStore) GetVertexBytes(vertexID ids.ID) ([]byte, error) {
	bytes, ok := s[vertexID]
	if !ok {
		return nil, errMissingVertex
	}
	return bytes, nil
}

func setConfidence(e *Engine, vertexID ids.ID, value float64) {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		panic(err)
	}
	vtx.lock.Lock()
	vtx.confidence.Value = value
	vtx.lock.Unlock()
}

func newForkEngine(t *testing.T, detector ConflictDetector) *Engine {
	e, err := New(Config{
		Params:           DefaultParameters,
		ConflictDetector: detector,
	})
	require.NoError(t, err)
	return e
}

func TestSimilarityDetector(t *testing.T) {
	require := require.New(t)

	base := ids.GenerateTestID()
	withDifferences := func(n int) ids.ID {
		id := base
		for i := 0; i < n; i++ {
			id[i]++
		}
		return id
	}

	d := SimilarityDetector{}
	require.True(d.Conflicts(base, withDifferences(1)))
	require.True(d.Conflicts(base, withDifferences(ids.IDLen/4)))
	require.False(d.Conflicts(base, withDifferences(ids.IDLen/4+1)))

	aID := ids.GenerateTestID()
	bID := ids.GenerateTestID()
	cID := ids.GenerateTestID()
	d = SimilarityDetector{
		Store: mapStore{
			aID: {1, 2, 3, 4},
			bID: {1, 2, 3, 5},
			cID: {1, 2, 3},
		},
	}
	require.True(d.Conflicts(aID, bID))
	require.False(d.Conflicts(aID, cID))
	// Missing vertices fall back to their IDs.
	require.True(d.Conflicts(base, withDifferences(2)))
}

func TestDetectAndResolveForks(t *testing.T) {
	require := require.New(t)

	winnerID := ids.GenerateTestID()
	loserA := ids.GenerateTestID()
	loserB := ids.GenerateTestID()
	decidedID := ids.GenerateTestID()
	independentID := ids.GenerateTestID()

	e := newForkEngine(t, conflictGroups([]ids.ID{winnerID, loserA, loserB, decidedID}))
	for _, vertexID := range []ids.ID{winnerID, loserA, loserB, decidedID, independentID} {
		e.ProcessVertex(vertexID)
	}
	setConfidence(e, winnerID, 0.7)
	setConfidence(e, loserA, 0.5)
	setConfidence(e, loserB, 0.3)
	require.NoError(e.Finalize(decidedID))

	rejected := e.DetectAndResolveForks()
	require.ElementsMatch([]ids.ID{loserA, loserB}, rejected)
	require.ElementsMatch([]ids.ID{loserA, loserB}, e.Conflicts(winnerID))

	for vertexID, expected := range map[ids.ID]Status{
		winnerID:      Pending,
		loserA:        Rejected,
		loserB:        Rejected,
		decidedID:     Final,
		independentID: Pending,
	} {
		status, err := e.Status(vertexID)
		require.NoError(err)
		require.Equal(expected, status)
	}

	snapshot := e.GetMetrics()
	require.Equal(uint64(2), snapshot.ForksResolved)
	require.Equal(uint64(2), snapshot.RejectedCount)
	require.ElementsMatch([]ids.ID{winnerID, independentID}, e.Tips())

	// A fork loser can't come back.
	require.ErrorIs(e.Finalize(loserA), ErrConflictingVertices)
	require.Equal(Rejected, e.ProcessVertex(loserA))

	// Nothing left to resolve.
	require.Empty(e.DetectAndResolveForks())
	require.Equal(uint64(2), e.GetMetrics().ForksResolved)
}

func TestDetectAndResolveForksExclusive(t *testing.T) {
	require := require.New(t)

	groups := make([][]ids.ID, 5)
	var all []ids.ID
	for i := range groups {
		groups[i] = make([]ids.ID, i+2)
		for j := range groups[i] {
			groups[i][j] = ids.GenerateTestID()
		}
		all = append(all, groups[i]...)
	}

	e := newForkEngine(t, conflictGroups(groups...))
	for _, vertexID := range all {
		e.ProcessVertex(vertexID)
	}

	// Every vertex has the same confidence, so the lowest ID wins.
	rejected := set.Of(e.DetectAndResolveForks()...)
	for _, group := range groups {
		survivors := 0
		lowest := group[0]
		for _, vertexID := range group {
			if vertexID.Less(lowest) {
				lowest = vertexID
			}
			if !rejected.Contains(vertexID) {
				survivors++
			}
		}
		require.Equal(1, survivors)
		require.False(rejected.Contains(lowest))
	}
	require.Equal(uint64(rejected.Len()), e.GetMetrics().ForksResolved)
}

func TestDetectAndResolveForksDefaultDetector(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, DefaultParameters, nil)
	originalID := ids.GenerateTestID()
	forkID := originalID
	forkID[0]++
	unrelatedID := ids.GenerateTestID()

	for _, vertexID := range []ids.ID{originalID, forkID, unrelatedID} {
		e.ProcessVertex(vertexID)
	}
	setConfidence(e, forkID, 0.6)

	require.Equal([]ids.ID{originalID}, e.DetectAndResolveForks())
	require.Equal([]ids.ID{originalID}, e.Conflicts(forkID))
}

func TestAdvancedForkResolution(t *testing.T) {
	tests := []struct {
		name           string
		confidence     float64
		expectedStatus Status
	}{
		{
			name:           "above finality threshold",
			confidence:     0.95,
			expectedStatus: Final,
		},
		{
			name:           "above beta",
			confidence:     0.85,
			expectedStatus: Accepted,
		},
		{
			name:           "undecided",
			confidence:     0.5,
			expectedStatus: Pending,
		},
		{
			name:           "below 1-beta",
			confidence:     0.2,
			expectedStatus: Rejected,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			winnerID := ids.GenerateTestID()
			loserID := ids.GenerateTestID()
			e := newForkEngine(t, conflictGroups([]ids.ID{winnerID, loserID}))
			e.ProcessVertex(winnerID)
			e.ProcessVertex(loserID)
			setConfidence(e, winnerID, 1)

			require.Equal([]ids.ID{loserID}, e.DetectAndResolveForks())

			setConfidence(e, winnerID, test.confidence)
			status, err := e.AdvancedForkResolution(winnerID)
			require.NoError(err)
			require.Equal(test.expectedStatus, status)

			current, err := e.Status(winnerID)
			require.NoError(err)
			require.Equal(test.expectedStatus, current)
		})
	}
}

func TestAdvancedForkResolutionPendingSibling(t *testing.T) {
	require := require.New(t)

	e := newForkEngine(t, nil)
	winnerID := ids.GenerateTestID()
	siblingID := ids.GenerateTestID()
	e.ProcessVertex(winnerID)
	e.ProcessVertex(siblingID)
	e.ledger.RecordConflict(winnerID, siblingID)
	setConfidence(e, winnerID, 1)

	status, err := e.AdvancedForkResolution(winnerID)
	require.NoError(err)
	require.Equal(Pending, status)

	require.NoError(e.RecordVote(siblingID, ids.GenerateTestNodeID(), false))
	status, err = e.AdvancedForkResolution(winnerID)
	require.NoError(err)
	require.Equal(Final, status)

	// Decided vertices are left untouched.
	setConfidence(e, winnerID, 0)
	status, err = e.AdvancedForkResolution(winnerID)
	require.NoError(err)
	require.Equal(Final, status)

	_, err = e.AdvancedForkResolution(ids.GenerateTestID())
	require.ErrorIs(err, ErrInvalidVertex)
}

func TestFinalizeRaceWithForkResolution(t *testing.T) {
	require := require.New(t)

	aID := ids.GenerateTestID()
	bID := ids.GenerateTestID()
	e := newForkEngine(t, conflictGroups([]ids.ID{aID, bID}))
	e.ProcessVertex(aID)
	e.ProcessVertex(bID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Finalize(aID)
		_ = e.Finalize(bID)
	}()
	rejected := e.DetectAndResolveForks()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		require.FailNow("finalization deadlocked")
	}

	numFinal := 0
	for _, vertexID := range []ids.ID{aID, bID} {
		status, err := e.Status(vertexID)
		require.NoError(err)
		if status == Final {
			numFinal++
		}
	}
	require.Equal(2-len(rejected), numFinal)
}
