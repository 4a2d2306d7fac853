// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/utils/timer/mockable"
)

func TestNewInvalidParameters(t *testing.T) {
	params := DefaultParameters
	params.Beta = 0.4

	_, err := New(Config{Params: params})
	require.ErrorIs(t, err, ErrParametersInvalid)
}

func TestNewDuplicateMetrics(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	_, err := New(Config{Params: DefaultParameters, Registerer: reg})
	require.NoError(err)

	_, err = New(Config{Params: DefaultParameters, Registerer: reg})
	require.Error(err)

	_, err = New(Config{Params: DefaultParameters, Registerer: reg, Namespace: "other"})
	require.NoError(err)
}

func TestUnanimousVotesFinalize(t *testing.T) {
	require := require.New(t)

	e, reg := newTestEngine(t, DefaultParameters, nil)
	vertexID := ids.GenerateTestID()
	require.Equal(Pending, e.ProcessVertex(vertexID))

	for i := 0; i < 3; i++ {
		require.NoError(e.RecordVote(vertexID, ids.GenerateTestNodeID(), true))
	}

	status, err := e.Status(vertexID)
	require.NoError(err)
	require.Equal(Final, status)

	confidence, ok := e.GetConfidence(vertexID)
	require.True(ok)
	require.Equal(1.0, confidence.Value)
	require.Equal(3, confidence.PositiveVotes)

	snapshot := e.GetMetrics()
	require.Equal(uint64(1), snapshot.FinalizedCount)
	require.Equal(uint64(1), snapshot.TotalVerticesProcessed)
	require.Equal(1.0, gatherValue(t, reg, "qravalanche_vertices_finalized"))
	require.Equal(1.0, gatherValue(t, reg, "qravalanche_finality_latency"))
	require.Empty(e.Tips())
}

func TestMostlyNegativeVotesReject(t *testing.T) {
	require := require.New(t)

	e, reg := newTestEngine(t, DefaultParameters, nil)
	vertexID := ids.GenerateTestID()
	e.ProcessVertex(vertexID)

	for _, vote := range []bool{false, false, false, false, true} {
		require.NoError(e.RecordVote(vertexID, ids.GenerateTestNodeID(), vote))
	}

	status, err := e.Status(vertexID)
	require.NoError(err)
	require.Equal(Rejected, status)

	confidence, ok := e.GetConfidence(vertexID)
	require.True(ok)
	require.InDelta(0.2, confidence.Value, 1e-12)
	require.True(atMost(confidence.Value, 1-DefaultParameters.Beta))

	require.Equal(uint64(1), e.GetMetrics().RejectedCount)
	require.Equal(1.0, gatherValue(t, reg, "qravalanche_vertices_rejected"))
}

func TestRejectOnBoundaryConfidence(t *testing.T) {
	require := require.New(t)

	// The first votes bypass the engine so that the only transition happens
	// at exactly 1 positive out of 5.
	e, _ := newTestEngine(t, DefaultParameters, nil)
	vertexID := ids.GenerateTestID()
	e.ProcessVertex(vertexID)

	votes := []bool{true, false, false, false}
	for _, vote := range votes {
		require.NoError(e.ledger.RecordVote(vertexID, ids.GenerateTestNodeID(), vote))
	}
	require.NoError(e.RecordVote(vertexID, ids.GenerateTestNodeID(), false))

	status, err := e.Status(vertexID)
	require.NoError(err)
	require.Equal(Rejected, status)
}

func TestContradictingVoteIsByzantine(t *testing.T) {
	require := require.New(t)

	e, reg := newTestEngine(t, DefaultParameters, nil)
	vertexID := ids.GenerateTestID()
	e.ProcessVertex(vertexID)
	voterID := ids.GenerateTestNodeID()

	require.NoError(e.RecordVote(vertexID, voterID, true))
	err := e.RecordVote(vertexID, voterID, false)
	require.ErrorIs(err, ErrByzantineBehavior)

	require.True(e.IsByzantine(voterID))
	require.Equal([]ids.NodeID{voterID}, e.ByzantineVoters())

	positive, negative := e.VoteCounts(vertexID)
	require.Equal(1, positive)
	require.Zero(negative)

	require.Equal(uint64(1), e.GetMetrics().ByzantineBehaviorsDetected)
	require.Equal(1.0, gatherValue(t, reg, "qravalanche_byzantine_behaviors"))

	// Repeating the original vote is still fine.
	require.NoError(e.RecordVote(vertexID, voterID, true))
}

func TestRecordVoteUnknownVertex(t *testing.T) {
	e, _ := newTestEngine(t, DefaultParameters, nil)
	err := e.RecordVote(ids.GenerateTestID(), ids.GenerateTestNodeID(), true)
	require.ErrorIs(t, err, ErrInvalidVertex)
}

func TestFinalityIsMonotonic(t *testing.T) {
	require := require.New(t)

	e, reg := newTestEngine(t, DefaultParameters, nil)
	vertexID := ids.GenerateTestID()
	e.ProcessVertex(vertexID)

	require.NoError(e.RecordVote(vertexID, ids.GenerateTestNodeID(), true))
	status, err := e.Status(vertexID)
	require.NoError(err)
	require.Equal(Final, status)

	// Negative votes can lower the confidence but not the status.
	for i := 0; i < 10; i++ {
		require.NoError(e.RecordVote(vertexID, ids.GenerateTestNodeID(), false))
	}
	confidence, _ := e.GetConfidence(vertexID)
	require.Less(confidence.Value, 0.2)

	status, err = e.Status(vertexID)
	require.NoError(err)
	require.Equal(Final, status)

	// Neither re-finalizing nor re-registering records a second latency.
	require.NoError(e.Finalize(vertexID))
	require.Equal(Final, e.ProcessVertex(vertexID))

	snapshot := e.GetMetrics()
	require.Equal(uint64(1), snapshot.FinalizedCount)
	require.Equal(uint64(1), snapshot.TotalVerticesProcessed)
	require.Zero(snapshot.RejectedCount)
	require.Equal(1.0, gatherValue(t, reg, "qravalanche_finality_latency"))
}

func TestFinalize(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, DefaultParameters, nil)

	require.ErrorIs(e.Finalize(ids.GenerateTestID()), ErrInvalidVertex)

	pendingID := ids.GenerateTestID()
	e.ProcessVertex(pendingID)
	require.NoError(e.Finalize(pendingID))
	require.NoError(e.Finalize(pendingID))

	rejectedID := ids.GenerateTestID()
	e.ProcessVertex(rejectedID)
	require.NoError(e.RecordVote(rejectedID, ids.GenerateTestNodeID(), false))
	require.ErrorIs(e.Finalize(rejectedID), ErrInvalidState)

	status, err := e.Status(rejectedID)
	require.NoError(err)
	require.Equal(Rejected, status)
	require.Equal(uint64(1), e.GetMetrics().FinalizedCount)
}

func TestFinalityLatency(t *testing.T) {
	require := require.New(t)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(1000, 0))

	e, err := New(Config{
		Params: DefaultParameters,
		Clock:  clock,
	})
	require.NoError(err)

	firstID := ids.GenerateTestID()
	secondID := ids.GenerateTestID()
	e.ProcessVertex(firstID)
	e.ProcessVertex(secondID)

	clock.Advance(100 * time.Millisecond)
	require.NoError(e.Finalize(firstID))

	clock.Advance(200 * time.Millisecond)
	require.NoError(e.Finalize(secondID))

	clock.Advance(700 * time.Millisecond)
	snapshot := e.GetMetrics()
	require.Equal(uint64(2), snapshot.FinalizedCount)
	require.Equal(400*time.Millisecond, snapshot.TotalFinalityTime)
	require.Equal(200*time.Millisecond, snapshot.AverageFinalityTime)
	require.Greater(snapshot.RecentFinalityTime, 100*time.Millisecond)
	require.Less(snapshot.RecentFinalityTime, 300*time.Millisecond)
	require.InDelta(2.0, snapshot.CurrentThroughput, 1e-9)
}

func TestProcessVertexTwice(t *testing.T) {
	require := require.New(t)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(1000, 0))

	e, err := New(Config{
		Params: DefaultParameters,
		Clock:  clock,
	})
	require.NoError(err)

	vertexID := ids.GenerateTestID()
	e.ProcessVertex(vertexID)

	// A single vote that doesn't decide anything.
	require.NoError(e.ledger.RecordVote(vertexID, ids.GenerateTestNodeID(), true))
	require.NoError(e.RecordVote(vertexID, ids.GenerateTestNodeID(), false))
	confidence, _ := e.GetConfidence(vertexID)
	require.Equal(0.5, confidence.Value)

	clock.Advance(time.Second)
	require.Equal(Pending, e.ProcessVertex(vertexID))

	confidence, _ = e.GetConfidence(vertexID)
	require.Zero(confidence.Value)
	require.Zero(confidence.PositiveVotes)
	require.Equal(clock.Time(), confidence.LastUpdated)

	// Votes survive re-registration.
	positive, negative := e.VoteCounts(vertexID)
	require.Equal(1, positive)
	require.Equal(1, negative)

	require.Equal(uint64(1), e.GetMetrics().TotalVerticesProcessed)
	require.Equal([]ids.ID{vertexID}, e.Tips())

	// The latency clock was restarted.
	clock.Advance(50 * time.Millisecond)
	require.NoError(e.Finalize(vertexID))
	require.Equal(50*time.Millisecond, e.GetMetrics().TotalFinalityTime)
}

func TestInitialize(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, DefaultParameters, nil)
	genesisID := ids.GenerateTestID()
	require.NoError(e.Initialize(genesisID))

	status, err := e.Status(genesisID)
	require.NoError(err)
	require.Equal(Accepted, status)
	require.Equal([]ids.ID{genesisID}, e.Tips())

	reached, err := e.IsConsensusReached(genesisID)
	require.NoError(err)
	require.True(reached)

	require.ErrorIs(e.Initialize(ids.GenerateTestID()), ErrInvalidState)
}

func TestGenesisIsNeverRejected(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, DefaultParameters, nil)
	genesisID := ids.GenerateTestID()
	require.NoError(e.Initialize(genesisID))

	require.NoError(e.RecordVote(genesisID, ids.GenerateTestNodeID(), false))
	status, err := e.Status(genesisID)
	require.NoError(err)
	require.Equal(Accepted, status)
	require.Equal([]ids.ID{genesisID}, e.Tips())
	require.Zero(e.GetMetrics().RejectedCount)

	status, err = e.AdvancedForkResolution(genesisID)
	require.NoError(err)
	require.Equal(Accepted, status)

	require.NoError(e.Finalize(genesisID))
	status, err = e.Status(genesisID)
	require.NoError(err)
	require.Equal(Final, status)
}

func TestPrunedVertexIgnoresVotes(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, DefaultParameters, nil)
	vertexID := ids.GenerateTestID()
	e.ProcessVertex(vertexID)
	require.NoError(e.Finalize(vertexID))

	// A vote racing with Prune looked the vertex up before it was evicted.
	vtx, err := e.getVertex(vertexID)
	require.NoError(err)
	require.Equal([]ids.ID{vertexID}, e.Prune())

	err = e.vote(vtx, ids.GenerateTestNodeID(), true)
	require.ErrorIs(err, ErrInvalidVertex)

	positive, negative := e.VoteCounts(vertexID)
	require.Zero(positive)
	require.Zero(negative)
	require.Empty(e.ledger.VoterTallies())
}

func TestIsConsensusReached(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, DefaultParameters, nil)

	_, err := e.IsConsensusReached(ids.GenerateTestID())
	require.ErrorIs(err, ErrInvalidVertex)

	vertexID := ids.GenerateTestID()
	e.ProcessVertex(vertexID)
	reached, err := e.IsConsensusReached(vertexID)
	require.NoError(err)
	require.False(reached)

	require.NoError(e.Finalize(vertexID))
	reached, err = e.IsConsensusReached(vertexID)
	require.NoError(err)
	require.True(reached)
}

func TestTipsAndPrune(t *testing.T) {
	require := require.New(t)

	e, reg := newTestEngine(t, DefaultParameters, nil)
	vertexIDs := make([]ids.ID, 4)
	for i := range vertexIDs {
		vertexIDs[i] = ids.GenerateTestID()
		e.ProcessVertex(vertexIDs[i])
	}

	tips := e.Tips()
	require.Len(tips, 4)
	require.ElementsMatch(vertexIDs, tips)
	for i := 1; i < len(tips); i++ {
		require.True(tips[i-1].Less(tips[i]))
	}
	require.Equal(4, e.NumProcessing())
	require.Equal(4.0, gatherValue(t, reg, "qravalanche_vertices_processing"))

	finalID := vertexIDs[0]
	rejectedID := vertexIDs[1]
	require.NoError(e.Finalize(finalID))
	require.NoError(e.RecordVote(rejectedID, ids.GenerateTestNodeID(), false))
	require.Equal(2, e.NumProcessing())
	require.Equal(2.0, gatherValue(t, reg, "qravalanche_vertices_processing"))

	pruned := e.Prune()
	require.ElementsMatch([]ids.ID{finalID, rejectedID}, pruned)
	require.Empty(e.Prune())

	_, err := e.Status(finalID)
	require.ErrorIs(err, ErrInvalidVertex)
	_, ok := e.GetConfidence(rejectedID)
	require.False(ok)
	positive, negative := e.VoteCounts(rejectedID)
	require.Zero(positive)
	require.Zero(negative)

	require.ElementsMatch(vertexIDs[2:], e.Tips())
}

func TestParticipants(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, DefaultParameters, nil)
	require.Empty(e.Participants())

	nodeID := ids.GenerateTestNodeID()
	e.AddParticipant(nodeID)
	e.AddParticipant(nodeID)
	require.Equal([]ids.NodeID{nodeID}, e.Participants())

	e.RemoveParticipant(nodeID)
	e.RemoveParticipant(nodeID)
	require.Empty(e.Participants())
}

func TestConcurrentVotes(t *testing.T) {
	require := require.New(t)

	const (
		numVertices = 8
		numVoters   = 32
	)

	e, _ := newTestEngine(t, DefaultParameters, nil)
	vertexIDs := make([]ids.ID, numVertices)
	for i := range vertexIDs {
		vertexIDs[i] = ids.GenerateTestID()
		e.ProcessVertex(vertexIDs[i])
	}

	var wg sync.WaitGroup
	for _, vertexID := range vertexIDs {
		for i := 0; i < numVoters; i++ {
			wg.Add(1)
			go func(vertexID ids.ID) {
				defer wg.Done()

				_ = e.RecordVote(vertexID, ids.GenerateTestNodeID(), true)
				_ = e.Finalize(vertexID)
				_, _ = e.Status(vertexID)
				_ = e.Tips()
			}(vertexID)
		}
	}
	wg.Wait()

	for _, vertexID := range vertexIDs {
		status, err := e.Status(vertexID)
		require.NoError(err)
		require.Equal(Final, status)

		positive, _ := e.VoteCounts(vertexID)
		require.Equal(numVoters, positive)
	}

	snapshot := e.GetMetrics()
	require.Equal(uint64(numVertices), snapshot.FinalizedCount)
	require.Zero(snapshot.RejectedCount)
	require.Empty(e.Tips())
}

func TestEngineString(t *testing.T) {
	e, _ := newTestEngine(t, DefaultParameters, nil)
	e.ProcessVertex(ids.GenerateTestID())
	e.AddParticipant(ids.GenerateTestNodeID())

	require.Equal(t, "QRAvalanche(NumProcessing = 1, NumParticipants = 1, NumByzantine = 0)", e.String())
}
