// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"context"

	"github.com/qudag/qrdag/ids"
)

// Consensus represents a QR-Avalanche instance deciding DAG vertices.
type Consensus interface {
	// Initialize registers the genesis vertex as an accepted tip.
	Initialize(genesisID ids.ID) error

	// ProcessVertex registers a vertex and returns its status.
	ProcessVertex(vertexID ids.ID) Status

	// RecordVote records a single vote and decides the vertex if its
	// confidence crossed a threshold.
	RecordVote(vertexID ids.ID, voterID ids.NodeID, vote bool) error

	// Finalize marks a vertex as final.
	Finalize(vertexID ids.ID) error

	// QuerySample polls a sample of the participants once.
	QuerySample(ctx context.Context, vertexID ids.ID) (int, int, error)

	// RunConsensusRound polls participants until the vertex is decided or
	// the round budget runs out.
	RunConsensusRound(ctx context.Context, vertexID ids.ID) (Status, error)

	// RunFastConsensusRound is RunConsensusRound tuned for sub-second
	// finality.
	RunFastConsensusRound(ctx context.Context, vertexID ids.ID) (Status, error)

	// PollTips runs a consensus round on every tip.
	PollTips(ctx context.Context, parallelism int) (map[ids.ID]Status, error)

	DetectAndResolveForks() []ids.ID
	AdvancedForkResolution(vertexID ids.ID) (Status, error)

	DetectByzantinePatterns() []ids.NodeID
	CheckByzantineTolerance() bool

	Status(vertexID ids.ID) (Status, error)
	GetConfidence(vertexID ids.ID) (Confidence, bool)
	IsConsensusReached(vertexID ids.ID) (bool, error)

	// Tips returns the undecided vertices.
	Tips() []ids.ID
	NumProcessing() int

	// Prune forgets every decided vertex.
	Prune() []ids.ID

	AddParticipant(nodeID ids.NodeID)
	RemoveParticipant(nodeID ids.NodeID)
	Participants() []ids.NodeID

	GetMetrics() MetricsSnapshot
}
