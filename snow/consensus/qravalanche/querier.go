// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"context"

	"github.com/spaolacci/murmur3"

	"github.com/qudag/qrdag/ids"
)

var (
	_ Querier = SimulatedQuerier{}
	_ Querier = QuerierFunc(nil)
)

// Opinion is a peer's answer to a poll.
type Opinion struct {
	NodeID ids.NodeID
	Vote   bool
}

// Querier asks peers for their opinion on a vertex.
type Querier interface {
	// Query polls [peers] about [vertexID]. Peers that do not answer are
	// omitted from the result. Answers from nodes that were not polled are
	// ignored by the engine.
	Query(ctx context.Context, vertexID ids.ID, peers []ids.NodeID) ([]Opinion, error)
}

// QuerierFunc adapts a function into a Querier.
type QuerierFunc func(ctx context.Context, vertexID ids.ID, peers []ids.NodeID) ([]Opinion, error)

func (f QuerierFunc) Query(ctx context.Context, vertexID ids.ID, peers []ids.NodeID) ([]Opinion, error) {
	return f(ctx, vertexID, peers)
}

// SimulatedQuerier answers on behalf of every peer without any network
// traffic. A peer votes for a vertex iff the murmur3 hash of the vertex ID
// followed by the node ID is even.
type SimulatedQuerier struct{}

func (SimulatedQuerier) Query(ctx context.Context, vertexID ids.ID, peers []ids.NodeID) ([]Opinion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opinions := make([]Opinion, len(peers))
	for i, nodeID := range peers {
		opinions[i] = Opinion{
			NodeID: nodeID,
			Vote:   SimulatedVote(vertexID, nodeID),
		}
	}
	return opinions, nil
}

// SimulatedVote is the opinion SimulatedQuerier reports for [nodeID].
func SimulatedVote(vertexID ids.ID, nodeID ids.NodeID) bool {
	hasher := murmur3.New64()
	_, _ = hasher.Write(vertexID[:])
	_, _ = hasher.Write(nodeID[:])
	return hasher.Sum64()%2 == 0
}
