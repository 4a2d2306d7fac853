// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/utils/sampler"
)

var (
	_ Sampler = DistanceSampler{}
	_ Sampler = (*UniformSampler)(nil)
)

// Sampler picks which participants are polled about a vertex.
type Sampler interface {
	// Sample returns at most [k] distinct elements of [participants].
	Sample(vertexID ids.ID, participants []ids.NodeID, k int) []ids.NodeID
}

// DistanceSampler polls the [k] participants closest to the vertex, where
// the distance is the sum of the squared absolute byte-wise differences
// between the leading bytes of the vertex ID and the node ID. Ties are broken
// by NodeID.
type DistanceSampler struct{}

func (DistanceSampler) Sample(vertexID ids.ID, participants []ids.NodeID, k int) []ids.NodeID {
	type candidate struct {
		nodeID   ids.NodeID
		distance uint64
	}

	candidates := make([]candidate, len(participants))
	for i, nodeID := range participants {
		candidates[i] = candidate{
			nodeID:   nodeID,
			distance: distance(vertexID, nodeID),
		}
	}
	slices.SortFunc(candidates, func(a, b candidate) bool {
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return lessNodeID(a.nodeID, b.nodeID)
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	sampled := make([]ids.NodeID, k)
	for i := range sampled {
		sampled[i] = candidates[i].nodeID
	}
	return sampled
}

func distance(vertexID ids.ID, nodeID ids.NodeID) uint64 {
	var sum uint64
	for i := 0; i < ids.NodeIDLen; i++ {
		a, b := vertexID[i], nodeID[i]
		if a < b {
			a, b = b, a
		}
		diff := uint64(a - b)
		sum += diff * diff
	}
	return sum
}

// UniformSampler polls [k] participants chosen uniformly at random from a
// seeded source.
type UniformSampler struct {
	lock    sync.Mutex
	uniform sampler.Uniform
}

// NewUniformSampler returns a sampler whose choices are fully determined by
// [seed] and the sequence of calls made on it.
func NewUniformSampler(seed uint64) *UniformSampler {
	return &UniformSampler{
		uniform: sampler.NewDeterministicUniform(seed),
	}
}

func (s *UniformSampler) Sample(_ ids.ID, participants []ids.NodeID, k int) []ids.NodeID {
	if k > len(participants) {
		k = len(participants)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.uniform.Initialize(uint64(len(participants)))
	indices, _ := s.uniform.Sample(k)
	sampled := make([]ids.NodeID, len(indices))
	for i, index := range indices {
		sampled[i] = participants[index]
	}
	return sampled
}
