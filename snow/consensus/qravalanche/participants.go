// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/utils/set"
)

// participants is the set of nodes that can be polled.
type participants struct {
	lock  sync.RWMutex
	nodes set.Set[ids.NodeID]
}

// Add returns true if [nodeID] was not already a participant.
func (p *participants) Add(nodeID ids.NodeID) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.nodes.Contains(nodeID) {
		return false
	}
	p.nodes.Add(nodeID)
	return true
}

// Remove returns true if [nodeID] was a participant.
func (p *participants) Remove(nodeID ids.NodeID) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.nodes.Contains(nodeID) {
		return false
	}
	p.nodes.Remove(nodeID)
	return true
}

func (p *participants) Len() int {
	p.lock.RLock()
	defer p.lock.RUnlock()

	return p.nodes.Len()
}

// List returns the participants sorted by NodeID.
func (p *participants) List() []ids.NodeID {
	p.lock.RLock()
	nodes := p.nodes.List()
	p.lock.RUnlock()

	slices.SortFunc(nodes, lessNodeID)
	return nodes
}

func lessNodeID(a, b ids.NodeID) bool {
	return a.Compare(b) < 0
}
