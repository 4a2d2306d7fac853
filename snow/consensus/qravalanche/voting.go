// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/utils/set"
)

// Tally is the number of votes a voter has cast across all vertices.
type Tally struct {
	Positive int
	Total    int
}

// votes is the set of votes cast on a single vertex.
type votes struct {
	lock   sync.Mutex
	voters map[ids.NodeID]bool
}

// VotingLedger records the votes cast on each vertex, the voters caught
// contradicting themselves and the forks that have been settled.
//
// A voter may cast one vote per vertex. Repeating the same vote is a no-op.
// Changing it marks the voter as byzantine forever.
type VotingLedger struct {
	votesLock sync.RWMutex
	votes     map[ids.ID]*votes

	byzantineLock sync.RWMutex
	byzantine     set.Set[ids.NodeID]

	conflictsLock sync.RWMutex
	// winner -> losers
	conflicts map[ids.ID]set.Set[ids.ID]
	// loser -> winner
	lostTo map[ids.ID]ids.ID
}

func NewVotingLedger() *VotingLedger {
	return &VotingLedger{
		votes:     make(map[ids.ID]*votes),
		conflicts: make(map[ids.ID]set.Set[ids.ID]),
		lostTo:    make(map[ids.ID]ids.ID),
	}
}

func (l *VotingLedger) getOrCreate(vertexID ids.ID) *votes {
	l.votesLock.RLock()
	v, ok := l.votes[vertexID]
	l.votesLock.RUnlock()
	if ok {
		return v
	}

	l.votesLock.Lock()
	defer l.votesLock.Unlock()

	if v, ok := l.votes[vertexID]; ok {
		return v
	}
	v = &votes{voters: make(map[ids.NodeID]bool)}
	l.votes[vertexID] = v
	return v
}

// RecordVote stores [vote] by [voterID] on [vertexID].
//
// Returns ErrByzantineBehavior, without storing anything, if [voterID]
// already cast the opposite vote on [vertexID].
func (l *VotingLedger) RecordVote(vertexID ids.ID, voterID ids.NodeID, vote bool) error {
	v := l.getOrCreate(vertexID)

	v.lock.Lock()
	defer v.lock.Unlock()

	previous, voted := v.voters[voterID]
	switch {
	case !voted:
		v.voters[voterID] = vote
		return nil
	case previous == vote:
		return nil
	default:
		l.MarkByzantine(voterID)
		return fmt.Errorf("%w: %s voted %t then %t on %s",
			ErrByzantineBehavior,
			voterID,
			previous,
			vote,
			vertexID,
		)
	}
}

// VoteCounts returns the number of positive and negative votes stored for
// [vertexID]. Votes stored before their voter was marked byzantine are still
// counted.
func (l *VotingLedger) VoteCounts(vertexID ids.ID) (int, int) {
	l.votesLock.RLock()
	v, ok := l.votes[vertexID]
	l.votesLock.RUnlock()
	if !ok {
		return 0, 0
	}

	v.lock.Lock()
	defer v.lock.Unlock()

	positive := 0
	for _, vote := range v.voters {
		if vote {
			positive++
		}
	}
	return positive, len(v.voters) - positive
}

// Vote returns the vote [voterID] cast on [vertexID], if any.
func (l *VotingLedger) Vote(vertexID ids.ID, voterID ids.NodeID) (bool, bool) {
	l.votesLock.RLock()
	v, ok := l.votes[vertexID]
	l.votesLock.RUnlock()
	if !ok {
		return false, false
	}

	v.lock.Lock()
	defer v.lock.Unlock()

	vote, ok := v.voters[voterID]
	return vote, ok
}

// VoterTallies aggregates the stored votes per voter.
func (l *VotingLedger) VoterTallies() map[ids.NodeID]Tally {
	l.votesLock.RLock()
	entries := maps.Values(l.votes)
	l.votesLock.RUnlock()

	tallies := make(map[ids.NodeID]Tally)
	for _, v := range entries {
		v.lock.Lock()
		for voterID, vote := range v.voters {
			tally := tallies[voterID]
			tally.Total++
			if vote {
				tally.Positive++
			}
			tallies[voterID] = tally
		}
		v.lock.Unlock()
	}
	return tallies
}

// Remove drops the votes and conflict records of [vertexID].
func (l *VotingLedger) Remove(vertexID ids.ID) {
	l.votesLock.Lock()
	delete(l.votes, vertexID)
	l.votesLock.Unlock()

	l.conflictsLock.Lock()
	defer l.conflictsLock.Unlock()

	delete(l.conflicts, vertexID)
	delete(l.lostTo, vertexID)
}

// MarkByzantine adds [voterID] to the byzantine set. Returns true if it was
// not already marked.
func (l *VotingLedger) MarkByzantine(voterID ids.NodeID) bool {
	l.byzantineLock.Lock()
	defer l.byzantineLock.Unlock()

	if l.byzantine.Contains(voterID) {
		return false
	}
	l.byzantine.Add(voterID)
	return true
}

func (l *VotingLedger) IsByzantine(voterID ids.NodeID) bool {
	l.byzantineLock.RLock()
	defer l.byzantineLock.RUnlock()

	return l.byzantine.Contains(voterID)
}

// ByzantineVoters returns a sorted snapshot of the byzantine set.
func (l *VotingLedger) ByzantineVoters() []ids.NodeID {
	l.byzantineLock.RLock()
	voters := l.byzantine.List()
	l.byzantineLock.RUnlock()

	slices.SortFunc(voters, lessNodeID)
	return voters
}

func (l *VotingLedger) NumByzantine() int {
	l.byzantineLock.RLock()
	defer l.byzantineLock.RUnlock()

	return l.byzantine.Len()
}

// RecordConflict records that [loser] lost a fork to [winner].
func (l *VotingLedger) RecordConflict(winner, loser ids.ID) {
	l.conflictsLock.Lock()
	defer l.conflictsLock.Unlock()

	losers := l.conflicts[winner]
	losers.Add(loser)
	l.conflicts[winner] = losers
	l.lostTo[loser] = winner
}

// Conflicts returns the sorted vertices that lost a fork to [winner].
func (l *VotingLedger) Conflicts(winner ids.ID) []ids.ID {
	l.conflictsLock.RLock()
	losers := l.conflicts[winner].List()
	l.conflictsLock.RUnlock()

	slices.SortFunc(losers, ids.ID.Less)
	return losers
}

// LostTo returns the vertex that [loser] lost a fork to, if any.
func (l *VotingLedger) LostTo(loser ids.ID) (ids.ID, bool) {
	l.conflictsLock.RLock()
	defer l.conflictsLock.RUnlock()

	winner, ok := l.lostTo[loser]
	return winner, ok
}
