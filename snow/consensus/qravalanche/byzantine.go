// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/qudag/qrdag/ids"
)

var (
	_ PatternDetector = BalancedVoterDetector{}

	// DefaultPatternDetector flags voters with at least 10 votes whose
	// positive share is strictly between 40% and 60%.
	DefaultPatternDetector = BalancedVoterDetector{
		MinVotes: 10,
		Lower:    0.4,
		Upper:    0.6,
	}
)

// PatternDetector decides whether a voter's voting history is byzantine.
type PatternDetector interface {
	IsByzantine(positive, total int) bool
}

// BalancedVoterDetector flags voters whose votes are split too evenly to be
// honest.
type BalancedVoterDetector struct {
	MinVotes int
	Lower    float64
	Upper    float64
}

func (d BalancedVoterDetector) IsByzantine(positive, total int) bool {
	if total < d.MinVotes || total == 0 {
		return false
	}
	ratio := float64(positive) / float64(total)
	return d.Lower < ratio && ratio < d.Upper
}

// DetectByzantinePatterns marks every voter whose voting history matches the
// pattern detector as byzantine. Returns the newly marked voters in
// ascending order.
func (e *Engine) DetectByzantinePatterns() []ids.NodeID {
	tallies := e.ledger.VoterTallies()
	voters := maps.Keys(tallies)
	slices.SortFunc(voters, lessNodeID)

	var detected []ids.NodeID
	for _, voterID := range voters {
		tally := tallies[voterID]
		if !e.patternDetector.IsByzantine(tally.Positive, tally.Total) {
			continue
		}
		if !e.ledger.MarkByzantine(voterID) {
			continue
		}

		e.metrics.ByzantineDetected()
		e.log.Warn("detected byzantine voting pattern",
			zap.Stringer("nodeID", voterID),
			zap.Int("positive", tally.Positive),
			zap.Int("total", tally.Total),
		)
		detected = append(detected, voterID)
	}
	return detected
}

// CheckByzantineTolerance returns true if fewer than a third of the
// participants are known to be byzantine. At least 3 participants are
// required to tolerate any fault.
func (e *Engine) CheckByzantineTolerance() bool {
	n := e.participants.Len()
	return n >= 3 && e.ledger.NumByzantine() < n/3
}
