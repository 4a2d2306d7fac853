// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"fmt"
	"time"
)

// Votes within this distance of a threshold count as reaching it, so that
// e.g. 1 positive out of 5 votes rejects with Beta = 0.8.
const thresholdEpsilon = 1e-9

// Confidence summarizes the accumulated vote sentiment for a vertex.
type Confidence struct {
	// Value is in [0, 1].
	Value         float64   `json:"value"`
	PositiveVotes int       `json:"positiveVotes"`
	NegativeVotes int       `json:"negativeVotes"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func NewConfidence(now time.Time) Confidence {
	return Confidence{LastUpdated: now}
}

// UpdateVotes overwrites the tallies with the cumulative counts [positive]
// and [negative] and recomputes Value. Value is left untouched when there
// are no votes.
func (c *Confidence) UpdateVotes(positive, negative int, now time.Time) {
	c.PositiveVotes = positive
	c.NegativeVotes = negative
	if total := positive + negative; total > 0 {
		c.Value = float64(positive) / float64(total)
	}
	c.LastUpdated = now
}

// smooth blends [momentum] of the [previous] value back into Value.
func (c *Confidence) smooth(previous, momentum float64) {
	c.Value = c.Value*(1-momentum) + previous*momentum
}

func (c Confidence) String() string {
	return fmt.Sprintf("Confidence(Value = %.4f, Positive = %d, Negative = %d)",
		c.Value,
		c.PositiveVotes,
		c.NegativeVotes,
	)
}

func atLeast(value, threshold float64) bool {
	return value >= threshold-thresholdEpsilon
}

func atMost(value, threshold float64) bool {
	return value <= threshold+thresholdEpsilon
}
