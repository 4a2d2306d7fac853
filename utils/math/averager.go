// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math"
	"time"
)

var _ Averager = (*averager)(nil)

// Averager tracks a continuous time exponential moving average of the provided
// values.
type Averager interface {
	// Observe the value at the given time
	Observe(value float64, currentTime time.Time)

	// Read returns the average of the provided values.
	Read() float64
}

type averager struct {
	// decayRate is the halflife divided by ln(2), so that a weight observed
	// [decayRate] nanoseconds ago has decayed by a factor of e.
	decayRate   float64
	weightedSum float64
	normalizer  float64
	lastUpdated time.Time
}

// NewAverager returns an averager that starts at [initialPrediction] and
// halves the weight of an observation every [halflife].
func NewAverager(
	initialPrediction float64,
	halflife time.Duration,
	currentTime time.Time,
) Averager {
	return &averager{
		decayRate:   float64(halflife) / math.Ln2,
		weightedSum: initialPrediction,
		normalizer:  1,
		lastUpdated: currentTime,
	}
}

func (a *averager) Observe(value float64, currentTime time.Time) {
	elapsed := currentTime.Sub(a.lastUpdated)
	if elapsed >= 0 {
		// Age the history so the newest observation keeps a weight of 1.
		weight := a.decay(elapsed)
		a.weightedSum = value + weight*a.weightedSum
		a.normalizer = 1 + weight*a.normalizer
		a.lastUpdated = currentTime
		return
	}

	// Late observations are aged instead of the history.
	weight := a.decay(-elapsed)
	a.weightedSum += weight * value
	a.normalizer += weight
}

func (a *averager) Read() float64 {
	return a.weightedSum / a.normalizer
}

// decay returns the weight left after [elapsed].
func (a *averager) decay(elapsed time.Duration) float64 {
	return math.Exp(-float64(elapsed) / a.decayRate)
}
