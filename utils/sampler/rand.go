// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sampler

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mathext/prng"
)

func newRNG(seed uint64) *rng {
	// We don't use a cryptographically secure source of randomness here, as
	// there's no need to ensure a truly random sampling.
	source := prng.NewMT19937()
	source.Seed(seed)
	return &rng{rng: source}
}

type rng struct {
	lock sync.Mutex
	rng  Source
}

type Source interface {
	// Uint64 returns a random number in [0, MaxUint64] and advances the
	// generator's state.
	Uint64() uint64
}

// Uint64Inclusive returns a pseudo-random number in [0,n].
func (r *rng) Uint64Inclusive(n uint64) uint64 {
	switch {
	// n+1 is power of two, so we can just mask
	//
	// Note: This does work for MaxUint64 as overflow is explicitly part of the
	// compiler specification: https://go.dev/ref/spec#Integer_overflow
	case n&(n+1) == 0:
		return r.uint64() & n

	// n is greater than MaxUint64/2 so we need to just iterate until we get a
	// number in the requested range.
	case n > math.MaxInt64:
		v := r.uint64()
		for v > n {
			v = r.uint64()
		}
		return v

	// Reject the low values that would bias the modulo, leaving a range whose
	// size is a multiple of n+1.
	default:
		bound := n + 1
		threshold := (math.MaxUint64 - bound + 1) % bound
		for {
			v := r.uint64()
			if v >= threshold {
				return v % bound
			}
		}
	}
}

func (r *rng) uint64() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.rng.Uint64()
}
