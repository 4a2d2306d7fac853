// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sampler

// Uniform samples values without replacement in the provided range
type Uniform interface {
	Initialize(sampleRange uint64)
	// Sample returns length numbers in the range [0,sampleRange). If there
	// aren't enough numbers in the range, false is returned. If length is
	// negative the implementation may panic.
	Sample(length int) ([]uint64, bool)

	Reset()
	Next() (uint64, bool)
}

// NewDeterministicUniform returns a new sampler whose draws are fully
// determined by [seed].
func NewDeterministicUniform(seed uint64) Uniform {
	return &uniformReplacer{
		rng: newRNG(seed),
	}
}

// uniformReplacer allows for sampling over a uniform distribution without
// replacement.
//
// Sampling is performed by lazily performing a Fisher-Yates shuffle. Drawn
// elements are recorded in a map so only touched indices take memory.
//
// Initialization takes O(1) time.
//
// Sampling is performed in O(count) time and O(count) space.
type uniformReplacer struct {
	rng        *rng
	length     uint64
	drawn      map[uint64]uint64
	drawsCount uint64
}

func (s *uniformReplacer) Initialize(length uint64) {
	s.length = length
	s.drawn = make(map[uint64]uint64)
	s.drawsCount = 0
}

func (s *uniformReplacer) Sample(count int) ([]uint64, bool) {
	s.Reset()

	results := make([]uint64, count)
	for i := 0; i < count; i++ {
		ret, hasNext := s.Next()
		if !hasNext {
			return nil, false
		}
		results[i] = ret
	}
	return results, true
}

func (s *uniformReplacer) Reset() {
	for k := range s.drawn {
		delete(s.drawn, k)
	}
	s.drawsCount = 0
}

func (s *uniformReplacer) Next() (uint64, bool) {
	if s.drawsCount >= s.length {
		return 0, false
	}

	draw := s.rng.Uint64Inclusive(s.length-1-s.drawsCount) + s.drawsCount
	ret, ok := s.drawn[draw]
	if !ok {
		ret = draw
	}

	replacement, ok := s.drawn[s.drawsCount]
	if !ok {
		replacement = s.drawsCount
	}

	s.drawn[draw] = replacement
	s.drawsCount++
	return ret, true
}
