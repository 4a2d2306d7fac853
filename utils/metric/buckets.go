// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

// Useful latency buckets
var (
	// FinalityMillisecondsBuckets covers the sub-second finality target with
	// extra resolution below 500ms.
	FinalityMillisecondsBuckets = []float64{
		1,     // 1 ms is ~ instant
		5,     // 5 ms
		10,    // 10 ms
		25,    // 25 ms
		50,    // 50 ms
		100,   // 100 ms
		250,   // 250 ms
		500,   // 500 ms is the fast finality target
		1000,  // 1 second
		2500,  // 2.5 seconds
		5000,  // 5 seconds
		10000, // 10 seconds
		// anything larger than 10 seconds will be bucketed together
	}
)
