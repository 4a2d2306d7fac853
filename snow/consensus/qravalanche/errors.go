// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import "errors"

var (
	// ErrInvalidVertex is returned when an unknown vertex is referenced.
	ErrInvalidVertex = errors.New("invalid vertex reference")
	// ErrConflictingVertices is returned when an operation would let a vertex
	// survive a fork it already lost.
	ErrConflictingVertices = errors.New("conflicting vertices")
	// ErrConsensusFailure is returned when the peers could not be polled.
	ErrConsensusFailure = errors.New("failed to reach consensus")
	// ErrInsufficientVotes is returned when a poll gathered no votes.
	ErrInsufficientVotes = errors.New("insufficient votes for consensus")
	// ErrByzantineBehavior is returned when a voter contradicts its own vote.
	// The contradicting vote is dropped.
	ErrByzantineBehavior = errors.New("byzantine behavior detected")
	// ErrTimeout is returned when the round budget ran out without a decision.
	ErrTimeout = errors.New("consensus timeout")
	// ErrInvalidState is returned when a vertex's status forbids an operation.
	ErrInvalidState = errors.New("invalid state")
)
