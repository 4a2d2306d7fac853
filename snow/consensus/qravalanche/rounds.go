// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/utils/set"
)

const (
	// Share of the previous confidence carried into a round's confidence.
	momentum = 0.1
	// After this many consecutive strong rounds the finality bar is lowered
	// to Beta * adaptiveBetaFactor.
	adaptiveStrongRounds = 2
	adaptiveBetaFactor   = 0.95
	// Weak rounds past this one reject a vertex whose last round was
	// negative, regardless of its confidence.
	earlyRejectionRound = 10

	// Alpha and Beta are scaled by fastRelaxation during fast rounds.
	fastRelaxation = 0.95
	// The first fastWarmupRounds fast rounds poll at most fastWarmupSampleSize
	// participants.
	fastWarmupRounds     = 5
	fastWarmupSampleSize = 10
	// Fast rounds do not yield before fastNoDelayRounds rounds were polled.
	fastNoDelayRounds = 10
	fastDelay         = time.Millisecond
	// Confidence scales applied to Beta when the fast budget runs out.
	fastFinalFactor    = 0.85
	fastAcceptedFactor = 0.7
)

// QuerySample polls up to QuerySampleSize participants about [vertexID],
// records their opinions and refreshes the vertex's confidence. Returns the
// number of positive and negative opinions that were recorded.
//
// QuerySample never decides the vertex.
func (e *Engine) QuerySample(ctx context.Context, vertexID ids.ID) (int, int, error) {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		return 0, 0, err
	}
	positive, negative, err := e.querySample(ctx, vtx, e.params.QuerySampleSize)
	if err != nil {
		return positive, negative, err
	}

	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	if !vtx.pruned {
		cumulativePositive, cumulativeNegative := e.ledger.VoteCounts(vertexID)
		vtx.confidence.UpdateVotes(cumulativePositive, cumulativeNegative, e.clock.Time())
	}
	return positive, negative, nil
}

func (e *Engine) querySample(ctx context.Context, vtx *vertex, k int) (int, int, error) {
	participants := e.participants.List()
	if k > len(participants) {
		k = len(participants)
	}
	if k == 0 {
		return 0, 0, nil
	}

	sampled := e.sampler.Sample(vtx.id, participants, k)
	peers := make([]ids.NodeID, 0, len(sampled))
	pending := set.NewSet[ids.NodeID](len(sampled))
	for _, nodeID := range sampled {
		if e.ledger.IsByzantine(nodeID) {
			continue
		}
		peers = append(peers, nodeID)
		pending.Add(nodeID)
	}
	if len(peers) == 0 {
		return 0, 0, nil
	}

	opinions, err := e.querier.Query(ctx, vtx.id, peers)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: polling %d peers about %s: %w",
			ErrConsensusFailure,
			len(peers),
			vtx.id,
			err,
		)
	}

	var positive, negative int
	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	if vtx.pruned {
		return 0, 0, fmt.Errorf("%w: %s was pruned", ErrInvalidVertex, vtx.id)
	}
	for _, opinion := range opinions {
		if !pending.Contains(opinion.NodeID) {
			e.log.Verbo("dropping unrequested opinion",
				zap.Stringer("vertexID", vtx.id),
				zap.Stringer("nodeID", opinion.NodeID),
			)
			continue
		}
		pending.Remove(opinion.NodeID)

		if err := e.recordVote(vtx, opinion.NodeID, opinion.Vote); err != nil {
			continue
		}
		if opinion.Vote {
			positive++
		} else {
			negative++
		}
	}
	return positive, negative, nil
}

// RunConsensusRound polls participants about [vertexID] until it is decided
// or MaxRounds polls were made.
//
// Returns Accepted if the budget ran out with a confidence of at least Beta
// and ErrTimeout if it ran out with a lower confidence.
func (e *Engine) RunConsensusRound(ctx context.Context, vertexID ids.ID) (Status, error) {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		return Pending, err
	}

	var (
		start                   = e.clock.Time()
		budget                  = e.params.RoundBudget()
		confidence              float64
		consecutiveStrongRounds int
	)
	for round := 0; round < e.params.MaxRounds && e.clock.Since(start) <= budget; round++ {
		if status, decided := vtx.decidedStatus(); decided {
			return status, nil
		}

		positive, negative, err := e.querySample(ctx, vtx, e.params.QuerySampleSize)
		if err != nil {
			return vtx.currentStatus(), err
		}
		total := positive + negative
		if total == 0 {
			e.polls.Unanswered()
			return vtx.currentStatus(), fmt.Errorf("%w: no opinions gathered on %s in round %d",
				ErrInsufficientVotes,
				vertexID,
				round,
			)
		}

		roundConfidence := float64(positive) / float64(total)
		strong := atLeast(roundConfidence, e.params.Alpha)
		if strong {
			e.polls.Successful(roundConfidence)
		} else {
			e.polls.Failed(roundConfidence)
		}

		vtx.lock.Lock()
		if vtx.status.Decided() {
			status := vtx.status
			vtx.lock.Unlock()
			return status, nil
		}

		previous := vtx.confidence.Value
		cumulativePositive, cumulativeNegative := e.ledger.VoteCounts(vertexID)
		vtx.confidence.UpdateVotes(cumulativePositive, cumulativeNegative, e.clock.Time())
		vtx.confidence.smooth(previous, momentum)
		confidence = vtx.confidence.Value

		switch {
		case strong:
			consecutiveStrongRounds++
			threshold := e.params.Beta
			if consecutiveStrongRounds >= adaptiveStrongRounds {
				threshold *= adaptiveBetaFactor
			}
			if atLeast(confidence, threshold) {
				e.finalize(vtx)
				vtx.lock.Unlock()
				return Final, nil
			}
		case atMost(roundConfidence, 1-e.params.Alpha):
			consecutiveStrongRounds = 0
			if atMost(confidence, 1-e.params.Beta) || round > earlyRejectionRound {
				e.reject(vtx)
				vtx.lock.Unlock()
				return Rejected, nil
			}
		default:
			if consecutiveStrongRounds > 0 {
				consecutiveStrongRounds--
			}
		}
		vtx.lock.Unlock()

		if err := wait(ctx, roundDelay(confidence)); err != nil {
			return vtx.currentStatus(), err
		}
	}

	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	if vtx.status.Decided() {
		return vtx.status, nil
	}
	if atLeast(confidence, e.params.Beta) {
		e.accept(vtx)
		return Accepted, nil
	}
	return vtx.status, fmt.Errorf("%w: %s reached confidence %.4f",
		ErrTimeout,
		vertexID,
		confidence,
	)
}

// RunFastConsensusRound is RunConsensusRound with relaxed thresholds and a
// FastFinalityTarget latency budget.
//
// Returns Final if the budget ran out with a confidence of at least
// Beta*0.85, Accepted if it was at least Beta*0.7 and ErrTimeout otherwise.
func (e *Engine) RunFastConsensusRound(ctx context.Context, vertexID ids.ID) (Status, error) {
	vtx, err := e.getVertex(vertexID)
	if err != nil {
		return Pending, err
	}

	var (
		start                   = e.clock.Time()
		alpha                   = e.params.Alpha * fastRelaxation
		beta                    = e.params.Beta * fastRelaxation
		confidence              float64
		consecutiveStrongRounds int
	)
	for round := 0; round < e.params.MaxRounds && e.clock.Since(start) < e.params.FastFinalityTarget; round++ {
		if status, decided := vtx.decidedStatus(); decided {
			return status, nil
		}

		k := e.params.QuerySampleSize
		if round < fastWarmupRounds && k > fastWarmupSampleSize {
			k = fastWarmupSampleSize
		}
		positive, negative, err := e.querySample(ctx, vtx, k)
		if err != nil {
			return vtx.currentStatus(), err
		}
		total := positive + negative
		if total == 0 {
			e.polls.Unanswered()
			if e.participants.Len() == 0 {
				return vtx.currentStatus(), fmt.Errorf("%w: no participants to poll about %s",
					ErrInsufficientVotes,
					vertexID,
				)
			}
			if err := wait(ctx, fastDelay); err != nil {
				return vtx.currentStatus(), err
			}
			continue
		}

		roundConfidence := float64(positive) / float64(total)
		strong := atLeast(roundConfidence, alpha)
		if strong {
			e.polls.Successful(roundConfidence)
		} else {
			e.polls.Failed(roundConfidence)
		}

		vtx.lock.Lock()
		if vtx.status.Decided() {
			status := vtx.status
			vtx.lock.Unlock()
			return status, nil
		}

		cumulativePositive, cumulativeNegative := e.ledger.VoteCounts(vertexID)
		vtx.confidence.UpdateVotes(cumulativePositive, cumulativeNegative, e.clock.Time())
		confidence = vtx.confidence.Value

		if strong {
			consecutiveStrongRounds++
			if consecutiveStrongRounds >= adaptiveStrongRounds && atLeast(confidence, beta) {
				e.finalize(vtx)
				vtx.lock.Unlock()
				return Final, nil
			}
		} else if atMost(roundConfidence, 1-alpha) && atMost(confidence, 1-beta) {
			e.reject(vtx)
			vtx.lock.Unlock()
			return Rejected, nil
		}
		vtx.lock.Unlock()

		if round+1 >= fastNoDelayRounds {
			if err := wait(ctx, fastDelay); err != nil {
				return vtx.currentStatus(), err
			}
		}
	}

	vtx.lock.Lock()
	defer vtx.lock.Unlock()

	switch {
	case vtx.status.Decided():
		return vtx.status, nil
	case atLeast(confidence, e.params.Beta*fastFinalFactor):
		e.finalize(vtx)
		return Final, nil
	case atLeast(confidence, e.params.Beta*fastAcceptedFactor):
		e.accept(vtx)
		return vtx.status, nil
	default:
		return vtx.status, fmt.Errorf("%w: fast round on %s reached confidence %.4f",
			ErrTimeout,
			vertexID,
			confidence,
		)
	}
}

// PollTips runs a consensus round on every tip, at most [parallelism] at a
// time. Non-positive [parallelism] means no limit.
//
// Rounds that time out or gather no votes report the vertex's current status.
// Any other failure aborts the remaining rounds.
func (e *Engine) PollTips(ctx context.Context, parallelism int) (map[ids.ID]Status, error) {
	tips := e.Tips()

	var (
		resultsLock sync.Mutex
		results     = make(map[ids.ID]Status, len(tips))
	)
	eg, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		eg.SetLimit(parallelism)
	}
	for _, vertexID := range tips {
		vertexID := vertexID
		eg.Go(func() error {
			status, err := e.RunConsensusRound(ctx, vertexID)
			switch {
			case err == nil, errors.Is(err, ErrTimeout), errors.Is(err, ErrInsufficientVotes):
			case errors.Is(err, ErrInvalidVertex):
				// Pruned since the tips were read.
				return nil
			default:
				return err
			}

			resultsLock.Lock()
			results[vertexID] = status
			resultsLock.Unlock()
			return nil
		})
	}
	err := eg.Wait()
	return results, err
}

// decidedStatus reports whether rounds on [v] are over. The genesis vertex
// is never polled.
func (v *vertex) decidedStatus() (Status, bool) {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.status, v.status.Decided() || v.genesis
}

func (v *vertex) currentStatus() Status {
	v.lock.Lock()
	defer v.lock.Unlock()

	return v.status
}

// roundDelay is the pause between two polls. Confident vertices are polled
// again sooner.
func roundDelay(confidence float64) time.Duration {
	switch {
	case confidence > 0.7:
		return time.Millisecond
	case confidence > 0.5:
		return 5 * time.Millisecond
	default:
		return 10 * time.Millisecond
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
