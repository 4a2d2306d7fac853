// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/trace"
)

var _ Consensus = (*tracedConsensus)(nil)

type tracedConsensus struct {
	Consensus
	tracer trace.Tracer
}

// TraceConsensus wraps [consensus] so that polls, rounds and fork resolution
// are recorded as spans.
func TraceConsensus(consensus Consensus, tracer trace.Tracer) Consensus {
	return &tracedConsensus{
		Consensus: consensus,
		tracer:    tracer,
	}
}

func (c *tracedConsensus) QuerySample(ctx context.Context, vertexID ids.ID) (int, int, error) {
	ctx, span := c.tracer.Start(ctx, "tracedConsensus.QuerySample", oteltrace.WithAttributes(
		attribute.Stringer("vertexID", vertexID),
	))
	defer span.End()

	positive, negative, err := c.Consensus.QuerySample(ctx, vertexID)
	span.SetAttributes(
		attribute.Int("positive", positive),
		attribute.Int("negative", negative),
	)
	recordError(span, err)
	return positive, negative, err
}

func (c *tracedConsensus) RunConsensusRound(ctx context.Context, vertexID ids.ID) (Status, error) {
	ctx, span := c.tracer.Start(ctx, "tracedConsensus.RunConsensusRound", oteltrace.WithAttributes(
		attribute.Stringer("vertexID", vertexID),
	))
	defer span.End()

	status, err := c.Consensus.RunConsensusRound(ctx, vertexID)
	span.SetAttributes(attribute.Stringer("status", status))
	recordError(span, err)
	return status, err
}

func (c *tracedConsensus) RunFastConsensusRound(ctx context.Context, vertexID ids.ID) (Status, error) {
	ctx, span := c.tracer.Start(ctx, "tracedConsensus.RunFastConsensusRound", oteltrace.WithAttributes(
		attribute.Stringer("vertexID", vertexID),
	))
	defer span.End()

	status, err := c.Consensus.RunFastConsensusRound(ctx, vertexID)
	span.SetAttributes(attribute.Stringer("status", status))
	recordError(span, err)
	return status, err
}

func (c *tracedConsensus) PollTips(ctx context.Context, parallelism int) (map[ids.ID]Status, error) {
	ctx, span := c.tracer.Start(ctx, "tracedConsensus.PollTips", oteltrace.WithAttributes(
		attribute.Int("parallelism", parallelism),
	))
	defer span.End()

	results, err := c.Consensus.PollTips(ctx, parallelism)
	span.SetAttributes(attribute.Int("numPolled", len(results)))
	recordError(span, err)
	return results, err
}

func (c *tracedConsensus) DetectAndResolveForks() []ids.ID {
	_, span := c.tracer.Start(context.Background(), "tracedConsensus.DetectAndResolveForks")
	defer span.End()

	rejected := c.Consensus.DetectAndResolveForks()
	span.SetAttributes(attribute.Int("numRejected", len(rejected)))
	return rejected
}

func (c *tracedConsensus) DetectByzantinePatterns() []ids.NodeID {
	_, span := c.tracer.Start(context.Background(), "tracedConsensus.DetectByzantinePatterns")
	defer span.End()

	detected := c.Consensus.DetectByzantinePatterns()
	span.SetAttributes(attribute.Int("numDetected", len(detected)))
	return detected
}

func recordError(span oteltrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
