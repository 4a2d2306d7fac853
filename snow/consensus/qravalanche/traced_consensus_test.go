// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/trace"
)

type recordingTracer struct {
	oteltrace.Tracer
}

func (recordingTracer) Close() error {
	return nil
}

func TestTraceConsensus(t *testing.T) {
	require := require.New(t)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() {
		require.NoError(provider.Shutdown(context.Background()))
	}()

	querier := &lazyQuerier{}
	e, _ := newTestEngine(t, DefaultParameters, querier)
	c := TraceConsensus(e, recordingTracer{Tracer: provider.Tracer("test")})

	// No participants yet.
	vertexID := ids.GenerateTestID()
	c.ProcessVertex(vertexID)
	_, err := c.RunConsensusRound(context.Background(), vertexID)
	require.ErrorIs(err, ErrInsufficientVotes)

	participants := addParticipants(e, 5)
	querier.querier = splitVoters(participants, 5)

	positive, _, err := c.QuerySample(context.Background(), vertexID)
	require.NoError(err)
	require.Equal(5, positive)

	status, err := c.RunFastConsensusRound(context.Background(), vertexID)
	require.NoError(err)
	require.Equal(Final, status)

	_, err = c.PollTips(context.Background(), 1)
	require.NoError(err)
	require.Empty(c.DetectAndResolveForks())
	require.Empty(c.DetectByzantinePatterns())

	spans := recorder.Ended()
	require.Len(spans, 6)

	names := make([]string, len(spans))
	for i, span := range spans {
		names[i] = span.Name()
	}
	require.Equal([]string{
		"tracedConsensus.RunConsensusRound",
		"tracedConsensus.QuerySample",
		"tracedConsensus.RunFastConsensusRound",
		"tracedConsensus.PollTips",
		"tracedConsensus.DetectAndResolveForks",
		"tracedConsensus.DetectByzantinePatterns",
	}, names)

	require.Equal(codes.Error, spans[0].Status().Code)
	require.Len(spans[0].Events(), 1)
	require.Equal(codes.Unset, spans[2].Status().Code)
}

func TestTraceConsensusNoop(t *testing.T) {
	require := require.New(t)

	e, _ := newTestEngine(t, DefaultParameters, nil)
	c := TraceConsensus(e, trace.Noop)

	vertexID := ids.GenerateTestID()
	require.Equal(Pending, c.ProcessVertex(vertexID))
	require.NoError(c.RecordVote(vertexID, ids.GenerateTestNodeID(), true))

	reached, err := c.IsConsensusReached(vertexID)
	require.NoError(err)
	require.True(reached)
}
