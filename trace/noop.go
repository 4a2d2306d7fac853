// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trace

import "go.opentelemetry.io/otel/trace"

var Noop Tracer = noOpTracer{
	Tracer: trace.NewNoopTracerProvider().Tracer(appName),
}

// noOpTracer is an implementation of trace.Tracer that does nothing.
type noOpTracer struct {
	trace.Tracer
}

func (noOpTracer) Close() error {
	return nil
}
