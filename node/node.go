// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/qudag/qrdag/config"
	"github.com/qudag/qrdag/snow/consensus/qravalanche"
	"github.com/qudag/qrdag/trace"
	"github.com/qudag/qrdag/utils/logging"
)

// Node is a consensus instance together with the logging, metrics and
// tracing it reports to.
type Node struct {
	Log    logging.Logger
	Config config.Config

	// MetricsRegisterer is the registry every consensus metric is
	// registered with.
	MetricsRegisterer *prometheus.Registry

	tracer trace.Tracer

	Consensus qravalanche.Consensus

	shutdownOnce sync.Once
}

// New builds a node from [config]. The node polls its participants through
// [querier]. If [querier] is nil, opinions are simulated.
func New(config config.Config, querier qravalanche.Querier) (*Node, error) {
	n := &Node{Config: config}

	if err := n.initLogging(); err != nil {
		return nil, fmt.Errorf("problem initializing logging: %w", err)
	}
	n.initMetrics()
	if err := n.initTracer(); err != nil {
		n.Log.Stop()
		return nil, fmt.Errorf("problem initializing tracing: %w", err)
	}
	if err := n.initConsensus(querier); err != nil {
		n.Shutdown()
		return nil, fmt.Errorf("problem initializing consensus: %w", err)
	}
	return n, nil
}

func (n *Node) initLogging() error {
	log, err := logging.NewLoggerFromConfig(n.Config.LoggingConfig)
	if err != nil {
		return err
	}
	n.Log = log
	return nil
}

func (n *Node) initMetrics() {
	n.MetricsRegisterer = prometheus.NewRegistry()
}

func (n *Node) initTracer() error {
	tracer, err := trace.New(n.Config.TraceConfig)
	if err != nil {
		return err
	}
	n.tracer = tracer
	return nil
}

func (n *Node) initConsensus(querier qravalanche.Querier) error {
	engine, err := qravalanche.New(qravalanche.Config{
		Log:        n.Log.With(zap.String("component", "consensus")),
		Registerer: n.MetricsRegisterer,
		Namespace:  n.Config.MetricsNamespace,
		Params:     n.Config.ConsensusParameters,
		Querier:    querier,
		Sampler:    n.Config.Sampler(),
	})
	if err != nil {
		return err
	}

	if n.Config.HasGenesis {
		if err := engine.Initialize(n.Config.GenesisID); err != nil {
			return err
		}
	}
	for _, nodeID := range n.Config.Participants {
		engine.AddParticipant(nodeID)
	}

	n.Consensus = engine
	if n.Config.TraceConfig.Type != trace.Disabled {
		n.Consensus = qravalanche.TraceConsensus(engine, n.tracer)
	}

	n.Log.Info("initialized consensus",
		zap.Stringer("engine", engine),
		zap.Reflect("parameters", n.Config.ConsensusParameters),
	)
	return nil
}

// Shutdown flushes the tracer and the logs. It is safe to call more than
// once.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.Log.Info("shutting down the node")
		if err := n.tracer.Close(); err != nil {
			n.Log.Warn("failed to close the tracer",
				zap.Error(err),
			)
		}
		n.Log.Stop()
	})
}
