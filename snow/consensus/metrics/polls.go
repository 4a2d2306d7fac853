// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/qudag/qrdag/utils/wrappers"
)

var (
	_ Polls = (*polls)(nil)

	// AgreementBuckets spans the possible share of positive opinions in a
	// poll.
	AgreementBuckets = prometheus.LinearBuckets(0.1, 0.1, 10)
)

// Polls reports the outcome of sampled vertex polls.
type Polls interface {
	// Successful marks a poll whose [agreement] reached the quorum.
	Successful(agreement float64)
	// Failed marks a poll whose [agreement] fell short of the quorum.
	Failed(agreement float64)
	// Unanswered marks a poll that gathered no opinions.
	Unanswered()
}

type polls struct {
	numSuccessfulPolls prometheus.Counter
	numFailedPolls     prometheus.Counter
	numUnanswered      prometheus.Counter

	// agreement is the share of positive opinions of every answered poll
	agreement prometheus.Histogram
}

func NewPolls(namespace string, reg prometheus.Registerer) (Polls, error) {
	p := &polls{
		numSuccessfulPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_successful",
			Help:      "Number of polls that reached the quorum",
		}),
		numFailedPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_failed",
			Help:      "Number of polls that fell short of the quorum",
		}),
		numUnanswered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_unanswered",
			Help:      "Number of polls that gathered no opinions",
		}),
		agreement: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_agreement",
			Help:      "Share of positive opinions per answered poll",
			Buckets:   AgreementBuckets,
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(p.numSuccessfulPolls),
		reg.Register(p.numFailedPolls),
		reg.Register(p.numUnanswered),
		reg.Register(p.agreement),
	)
	return p, errs.Err
}

func (p *polls) Successful(agreement float64) {
	p.numSuccessfulPolls.Inc()
	p.agreement.Observe(agreement)
}

func (p *polls) Failed(agreement float64) {
	p.numFailedPolls.Inc()
	p.agreement.Observe(agreement)
}

func (p *polls) Unanswered() {
	p.numUnanswered.Inc()
}
