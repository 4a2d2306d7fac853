// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPreset      = "default"
	FastFinalityPreset = "fast-finality"
	HighSecurityPreset = "high-security"
)

var (
	DefaultParameters = Parameters{
		Beta:               0.8,
		Alpha:              0.6,
		QuerySampleSize:    20,
		MaxRounds:          100,
		FinalityThreshold:  0.9,
		RoundTimeout:       100 * time.Millisecond,
		FastFinalityTarget: 500 * time.Millisecond,
	}

	ErrParametersInvalid = errors.New("parameters invalid")
	errUnknownPreset     = errors.New("unknown parameters preset")
)

// Parameters required for QR-Avalanche consensus
type Parameters struct {
	// Beta is the confidence a vertex needs to be finalized. 1-Beta is the
	// confidence at or below which it is rejected.
	Beta float64 `json:"beta" yaml:"beta"`
	// Alpha is the share of positive answers that makes a poll strong.
	Alpha float64 `json:"alpha" yaml:"alpha"`
	// QuerySampleSize is the number of participants polled per round.
	QuerySampleSize int `json:"querySampleSize" yaml:"querySampleSize"`
	// MaxRounds bounds the number of polls of a single consensus round.
	MaxRounds int `json:"maxRounds" yaml:"maxRounds"`
	// FinalityThreshold is the confidence that finalizes a vertex whose
	// forks have been settled.
	FinalityThreshold float64 `json:"finalityThreshold" yaml:"finalityThreshold"`
	// RoundTimeout is the time budget of a single poll. A consensus round may
	// take at most RoundTimeout * MaxRounds.
	RoundTimeout time.Duration `json:"roundTimeout" yaml:"roundTimeout"`
	// FastFinalityTarget is the latency budget of a fast consensus round.
	FastFinalityTarget time.Duration `json:"fastFinalityTarget" yaml:"fastFinalityTarget"`
}

// FastFinalityParameters trades safety margin for sub-second decisions.
func FastFinalityParameters() Parameters {
	return Parameters{
		Beta:               0.75,
		Alpha:              0.55,
		QuerySampleSize:    15,
		MaxRounds:          50,
		FinalityThreshold:  0.85,
		RoundTimeout:       50 * time.Millisecond,
		FastFinalityTarget: 500 * time.Millisecond,
	}
}

// HighSecurityParameters polls more participants with stricter thresholds.
func HighSecurityParameters() Parameters {
	return Parameters{
		Beta:               0.9,
		Alpha:              0.7,
		QuerySampleSize:    30,
		MaxRounds:          200,
		FinalityThreshold:  0.95,
		RoundTimeout:       200 * time.Millisecond,
		FastFinalityTarget: 500 * time.Millisecond,
	}
}

// PresetParameters returns the parameters named [preset].
func PresetParameters(preset string) (Parameters, error) {
	switch strings.ToLower(preset) {
	case DefaultPreset, "":
		return DefaultParameters, nil
	case FastFinalityPreset:
		return FastFinalityParameters(), nil
	case HighSecurityPreset:
		return HighSecurityParameters(), nil
	default:
		return Parameters{}, fmt.Errorf("%w: %q", errUnknownPreset, preset)
	}
}

// Verify returns nil if the parameters describe a valid initialization.
//
// An initialization is valid if the following conditions are met:
//
// - 0.5 < Beta <= FinalityThreshold <= 1
// - 0 < Alpha <= 1
// - 0 < QuerySampleSize
// - 0 < MaxRounds
// - 0 < RoundTimeout
// - 0 < FastFinalityTarget
func (p Parameters) Verify() error {
	switch {
	case p.Beta <= 0.5 || p.Beta > 1:
		return fmt.Errorf("%w: beta = %f: fails the condition that: 0.5 < beta <= 1", ErrParametersInvalid, p.Beta)
	case p.FinalityThreshold < p.Beta || p.FinalityThreshold > 1:
		return fmt.Errorf("%w: beta = %f, finalityThreshold = %f: fails the condition that: beta <= finalityThreshold <= 1", ErrParametersInvalid, p.Beta, p.FinalityThreshold)
	case p.Alpha <= 0 || p.Alpha > 1:
		return fmt.Errorf("%w: alpha = %f: fails the condition that: 0 < alpha <= 1", ErrParametersInvalid, p.Alpha)
	case p.QuerySampleSize <= 0:
		return fmt.Errorf("%w: querySampleSize = %d: fails the condition that: 0 < querySampleSize", ErrParametersInvalid, p.QuerySampleSize)
	case p.MaxRounds <= 0:
		return fmt.Errorf("%w: maxRounds = %d: fails the condition that: 0 < maxRounds", ErrParametersInvalid, p.MaxRounds)
	case p.RoundTimeout <= 0:
		return fmt.Errorf("%w: roundTimeout = %s: fails the condition that: 0 < roundTimeout", ErrParametersInvalid, p.RoundTimeout)
	case p.FastFinalityTarget <= 0:
		return fmt.Errorf("%w: fastFinalityTarget = %s: fails the condition that: 0 < fastFinalityTarget", ErrParametersInvalid, p.FastFinalityTarget)
	default:
		return nil
	}
}

// RoundBudget is the time a full consensus round may take.
func (p Parameters) RoundBudget() time.Duration {
	return p.RoundTimeout * time.Duration(p.MaxRounds)
}
