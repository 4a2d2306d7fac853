// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/qudag/qrdag/ids"
	"github.com/qudag/qrdag/snow/consensus/qravalanche"
	"github.com/qudag/qrdag/trace"
	"github.com/qudag/qrdag/utils/logging"
)

var (
	errEmptyNamespace      = errors.New("metrics namespace can't be empty")
	errInvalidParticipant  = errors.New("invalid participant")
	errInvalidGenesisID    = errors.New("invalid genesis ID")
	errNegativeLogRotation = errors.New("log rotation values can't be negative")
)

// Config contains everything needed to run a consensus instance.
type Config struct {
	ConsensusParameters qravalanche.Parameters `json:"consensusParameters"`

	// HasGenesis is false when no genesis vertex should be registered.
	HasGenesis   bool         `json:"hasGenesis"`
	GenesisID    ids.ID       `json:"genesisID"`
	Participants []ids.NodeID `json:"participants"`

	// SamplerSeed seeds a uniform participant sampler. A negative seed
	// selects the distance sampler.
	SamplerSeed int64 `json:"samplerSeed"`

	MetricsNamespace string         `json:"metricsNamespace"`
	LoggingConfig    logging.Config `json:"loggingConfig"`
	TraceConfig      trace.Config   `json:"traceConfig"`
}

func getConsensusParameters(v *viper.Viper) (qravalanche.Parameters, error) {
	params, err := qravalanche.PresetParameters(v.GetString(ConsensusPresetKey))
	if err != nil {
		return qravalanche.Parameters{}, err
	}

	if v.IsSet(ConsensusBetaKey) {
		params.Beta = v.GetFloat64(ConsensusBetaKey)
	}
	if v.IsSet(ConsensusAlphaKey) {
		params.Alpha = v.GetFloat64(ConsensusAlphaKey)
	}
	if v.IsSet(ConsensusQuerySampleSizeKey) {
		params.QuerySampleSize = v.GetInt(ConsensusQuerySampleSizeKey)
	}
	if v.IsSet(ConsensusMaxRoundsKey) {
		params.MaxRounds = v.GetInt(ConsensusMaxRoundsKey)
	}
	if v.IsSet(ConsensusFinalityThresholdKey) {
		params.FinalityThreshold = v.GetFloat64(ConsensusFinalityThresholdKey)
	}
	if v.IsSet(ConsensusRoundTimeoutKey) {
		params.RoundTimeout = v.GetDuration(ConsensusRoundTimeoutKey)
	}
	if v.IsSet(ConsensusFastFinalityTargetKey) {
		params.FastFinalityTarget = v.GetDuration(ConsensusFastFinalityTargetKey)
	}
	return params, params.Verify()
}

func getParticipants(v *viper.Viper) ([]ids.NodeID, error) {
	nodeIDStrs := v.GetStringSlice(ParticipantsKey)
	participants := make([]ids.NodeID, 0, len(nodeIDStrs))
	for _, nodeIDStr := range nodeIDStrs {
		nodeID, err := ids.NodeIDFromString(nodeIDStr)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", errInvalidParticipant, nodeIDStr, err)
		}
		participants = append(participants, nodeID)
	}
	return participants, nil
}

func getLoggingConfig(v *viper.Viper) (logging.Config, error) {
	loggingConfig := logging.DefaultConfig()
	loggingConfig.Directory = os.ExpandEnv(v.GetString(LogsDirKey))
	loggingConfig.LoggerName = AppName

	var err error
	loggingConfig.LogLevel, err = logging.ToLevel(v.GetString(LogLevelKey))
	if err != nil {
		return loggingConfig, err
	}
	loggingConfig.DisplayLevel = loggingConfig.LogLevel
	if displayLevel := v.GetString(LogDisplayLevelKey); displayLevel != "" {
		loggingConfig.DisplayLevel, err = logging.ToLevel(displayLevel)
		if err != nil {
			return loggingConfig, err
		}
	}

	loggingConfig.LogFormat, err = logging.ToFormat(v.GetString(LogFormatKey))
	if err != nil {
		return loggingConfig, err
	}
	loggingConfig.DisableWriterDisplaying = v.GetBool(LogDisableDisplayKey)

	loggingConfig.MaxSize = v.GetInt(LogRotaterMaxSizeKey)
	loggingConfig.MaxFiles = v.GetInt(LogRotaterMaxFilesKey)
	loggingConfig.MaxAge = v.GetInt(LogRotaterMaxAgeKey)
	loggingConfig.Compress = v.GetBool(LogRotaterCompressEnabledKey)
	if loggingConfig.MaxSize < 0 || loggingConfig.MaxFiles < 0 || loggingConfig.MaxAge < 0 {
		return loggingConfig, errNegativeLogRotation
	}
	return loggingConfig, nil
}

func getTraceConfig(v *viper.Viper) (trace.Config, error) {
	exporterType, err := trace.ExporterTypeFromString(v.GetString(TracingExporterTypeKey))
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		ExporterConfig: trace.ExporterConfig{
			Type:     exporterType,
			Endpoint: v.GetString(TracingEndpointKey),
			Insecure: v.GetBool(TracingInsecureKey),
			Headers:  v.GetStringMapString(TracingHeadersKey),
		},
		TraceSampleRate: v.GetFloat64(TracingSampleRateKey),
		AppName:         AppName,
	}, nil
}

// GetConfig builds the config defined in the [viper] environment.
func GetConfig(v *viper.Viper) (Config, error) {
	var (
		config Config
		err    error
	)
	config.ConsensusParameters, err = getConsensusParameters(v)
	if err != nil {
		return Config{}, err
	}

	if genesisIDStr := v.GetString(GenesisIDKey); genesisIDStr != "" {
		config.GenesisID, err = ids.FromString(genesisIDStr)
		if err != nil {
			return Config{}, fmt.Errorf("%w %q: %w", errInvalidGenesisID, genesisIDStr, err)
		}
		config.HasGenesis = true
	}

	config.Participants, err = getParticipants(v)
	if err != nil {
		return Config{}, err
	}
	config.SamplerSeed = v.GetInt64(ConsensusSamplerSeedKey)

	config.MetricsNamespace = v.GetString(MetricsNamespaceKey)
	if config.MetricsNamespace == "" {
		return Config{}, errEmptyNamespace
	}

	config.LoggingConfig, err = getLoggingConfig(v)
	if err != nil {
		return Config{}, err
	}

	config.TraceConfig, err = getTraceConfig(v)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// Sampler returns the participant sampler described by the config.
func (c Config) Sampler() qravalanche.Sampler {
	if c.SamplerSeed < 0 {
		return qravalanche.DistanceSampler{}
	}
	return qravalanche.NewUniformSampler(uint64(c.SamplerSeed))
}
