// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// #nosec G101
const (
	ConfigFileKey                  = "config-file"
	ConfigFileTypeKey              = "config-file-type"
	GenesisIDKey                   = "genesis-id"
	ParticipantsKey                = "participants"
	ConsensusPresetKey             = "consensus-preset"
	ConsensusBetaKey               = "consensus-beta"
	ConsensusAlphaKey              = "consensus-alpha"
	ConsensusQuerySampleSizeKey    = "consensus-query-sample-size"
	ConsensusMaxRoundsKey          = "consensus-max-rounds"
	ConsensusFinalityThresholdKey  = "consensus-finality-threshold"
	ConsensusRoundTimeoutKey       = "consensus-round-timeout"
	ConsensusFastFinalityTargetKey = "consensus-fast-finality-target"
	ConsensusSamplerSeedKey        = "consensus-sampler-seed"
	LogsDirKey                     = "log-dir"
	LogLevelKey                    = "log-level"
	LogDisplayLevelKey             = "log-display-level"
	LogFormatKey                   = "log-format"
	LogRotaterMaxSizeKey           = "log-rotater-max-size"
	LogRotaterMaxFilesKey          = "log-rotater-max-files"
	LogRotaterMaxAgeKey            = "log-rotater-max-age"
	LogRotaterCompressEnabledKey   = "log-rotater-compress-enabled"
	LogDisableDisplayKey           = "log-disable-display"
	MetricsNamespaceKey            = "metrics-namespace"
	TracingExporterTypeKey         = "tracing-exporter-type"
	TracingEndpointKey             = "tracing-endpoint"
	TracingInsecureKey             = "tracing-insecure"
	TracingSampleRateKey           = "tracing-sample-rate"
	TracingHeadersKey              = "tracing-headers"
)
