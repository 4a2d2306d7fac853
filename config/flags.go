// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/qudag/qrdag/snow/consensus/qravalanche"
	"github.com/qudag/qrdag/trace"
	"github.com/qudag/qrdag/utils/logging"
)

const (
	AppName   = "qrdag"
	EnvPrefix = AppName

	// SamplerSeedDistance selects the deterministic distance sampler instead
	// of a seeded uniform one.
	SamplerSeedDistance = -1
)

var (
	defaultDataDir = filepath.Join("$HOME", "."+AppName)
	defaultLogDir  = filepath.Join(defaultDataDir, "logs")
)

func addConsensusFlags(fs *pflag.FlagSet) {
	defaults := qravalanche.DefaultParameters

	fs.String(GenesisIDKey, "", "ID of the vertex the DAG starts from. If empty, no genesis vertex is registered")
	fs.StringSlice(ParticipantsKey, nil, "Comma separated list of the node IDs that are polled, e.g. NodeID-...")
	fs.String(ConsensusPresetKey, qravalanche.DefaultPreset, fmt.Sprintf("Consensus parameters preset. Should be one of {%s, %s, %s}. Individual consensus flags override the preset",
		qravalanche.DefaultPreset,
		qravalanche.FastFinalityPreset,
		qravalanche.HighSecurityPreset,
	))
	fs.Float64(ConsensusBetaKey, defaults.Beta, "Confidence a vertex needs to be finalized")
	fs.Float64(ConsensusAlphaKey, defaults.Alpha, "Share of positive answers that makes a poll strong")
	fs.Int(ConsensusQuerySampleSizeKey, defaults.QuerySampleSize, "Number of participants polled per round")
	fs.Int(ConsensusMaxRoundsKey, defaults.MaxRounds, "Maximum number of polls in a consensus round")
	fs.Float64(ConsensusFinalityThresholdKey, defaults.FinalityThreshold, "Confidence that finalizes a vertex once its forks are settled")
	fs.Duration(ConsensusRoundTimeoutKey, defaults.RoundTimeout, "Time budget of a single poll")
	fs.Duration(ConsensusFastFinalityTargetKey, defaults.FastFinalityTarget, "Latency budget of a fast consensus round")
	fs.Int64(ConsensusSamplerSeedKey, SamplerSeedDistance, "Seed of the uniform participant sampler. If negative, participants closest to the vertex are polled")
}

func addLoggingFlags(fs *pflag.FlagSet) {
	defaults := logging.DefaultConfig()

	fs.String(LogsDirKey, defaultLogDir, "Logging directory. If empty, logs are only displayed")
	fs.String(LogLevelKey, strings.ToLower(defaults.LogLevel.String()), "The log level. Should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogDisplayLevelKey, "", "The log display level. If left blank, will inherit the value of log-level. Otherwise, should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogFormatKey, defaults.LogFormat, "The structure of log format. Should be one of {plain, json}")
	fs.Int(LogRotaterMaxSizeKey, defaults.MaxSize, "The maximum file size in megabytes of the log file before it gets rotated")
	fs.Int(LogRotaterMaxFilesKey, defaults.MaxFiles, "The maximum number of old log files to retain. 0 means retain all old log files")
	fs.Int(LogRotaterMaxAgeKey, defaults.MaxAge, "The maximum number of days to retain old log files based on the timestamp encoded in their filename. 0 means retain all old log files")
	fs.Bool(LogRotaterCompressEnabledKey, false, "Enables the compression of rotated log files through gzip")
	fs.Bool(LogDisableDisplayKey, false, "Disables displaying logs on stdout")
}

func addTracingFlags(fs *pflag.FlagSet) {
	fs.String(TracingExporterTypeKey, trace.Disabled.String(), fmt.Sprintf("Type of exporter to use for tracing. Options are [%s, %s, %s]",
		trace.Disabled,
		trace.GRPC,
		trace.HTTP,
	))
	fs.String(TracingEndpointKey, "", "The endpoint to send trace data to. If unspecified, the exporter's default endpoint is used")
	fs.Bool(TracingInsecureKey, true, "If true, don't use TLS when sending trace data")
	fs.Float64(TracingSampleRateKey, 0.1, "The fraction of traces to sample. If >= 1, always sample. If <= 0, never sample")
	fs.StringToString(TracingHeadersKey, map[string]string{}, "The headers to provide the trace indexer")
}

// BuildFlagSet returns a complete set of flags
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)

	fs.String(ConfigFileKey, "", "Specifies a config file")
	fs.String(ConfigFileTypeKey, "json", "Specifies the type of the config file. Should be one of {json, yaml, toml}")
	fs.String(MetricsNamespaceKey, "qravalanche", "Namespace of the consensus metrics")

	addConsensusFlags(fs)
	addLoggingFlags(fs)
	addTracingFlags(fs)
	return fs
}

// BuildViper returns the viper environment from parsing config file from
// default search paths and any parsed command line flags
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(EnvPrefix)
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if v.IsSet(ConfigFileKey) {
		v.SetConfigFile(os.ExpandEnv(v.GetString(ConfigFileKey)))
		v.SetConfigType(v.GetString(ConfigFileTypeKey))
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}
