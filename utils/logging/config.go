// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	PlainFormat = "plain"
	JSONFormat  = "json"
)

var errUnknownFormat = errors.New("unknown log format")

// RotatingWriterConfig describes the log file written next to the console
// output. An empty Directory disables the file.
type RotatingWriterConfig struct {
	MaxSize   int    `json:"maxSize"` // in megabytes
	MaxFiles  int    `json:"maxFiles"`
	MaxAge    int    `json:"maxAge"` // in days
	Directory string `json:"directory"`
	Compress  bool   `json:"compress"`
}

// Config defines the configuration of a logger
type Config struct {
	RotatingWriterConfig
	DisableWriterDisplaying bool   `json:"disableWriterDisplaying"`
	LogLevel                Level  `json:"logLevel"`
	DisplayLevel            Level  `json:"displayLevel"`
	LogFormat               string `json:"logFormat"`
	MsgPrefix               string `json:"msgPrefix"`
	LoggerName              string `json:"loggerName"`
}

func DefaultConfig() Config {
	return Config{
		RotatingWriterConfig: RotatingWriterConfig{
			MaxSize:  8,
			MaxFiles: 7,
			MaxAge:   0,
		},
		LogLevel:     Info,
		DisplayLevel: Info,
		LogFormat:    PlainFormat,
	}
}

// ToFormat validates a log format name.
func ToFormat(format string) (string, error) {
	switch f := strings.ToLower(format); f {
	case PlainFormat, JSONFormat:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(Level(l).AlignedString())
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("[01-02|15:04:05.000]"))
}

func newEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.EncodeLevel = levelEncoder
	config.EncodeTime = timeEncoder
	config.EncodeDuration = zapcore.StringDurationEncoder
	return config
}

// NewEncoder returns the zap encoder for [format].
func NewEncoder(format string) (zapcore.Encoder, error) {
	format, err := ToFormat(format)
	if err != nil {
		return nil, err
	}
	if format == JSONFormat {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), nil
	}
	return zapcore.NewConsoleEncoder(newEncoderConfig()), nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

// NewLoggerFromConfig builds a logger that displays to stdout and, when a
// directory is configured, writes to a size-rotated file in it.
func NewLoggerFromConfig(config Config) (Logger, error) {
	encoder, err := NewEncoder(config.LogFormat)
	if err != nil {
		return nil, err
	}

	consoleCore := NewWrappedCore(config.DisplayLevel, nopCloser{Writer: os.Stdout}, encoder)
	consoleCore.WriterDisabled = config.DisableWriterDisplaying
	cores := []WrappedCore{consoleCore}

	if config.Directory != "" {
		name := config.LoggerName
		if name == "" {
			name = "main"
		}
		rw := &lumberjack.Logger{
			Filename:   filepath.Join(config.Directory, name+".log"),
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxFiles,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		fileEncoder, err := NewEncoder(JSONFormat)
		if err != nil {
			return nil, err
		}
		cores = append(cores, NewWrappedCore(config.LogLevel, rw, fileEncoder))
	}
	return NewLogger(config.MsgPrefix, cores...), nil
}
