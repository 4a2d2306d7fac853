// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package logging

import (
	"encoding"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is ordered the same way as zapcore.Level: a higher value is more
// severe.
type Level zapcore.Level

const (
	Verbo Level = iota - 3
	Debug
	Trace
	Info
	Warn
	Error
	Fatal = Level(zapcore.FatalLevel)
	Off   = Level(math.MaxInt8)
)

const alignedStringLen = 5

var (
	_ encoding.TextMarshaler   = Info
	_ encoding.TextUnmarshaler = (*Level)(nil)

	errUnknownLevel = errors.New("unknown log level")

	levelNames = map[Level]string{
		Verbo: "VERBO",
		Debug: "DEBUG",
		Trace: "TRACE",
		Info:  "INFO",
		Warn:  "WARN",
		Error: "ERROR",
		Fatal: "FATAL",
		Off:   "OFF",
	}
)

// ToLevel is the case insensitive inverse of Level.String.
func ToLevel(l string) (Level, error) {
	name := strings.ToUpper(l)
	for level, levelName := range levelNames {
		if name == levelName {
			return level, nil
		}
	}
	return Off, fmt.Errorf("%w: %q", errUnknownLevel, l)
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// AlignedString pads or truncates the level name to a fixed width so log
// columns line up.
func (l Level) AlignedString() string {
	return fmt.Sprintf("%-*.*s", alignedStringLen, alignedStringLen, l.String())
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	level, err := ToLevel(string(b))
	if err != nil {
		return err
	}
	*l = level
	return nil
}
