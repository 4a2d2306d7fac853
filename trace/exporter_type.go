// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trace

import (
	"encoding"
	"errors"
	"fmt"
	"strings"
)

const (
	Disabled ExporterType = iota
	GRPC
	HTTP
)

var (
	_ encoding.TextMarshaler   = Disabled
	_ encoding.TextUnmarshaler = (*ExporterType)(nil)

	errUnknownExporterType = errors.New("unknown exporter type")

	exporterTypeNames = map[ExporterType]string{
		Disabled: "disabled",
		GRPC:     "grpc",
		HTTP:     "http",
	}
)

// ExporterType selects the transport spans are shipped over.
type ExporterType byte

// ExporterTypeFromString parses [exporterTypeStr] case insensitively. The
// empty string and "null" both disable tracing.
func ExporterTypeFromString(exporterTypeStr string) (ExporterType, error) {
	name := strings.ToLower(exporterTypeStr)
	if name == "" || name == "null" {
		return Disabled, nil
	}
	for exporterType, exporterTypeName := range exporterTypeNames {
		if name == exporterTypeName {
			return exporterType, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errUnknownExporterType, exporterTypeStr)
}

func (t ExporterType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ExporterType) UnmarshalText(b []byte) error {
	exporterType, err := ExporterTypeFromString(string(b))
	if err != nil {
		return err
	}
	*t = exporterType
	return nil
}

func (t ExporterType) String() string {
	if name, ok := exporterTypeNames[t]; ok {
		return name
	}
	return "unknown"
}
