// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package qravalanche

import "encoding/json"

// Status is the consensus status of a vertex.
//
// Pending and Accepted vertices are still tips and may change. Final and
// Rejected are terminal.
type Status uint32

const (
	Pending Status = iota
	Accepted
	Rejected
	Final
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	case Final:
		return "Final"
	default:
		return "Unknown"
	}
}

// Decided returns true if the status is terminal.
func (s Status) Decided() bool {
	return s == Rejected || s == Final
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
