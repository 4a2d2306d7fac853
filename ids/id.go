// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/qudag/qrdag/utils/cb58"
	"github.com/qudag/qrdag/utils/hashing"
)

const (
	IDLen   = 32
	nullStr = "null"
)

var (
	// Empty is a useful all zero value
	Empty = ID{}

	errMissingQuotes = fmt.Errorf("first and last characters should be quotes")
)

// ID wraps a 32 byte hash used as an identifier of a vertex
type ID [IDLen]byte

// ToID attempt to convert a byte slice into an id
func ToID(bytes []byte) (ID, error) {
	return hashing.ToHash256(bytes)
}

// FromString is the inverse of ID.String()
func FromString(idStr string) (ID, error) {
	bytes, err := cb58.Decode(idStr)
	if err != nil {
		return ID{}, err
	}
	return ToID(bytes)
}

func (id ID) MarshalJSON() ([]byte, error) {
	str, err := cb58.Encode(id[:])
	if err != nil {
		return nil, err
	}
	return []byte(`"` + str + `"`), nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str == nullStr { // If "null", do nothing
		return nil
	} else if len(str) < 2 {
		return errMissingQuotes
	}

	lastIndex := len(str) - 1
	if str[0] != '"' || str[lastIndex] != '"' {
		return errMissingQuotes
	}

	// Parse CB58 formatted string to bytes
	newID, err := FromString(str[1:lastIndex])
	if err != nil {
		return fmt.Errorf("couldn't decode ID to bytes: %w", err)
	}
	*id = newID
	return nil
}

// Prefix this id to create a more selective id. This can be used to store
// multiple values under the same key. For example:
// prefix1(id) -> confidence
// prefix2(id) -> vertex
func (id ID) Prefix(prefixes ...uint64) ID {
	packed := make([]byte, len(prefixes)*8)
	for i, prefix := range prefixes {
		binary.BigEndian.PutUint64(packed[i*8:], prefix)
	}
	return hashing.ComputeHash256Parts(packed, id[:])
}

// Bytes returns a copy of the id's bytes. Any modification to the returned
// slice is lost since id is passed by value.
func (id ID) Bytes() []byte {
	return id[:]
}

// Hex returns a hex encoded string of this id.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ID) String() string {
	// We assume that the maximum size of a byte slice that
	// can be stringified is at least the length of an ID
	s, _ := cb58.Encode(id[:])
	return s
}

func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Less is used to keep vertex ids ordered, e.g. in the tip set.
func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}
