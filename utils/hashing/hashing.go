// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashing

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

const HashLen = sha256.Size

var ErrInvalidHashLen = errors.New("invalid hash length")

// Hash256 is a sha256 digest.
type Hash256 = [HashLen]byte

// ComputeHash256Array returns the sha256 digest of [buf].
func ComputeHash256Array(buf []byte) Hash256 {
	return sha256.Sum256(buf)
}

// ComputeHash256Parts returns the sha256 digest of the concatenation of
// [parts] without materializing it.
func ComputeHash256Parts(parts ...[]byte) Hash256 {
	hasher := sha256.New()
	for _, part := range parts {
		_, _ = hasher.Write(part) // sha256 never returns an error
	}
	var hash Hash256
	hasher.Sum(hash[:0])
	return hash
}

// Checksum returns the trailing [length] bytes of the digest of [bytes].
// Panics if length > HashLen.
func Checksum(bytes []byte, length int) []byte {
	hash := ComputeHash256Array(bytes)
	return hash[len(hash)-length:]
}

// ToHash256 copies [bytes] into a digest, which must be exactly HashLen long.
func ToHash256(bytes []byte) (Hash256, error) {
	var hash Hash256
	if len(bytes) != HashLen {
		return hash, fmt.Errorf("%w: expected %d bytes but got %d", ErrInvalidHashLen, HashLen, len(bytes))
	}
	copy(hash[:], bytes)
	return hash, nil
}
