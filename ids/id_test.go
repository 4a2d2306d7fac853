// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestID(t *testing.T) {
	require := require.New(t)

	id := ID{24}
	idCopy := ID{24}
	prefixed := id.Prefix(0)

	require.Equal(idCopy, id)
	require.Equal(prefixed, id.Prefix(0))
	require.NotEqual(id, prefixed)
}

func TestIDStringRoundTrip(t *testing.T) {
	require := require.New(t)

	id := GenerateTestID()
	parsed, err := FromString(id.String())
	require.NoError(err)
	require.Equal(id, parsed)
}

func TestIDJSON(t *testing.T) {
	require := require.New(t)

	id := GenerateTestID()
	b, err := json.Marshal(id)
	require.NoError(err)

	var parsed ID
	require.NoError(json.Unmarshal(b, &parsed))
	require.Equal(id, parsed)

	var untouched ID
	require.NoError(untouched.UnmarshalJSON([]byte("null")))
	require.Equal(Empty, untouched)

	require.ErrorIs(untouched.UnmarshalJSON([]byte("x")), errMissingQuotes)
}

func TestToIDWrongLength(t *testing.T) {
	_, err := ToID([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestIDLess(t *testing.T) {
	require := require.New(t)

	a := ID{1}
	b := ID{2}
	require.True(a.Less(b))
	require.False(b.Less(a))
	require.False(a.Less(a))
	require.Zero(a.Compare(a))
}

func TestNodeIDStringRoundTrip(t *testing.T) {
	require := require.New(t)

	nodeID := GenerateTestNodeID()
	parsed, err := NodeIDFromString(nodeID.String())
	require.NoError(err)
	require.Equal(nodeID, parsed)

	_, err = NodeIDFromString("missing-prefix")
	require.ErrorIs(err, errMissingPrefix)
}

func TestNodeIDJSON(t *testing.T) {
	require := require.New(t)

	nodeID := BuildTestNodeID([]byte{1, 2, 3})
	b, err := json.Marshal(nodeID)
	require.NoError(err)

	var parsed NodeID
	require.NoError(json.Unmarshal(b, &parsed))
	require.Equal(nodeID, parsed)

	require.ErrorIs(parsed.UnmarshalJSON([]byte(`"x"`)), errShortNodeID)
}
