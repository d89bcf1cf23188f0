package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayloadIsDeterministic(t *testing.T) {
	req := Request{
		Operation: OperationBuy,
		AssetID:   "42",
		Payload:   map[string]any{"to_owner": "alice", "version": 2, "from_status": "available"},
	}
	first, err := BuildPayload(req)
	require.NoError(t, err)
	second, err := BuildPayload(req)
	require.NoError(t, err)

	assert.Equal(t, first.CanonicalJSON, second.CanonicalJSON)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t,
		`{"asset_id":"42","operation":"buy","payload":{"from_status":"available","to_owner":"alice","version":2},"v":"carbonvault_attest_v1"}`,
		string(first.CanonicalJSON))
	assert.Len(t, first.Digest, 66)
}

func TestBuildPayloadDistinguishesOperations(t *testing.T) {
	buy, err := BuildPayload(Request{Operation: OperationBuy, AssetID: "1"})
	require.NoError(t, err)
	sell, err := BuildPayload(Request{Operation: OperationSell, AssetID: "1"})
	require.NoError(t, err)
	assert.NotEqual(t, buy.Digest, sell.Digest)
}

func TestBuildPayloadRequiresOperationAndAsset(t *testing.T) {
	_, err := BuildPayload(Request{AssetID: "1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = BuildPayload(Request{Operation: OperationMint})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestKeccak256HexKnownVector(t *testing.T) {
	assert.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Keccak256Hex(nil))
}
