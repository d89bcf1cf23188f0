package domain

import (
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/sha3"
)

const payloadVersion = "carbonvault_attest_v1"

// BuildPayload encodes req as canonical JSON (object keys sorted, no
// insignificant whitespace) and computes its Keccak-256 digest.
func BuildPayload(req Request) (Payload, error) {
	op := Operation(strings.TrimSpace(string(req.Operation)))
	assetID := strings.TrimSpace(req.AssetID)
	if op == "" || assetID == "" {
		return Payload{}, ErrInvalidRequest
	}

	body := map[string]any{
		"v":         payloadVersion,
		"operation": string(op),
		"asset_id":  assetID,
	}
	if len(req.Payload) > 0 {
		body["payload"] = req.Payload
	}
	canonical, err := json.Marshal(body)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		Operation:     op,
		AssetID:       assetID,
		CanonicalJSON: canonical,
		Digest:        Keccak256Hex(canonical),
	}, nil
}

// Keccak256Hex returns the 0x-prefixed legacy Keccak-256 of data.
func Keccak256Hex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
