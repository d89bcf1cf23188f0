package domain

import (
	"context"
	"errors"
)

type Operation string

const (
	OperationMint              Operation = "mint"
	OperationBuy               Operation = "buy"
	OperationSell              Operation = "sell"
	OperationTransfer          Operation = "transfer"
	OperationRequestRetirement Operation = "request_retirement"
	OperationConfirmRetirement Operation = "confirm_retirement"
	OperationRejectRetirement  Operation = "reject_retirement"
)

// Request describes the state change to attest.
type Request struct {
	Operation Operation
	AssetID   string
	Payload   map[string]any
}

// Payload is the canonical form of a Request handed to providers.
type Payload struct {
	Operation     Operation
	AssetID       string
	CanonicalJSON []byte
	// Digest is the hex Keccak-256 of CanonicalJSON.
	Digest string
}

// Provider produces an attestation hash for a payload.
type Provider interface {
	Name() string
	Attest(ctx context.Context, payload Payload) (string, error)
}

type Service interface {
	// Attest returns the attestation hash or ErrAttestationUnavailable.
	Attest(ctx context.Context, req Request) (string, error)
}

var (
	ErrAttestationUnavailable = errors.New("attestation_unavailable")
	ErrInvalidRequest         = errors.New("invalid_attestation_request")
)
