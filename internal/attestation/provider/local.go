package provider

import (
	"context"

	"github.com/smallbiznis/carbonvault/internal/attestation/domain"
	"github.com/smallbiznis/carbonvault/internal/config"
)

// Local attests by hashing the canonical payload in process. Identical
// requests always produce identical hashes.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (*Local) Name() string { return config.AttestationProviderLocal }

func (*Local) Attest(ctx context.Context, payload domain.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return payload.Digest, nil
}
