package provider

import (
	"context"
	"errors"

	"github.com/smallbiznis/carbonvault/internal/attestation/domain"
	"github.com/smallbiznis/carbonvault/internal/config"
)

var errDisabled = errors.New("attestation provider disabled")

// Disabled refuses every request.
type Disabled struct{}

func NewDisabled() *Disabled { return &Disabled{} }

func (*Disabled) Name() string { return config.AttestationProviderDisabled }

func (*Disabled) Attest(context.Context, domain.Payload) (string, error) {
	return "", errDisabled
}
