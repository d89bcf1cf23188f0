package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/smallbiznis/carbonvault/internal/attestation/domain"
	"github.com/smallbiznis/carbonvault/internal/config"
	"github.com/smallbiznis/carbonvault/internal/observability/tracing"
)

const maxResponseBytes = 64 << 10

type httpRequest struct {
	Operation string          `json:"operation"`
	AssetID   string          `json:"asset_id"`
	Digest    string          `json:"digest"`
	Payload   json.RawMessage `json:"payload"`
}

type httpResponse struct {
	Hash string `json:"hash"`
}

// HTTP posts payloads to an external attestation endpoint and expects
// {"hash": "..."} back. The endpoint is read per call so it follows config reloads.
type HTTP struct {
	client *http.Client
	config *config.LedgerConfigHolder
}

func NewHTTP(cfg *config.LedgerConfigHolder, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{
		client: tracing.WrapHTTPClient(client),
		config: cfg,
	}
}

func (*HTTP) Name() string { return config.AttestationProviderHTTP }

func (p *HTTP) Attest(ctx context.Context, payload domain.Payload) (string, error) {
	endpoint := strings.TrimSpace(p.config.Get().Attestation.Endpoint)
	if endpoint == "" {
		return "", errors.New("attestation endpoint not configured")
	}

	body, err := json.Marshal(httpRequest{
		Operation: string(payload.Operation),
		AssetID:   payload.AssetID,
		Digest:    payload.Digest,
		Payload:   payload.CanonicalJSON,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("attestation endpoint returned %d", resp.StatusCode)
	}

	var decoded httpResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode attestation response: %w", err)
	}
	hash := strings.TrimSpace(decoded.Hash)
	if hash == "" {
		return "", errors.New("attestation response missing hash")
	}
	return hash, nil
}
