package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/carbonvault/internal/attestation/domain"
	"github.com/smallbiznis/carbonvault/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload(t *testing.T) domain.Payload {
	t.Helper()
	payload, err := domain.BuildPayload(domain.Request{Operation: domain.OperationMint, AssetID: "9"})
	require.NoError(t, err)
	return payload
}

func TestLocalReturnsDigest(t *testing.T) {
	payload := testPayload(t)
	hash, err := NewLocal().Attest(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, payload.Digest, hash)
}

func TestLocalHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal().Attest(ctx, testPayload(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDisabledAlwaysFails(t *testing.T) {
	_, err := NewDisabled().Attest(context.Background(), testPayload(t))
	assert.Error(t, err)
}

func TestHTTPPostsPayloadAndReadsHash(t *testing.T) {
	var received httpRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]string{"hash": "0xfeed"})
	}))
	defer server.Close()

	holder := config.NewStaticLedgerConfig(config.LedgerConfig{
		Attestation: config.AttestationConfig{Provider: config.AttestationProviderHTTP, Endpoint: server.URL},
	})
	payload := testPayload(t)

	hash, err := NewHTTP(holder, server.Client()).Attest(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", hash)
	assert.Equal(t, "mint", received.Operation)
	assert.Equal(t, "9", received.AssetID)
	assert.Equal(t, payload.Digest, received.Digest)
}

func TestHTTPFailsOnErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	holder := config.NewStaticLedgerConfig(config.LedgerConfig{
		Attestation: config.AttestationConfig{Provider: config.AttestationProviderHTTP, Endpoint: server.URL},
	})
	_, err := NewHTTP(holder, server.Client()).Attest(context.Background(), testPayload(t))
	assert.Error(t, err)
}

func TestHTTPFailsOnMissingHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	holder := config.NewStaticLedgerConfig(config.LedgerConfig{
		Attestation: config.AttestationConfig{Provider: config.AttestationProviderHTTP, Endpoint: server.URL},
	})
	_, err := NewHTTP(holder, server.Client()).Attest(context.Background(), testPayload(t))
	assert.Error(t, err)
}
