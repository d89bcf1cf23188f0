package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	approvalservice "github.com/smallbiznis/carbonvault/internal/approval/service"
	"github.com/smallbiznis/carbonvault/internal/asset/assettest"
	"github.com/smallbiznis/carbonvault/internal/authorization"
	ingestionrepo "github.com/smallbiznis/carbonvault/internal/ingestion/repository"
	ingestionservice "github.com/smallbiznis/carbonvault/internal/ingestion/service"
	marketplaceservice "github.com/smallbiznis/carbonvault/internal/marketplace/service"
	"github.com/smallbiznis/carbonvault/internal/observability"
	retirementrepo "github.com/smallbiznis/carbonvault/internal/retirement/repository"
	retirementservice "github.com/smallbiznis/carbonvault/internal/retirement/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	t      *testing.T
	ledger *assettest.Ledger
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	l := assettest.NewLedger(t)
	log := zap.NewNop()
	enforcer, err := authorization.NewEnforcer(nil)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	ingestRepo := ingestionrepo.Provide()
	retirement := retirementservice.NewService(retirementservice.Params{
		DB:       l.DB,
		Log:      log,
		GenID:    l.GenID,
		Clock:    l.Clock,
		Repo:     retirementrepo.Provide(),
		AssetSvc: l.Assets,
		Authz:    authz,
	})

	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin: engine,
		IngestionSvc: ingestionservice.NewService(ingestionservice.Params{
			DB:     l.DB,
			Log:    log,
			GenID:  l.GenID,
			Clock:  l.Clock,
			Config: l.Config,
			Repo:   ingestRepo,
		}),
		ApprovalSvc: approvalservice.NewService(approvalservice.Params{
			DB:            l.DB,
			Log:           log,
			Clock:         l.Clock,
			IngestionRepo: ingestRepo,
			AssetSvc:      l.Assets,
			AuditSvc:      l.Audit,
			Authz:         authz,
		}),
		AssetSvc: l.Assets,
		MarketplaceSvc: marketplaceservice.NewService(marketplaceservice.Params{
			Log:           log,
			AssetSvc:      l.Assets,
			RetirementSvc: retirement,
			Authz:         authz,
		}),
		RetirementSvc: retirement,
		AuditSvc:      l.Audit,
		AuthzSvc:      authz,
	})

	return &testServer{t: t, ledger: l, engine: engine}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func (s *testServer) do(method, path, actorID, role string, body any) (int, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != "" {
		req.Header.Set(HeaderActorID, actorID)
		req.Header.Set(HeaderActorRole, role)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type idStatus struct {
	ID      string  `json:"id"`
	Status  string  `json:"status"`
	OwnerID *string `json:"owner_id"`
}

func TestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/ingestions", "sensor-9", "device", gin.H{"tonnes": "1.5"})
	require.Equal(t, http.StatusCreated, code)
	record := decode[struct {
		ID             string `json:"id"`
		DeviceID       string `json:"device_id"`
		ApprovalStatus string `json:"approval_status"`
	}](t, env)
	assert.Equal(t, "sensor-9", record.DeviceID)
	assert.Equal(t, "pending", record.ApprovalStatus)

	code, env = s.do(http.MethodPost, "/api/v1/ingestions/"+record.ID+"/approve", "admin-1", "admin", gin.H{"registry_serial": "VCS-9"})
	require.Equal(t, http.StatusCreated, code)
	asset := decode[idStatus](t, env)
	assert.Equal(t, "available", asset.Status)
	assetPath := "/api/v1/assets/" + asset.ID

	code, env = s.do(http.MethodPost, assetPath+"/buy", "alice", "company", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "owned", decode[idStatus](t, env).Status)

	code, _ = s.do(http.MethodPost, assetPath+"/sell", "alice", "company", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, assetPath+"/buy", "bob", "company", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, assetPath+"/retire", "bob", "company", nil)
	require.Equal(t, http.StatusAccepted, code)
	retirement := decode[struct {
		Asset   idStatus `json:"asset"`
		Request struct {
			ID string `json:"id"`
		} `json:"retirement_request"`
	}](t, env)
	assert.Equal(t, "pending_retirement", retirement.Asset.Status)

	code, env = s.do(http.MethodGet, "/api/v1/retirements", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]json.RawMessage](t, env), 1)

	code, env = s.do(http.MethodPost, "/api/v1/retirements/"+retirement.Request.ID+"/confirm", "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "retired", decode[idStatus](t, env).Status)

	code, env = s.do(http.MethodPost, assetPath+"/sell", "bob", "company", nil)
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_transition", env.Error.Type)

	code, env = s.do(http.MethodGet, "/api/v1/audit-logs?asset_id="+asset.ID, "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]json.RawMessage](t, env), 6)

	code, env = s.do(http.MethodGet, "/api/v1/assets/summary", "alice", "company", nil)
	require.Equal(t, http.StatusOK, code)
	summary := decode[struct {
		TotalAssets   int64  `json:"total_assets"`
		RetiredTonnes string `json:"retired_tonnes"`
	}](t, env)
	assert.Equal(t, int64(1), summary.TotalAssets)
	assert.Equal(t, "1.5", summary.RetiredTonnes)
}

func TestRouteGate(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/api/v1/assets", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Type)

	code, _ = s.do(http.MethodGet, "/api/v1/assets", "alice", "auditor", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/v1/audit-logs", "alice", "company", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, "/api/v1/ingestions", "alice", "company", gin.H{"tonnes": "1", "device_id": "x"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodGet, "/api/v1/assets", "sensor-1", "device", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodGet, "/api/v1/assets", "alice", "company", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestDeviceCannotReportForAnotherDevice(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(http.MethodPost, "/api/v1/ingestions", "sensor-1", "device", gin.H{"tonnes": "1", "device_id": "sensor-2"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/ingestions", "sensor-1", "device", gin.H{"tonnes": "-2"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Type)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "invalid_measurement", env.Error.Errors[0].Code)
	assert.Equal(t, "measurement", env.Error.Errors[0].Field)

	code, _ = s.do(http.MethodGet, "/api/v1/assets/not-an-id", "alice", "company", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/api/v1/assets?status=burnt", "alice", "company", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, "/api/v1/assets/"+s.ledger.GenID.Generate().String(), "alice", "company", nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Type)
}

func TestAttestationOutageIsServiceUnavailable(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/ingestions", "sensor-1", "device", gin.H{"tonnes": "2"})
	require.Equal(t, http.StatusCreated, code)
	record := decode[idStatus](t, env)

	s.ledger.Attestation.Fail = true
	code, env = s.do(http.MethodPost, "/api/v1/ingestions/"+record.ID+"/approve", "admin-1", "admin", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "attestation_unavailable", env.Error.Type)

	code, env = s.do(http.MethodGet, "/api/v1/ingestions/"+record.ID, "admin-1", "admin", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"approval_status":"pending"`)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
