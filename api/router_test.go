package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/internal/cache"
	"github.com/inkwell-ai/mediaflow/media"
	"github.com/inkwell-ai/mediaflow/media/budget"
	"github.com/inkwell-ai/mediaflow/media/chain"
	"github.com/inkwell-ai/mediaflow/media/health"
)

// stubProvider is a configurable in-memory provider for router tests.
type stubProvider struct {
	id         string
	capability media.Capability
	configured bool
	outcome    *media.GenerationOutcome
	statuses   map[string]*media.GenerationOutcome
}

func (s *stubProvider) ID() string                     { return s.id }
func (s *stubProvider) DisplayName() string            { return s.id }
func (s *stubProvider) Capability() media.Capability   { return s.capability }
func (s *stubProvider) IsConfigured() bool             { return s.configured }
func (s *stubProvider) Constraints() media.Constraints { return media.Constraints{} }

func (s *stubProvider) Generate(ctx context.Context, req *media.GenerationRequest) (*media.GenerationOutcome, error) {
	return s.outcome, nil
}

func (s *stubProvider) CheckStatus(ctx context.Context, taskRef string) (*media.GenerationOutcome, error) {
	if out, ok := s.statuses[taskRef]; ok {
		return out, nil
	}
	return &media.GenerationOutcome{Status: media.StatusFailed, Error: media.ErrNoSuchTask.Error()}, nil
}

func (s *stubProvider) WaitForCompletion(ctx context.Context, taskRef string, maxWait, pollInterval time.Duration) (*media.GenerationOutcome, error) {
	return media.PollUntilDone(ctx, func(ctx context.Context) (*media.GenerationOutcome, error) {
		return s.CheckStatus(ctx, taskRef)
	}, maxWait, pollInterval)
}

type testEnv struct {
	router   http.Handler
	registry *media.Registry
	monitor  *health.Monitor
	gate     *budget.Gate
}

func newTestEnv(t *testing.T, providers ...media.Provider) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	registry := media.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}

	monitor := health.NewMonitor(health.DefaultConfig(), nil, nil, logger)
	gateCfg := budget.DefaultConfig()
	gateCfg.RequireApproval = false
	gate := budget.NewGate(gateCfg, nil, nil, logger)
	engine := media.NewEngine(registry, monitor, gate, cache.NewMemory(), logger)
	builder := chain.NewBuilder(engine, logger)

	router := NewRouter(Deps{
		Engine:   engine,
		Builder:  builder,
		Registry: registry,
		Monitor:  monitor,
		Gate:     gate,
		Version:  "test",
		Logger:   logger,
	})
	return &testEnv{router: router, registry: registry, monitor: monitor, gate: gate}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestRouter_Healthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	payload := decodeResponse(t, rec)
	assert.Equal(t, true, payload["success"])
}

func TestRouter_Providers(t *testing.T) {
	env := newTestEnv(t,
		&stubProvider{id: "a", capability: media.CapabilityVideo, configured: true},
		&stubProvider{id: "b", capability: media.CapabilityImage, configured: false},
	)
	env.monitor.QuarantineProvider("a", "testing")

	rec := env.do(t, http.MethodGet, "/api/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data []struct {
			ID          string `json:"id"`
			Configured  bool   `json:"configured"`
			Quarantined bool   `json:"quarantined"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 2)
	assert.Equal(t, "a", payload.Data[0].ID)
	assert.True(t, payload.Data[0].Quarantined)
	assert.False(t, payload.Data[1].Configured)
}

func TestRouter_GenerateSuccess(t *testing.T) {
	env := newTestEnv(t, &stubProvider{
		id:         "a",
		capability: media.CapabilityVideo,
		configured: true,
		outcome: &media.GenerationOutcome{
			Success:     true,
			Status:      media.StatusCompleted,
			TaskRef:     "t-1",
			ArtifactURL: "https://cdn.example.com/v.mp4",
		},
	})

	rec := env.do(t, http.MethodPost, "/api/generate", map[string]any{
		"capability": "video",
		"prompt":     "a city at dusk",
		"providers":  []map[string]any{{"provider_id": "a", "priority": 1, "enabled": true}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	payload := decodeResponse(t, rec)
	assert.Equal(t, true, payload["success"])
}

func TestRouter_GenerateDefaultRotation(t *testing.T) {
	logger := zap.NewNop()
	provider := &stubProvider{
		id:         "a",
		capability: media.CapabilityVideo,
		configured: true,
		outcome: &media.GenerationOutcome{
			Success: true,
			Status:  media.StatusCompleted,
			TaskRef: "t-1",
		},
	}

	registry := media.NewRegistry()
	registry.Register(provider)
	monitor := health.NewMonitor(health.DefaultConfig(), nil, nil, logger)
	gate := budget.NewGate(budget.DefaultConfig(), nil, nil, logger)
	engine := media.NewEngine(registry, monitor, gate, cache.NewMemory(), logger)

	router := NewRouter(Deps{
		Engine:   engine,
		Builder:  chain.NewBuilder(engine, logger),
		Registry: registry,
		Monitor:  monitor,
		Gate:     gate,
		DefaultProviders: []media.EnabledProvider{
			{ProviderID: "a", Priority: 1, Enabled: true},
		},
		Version: "test",
		Logger:  logger,
	})

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"capability": "video",
		"prompt":     "a city at dusk",
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/generate", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decodeResponse(t, rec)
	assert.Equal(t, true, payload["success"])
}

func TestRouter_GenerateValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad capability", map[string]any{"capability": "hologram", "prompt": "x", "providers": []map[string]any{{"provider_id": "a"}}}},
		{"missing prompt", map[string]any{"capability": "video", "providers": []map[string]any{{"provider_id": "a"}}}},
		{"missing providers", map[string]any{"capability": "video", "prompt": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRouter_GenerateAllFailed(t *testing.T) {
	env := newTestEnv(t, &stubProvider{
		id:         "a",
		capability: media.CapabilityVideo,
		configured: true,
		outcome: &media.GenerationOutcome{
			Success: false,
			Status:  media.StatusFailed,
			Error:   "timeout connecting upstream",
		},
	})

	rec := env.do(t, http.MethodPost, "/api/generate", map[string]any{
		"capability": "video",
		"prompt":     "x",
		"providers":  []map[string]any{{"provider_id": "a", "priority": 1, "enabled": true}},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouter_TaskStatusWithSlashRef(t *testing.T) {
	env := newTestEnv(t, &stubProvider{
		id:         "a",
		capability: media.CapabilityVideo,
		configured: true,
		statuses: map[string]*media.GenerationOutcome{
			"operations/op-1": {Success: true, Status: media.StatusCompleted, TaskRef: "operations/op-1", ArtifactURL: "u"},
		},
	})

	rec := env.do(t, http.MethodGet, "/api/tasks/a/operations/op-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload struct {
		Data media.GenerationOutcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, media.StatusCompleted, payload.Data.Status)
}

func TestRouter_TaskStatusUnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/tasks/nope/t-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_QuarantineLifecycle(t *testing.T) {
	env := newTestEnv(t, &stubProvider{id: "a", capability: media.CapabilityVideo, configured: true})
	env.monitor.QuarantineProvider("a", "quota exceeded")

	rec := env.do(t, http.MethodGet, "/api/quarantine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listPayload struct {
		Data []health.QuarantineEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listPayload))
	require.Len(t, listPayload.Data, 1)

	rec = env.do(t, http.MethodDelete, "/api/quarantine/a", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.monitor.IsProviderQuarantined("a"))

	rec = env.do(t, http.MethodDelete, "/api/quarantine/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ApprovalEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/content/c-1/approve", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, budget.ApprovalApproved, env.gate.Approvals()["c-1"])

	rec = env.do(t, http.MethodPost, "/api/content/c-1/reject", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, budget.ApprovalRejected, env.gate.Approvals()["c-1"])
}

func TestRouter_BudgetProjection(t *testing.T) {
	env := newTestEnv(t)
	env.gate.TrackCost("a", media.OpVideoGenerate, 0.5, "client", nil)

	rec := env.do(t, http.MethodGet, "/api/budget", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "usage")
}

func TestRouter_RecordsLimitValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/records?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/records?limit=5", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
