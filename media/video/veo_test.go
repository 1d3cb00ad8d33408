package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
)

func newTestVeo(t *testing.T, handler http.HandlerFunc) *VeoProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultVeoConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	return NewVeoProvider(cfg, zap.NewNop())
}

func TestVeo_GenerateReturnsOperationName(t *testing.T) {
	p := newTestVeo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/veo-2.0-generate-001:predictLongRunning", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1"})
	})

	out, err := p.Generate(context.Background(), &media.GenerationRequest{
		Prompt:          "sunrise timelapse",
		DurationSeconds: 8,
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, media.StatusProcessing, out.Status)
	assert.Equal(t, "operations/op-1", out.TaskRef)
}

func TestVeo_CheckStatus(t *testing.T) {
	t.Run("still running", func(t *testing.T) {
		p := newTestVeo(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/operations/op-1", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]any{"name": "operations/op-1", "done": false})
		})

		out, err := p.CheckStatus(context.Background(), "operations/op-1")
		require.NoError(t, err)
		assert.Equal(t, media.StatusProcessing, out.Status)
		assert.False(t, out.Success)
	})

	t.Run("completed with artifact", func(t *testing.T) {
		p := newTestVeo(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"name": "operations/op-1",
				"done": true,
				"response": map[string]any{
					"generateVideoResponse": map[string]any{
						"generatedSamples": []map[string]any{
							{"video": map[string]string{"uri": "https://storage.example.com/v.mp4"}},
						},
					},
				},
			})
		})

		out, err := p.CheckStatus(context.Background(), "operations/op-1")
		require.NoError(t, err)
		assert.True(t, out.Success)
		assert.Equal(t, media.StatusCompleted, out.Status)
		assert.Equal(t, "https://storage.example.com/v.mp4", out.ArtifactURL)
	})

	t.Run("failed operation", func(t *testing.T) {
		p := newTestVeo(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"name":  "operations/op-1",
				"done":  true,
				"error": map[string]any{"message": "safety filter triggered"},
			})
		})

		out, err := p.CheckStatus(context.Background(), "operations/op-1")
		require.NoError(t, err)
		assert.False(t, out.Success)
		assert.Equal(t, media.StatusFailed, out.Status)
		assert.Equal(t, "safety filter triggered", out.Error)
	})
}

func TestVeo_Constraints(t *testing.T) {
	p := NewVeoProvider(VeoConfig{APIKey: "k"}, zap.NewNop())

	c := p.Constraints()
	assert.Equal(t, []int{4, 6, 8}, c.AllowedDurations)
	assert.True(t, c.Allows(&media.GenerationRequest{DurationSeconds: 8}))
	assert.False(t, c.Allows(&media.GenerationRequest{DurationSeconds: 10}))
}
