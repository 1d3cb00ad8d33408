// Package speech implements the speech synthesis provider adapters.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
)

// ElevenLabsConfig configures the ElevenLabs adapter.
type ElevenLabsConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	Voice   string        `json:"voice" yaml:"voice"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultElevenLabsConfig returns the ElevenLabs defaults.
func DefaultElevenLabsConfig() ElevenLabsConfig {
	return ElevenLabsConfig{
		BaseURL: "https://api.elevenlabs.io",
		Model:   "eleven_multilingual_v2",
		Voice:   "21m00Tcm4TlvDq8ikWAM",
		Timeout: 60 * time.Second,
	}
}

// ElevenLabsProvider adapts the ElevenLabs text-to-speech API. Synthesis
// is synchronous: the audio comes back in the response body, so the
// outcome is terminal immediately and carries the audio as a data URL.
type ElevenLabsProvider struct {
	cfg    ElevenLabsConfig
	client *http.Client
	logger *zap.Logger
}

var _ media.Provider = (*ElevenLabsProvider)(nil)

// NewElevenLabsProvider creates an ElevenLabs adapter.
func NewElevenLabsProvider(cfg ElevenLabsConfig, logger *zap.Logger) *ElevenLabsProvider {
	def := DefaultElevenLabsConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &ElevenLabsProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", "elevenlabs")),
	}
}

func (p *ElevenLabsProvider) ID() string                   { return "elevenlabs" }
func (p *ElevenLabsProvider) DisplayName() string          { return "ElevenLabs" }
func (p *ElevenLabsProvider) Capability() media.Capability { return media.CapabilitySpeech }
func (p *ElevenLabsProvider) IsConfigured() bool           { return p.cfg.APIKey != "" }
func (p *ElevenLabsProvider) Constraints() media.Constraints { return media.Constraints{} }

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Generate synthesizes speech for the prompt text. The prompt is the
// script; Voice on the request overrides the configured default voice.
func (p *ElevenLabsProvider) Generate(ctx context.Context, req *media.GenerationRequest) (*media.GenerationOutcome, error) {
	voice := req.Voice
	if voice == "" {
		voice = p.cfg.Voice
	}

	raw, err := json.Marshal(elevenLabsRequest{Text: req.Prompt, ModelID: p.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/text-to-speech/"+voice, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return &media.GenerationOutcome{
			Success: false,
			Status:  media.StatusFailed,
			Error:   fmt.Sprintf("elevenlabs request failed: %v", err),
		}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &media.GenerationOutcome{
			Success: false,
			Status:  media.StatusFailed,
			Error:   fmt.Sprintf("elevenlabs returned HTTP %d: %s", resp.StatusCode, string(body)),
		}, nil
	}

	p.logger.Debug("speech synthesized", zap.Int("bytes", len(body)))
	return &media.GenerationOutcome{
		Success:     true,
		Status:      media.StatusCompleted,
		ArtifactURL: "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(body),
	}, nil
}

// CheckStatus always fails: synthesis is synchronous, so there are no
// tasks to look up.
func (p *ElevenLabsProvider) CheckStatus(ctx context.Context, taskRef string) (*media.GenerationOutcome, error) {
	return &media.GenerationOutcome{
		Success: false,
		Status:  media.StatusFailed,
		TaskRef: taskRef,
		Error:   media.ErrNoSuchTask.Error(),
	}, nil
}

func (p *ElevenLabsProvider) WaitForCompletion(ctx context.Context, taskRef string, maxWait, pollInterval time.Duration) (*media.GenerationOutcome, error) {
	return p.CheckStatus(ctx, taskRef)
}
