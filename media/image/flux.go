// Package image implements the image generation provider adapters.
package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
)

// FluxConfig configures the Black Forest Labs Flux adapter.
type FluxConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultFluxConfig returns the Flux defaults.
func DefaultFluxConfig() FluxConfig {
	return FluxConfig{
		BaseURL: "https://api.bfl.ml",
		Model:   "flux-pro-1.1",
		Timeout: 30 * time.Second,
	}
}

// FluxProvider adapts the BFL Flux API. Submission returns a result id
// that is polled on the get_result endpoint.
type FluxProvider struct {
	cfg    FluxConfig
	client *http.Client
	logger *zap.Logger
}

var _ media.Provider = (*FluxProvider)(nil)

// NewFluxProvider creates a Flux adapter.
func NewFluxProvider(cfg FluxConfig, logger *zap.Logger) *FluxProvider {
	def := DefaultFluxConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &FluxProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", "flux")),
	}
}

func (p *FluxProvider) ID() string                   { return "flux" }
func (p *FluxProvider) DisplayName() string          { return "Flux" }
func (p *FluxProvider) Capability() media.Capability { return media.CapabilityImage }
func (p *FluxProvider) IsConfigured() bool           { return p.cfg.APIKey != "" }

func (p *FluxProvider) Constraints() media.Constraints {
	return media.Constraints{
		AllowedAspectRatios: []string{"16:9", "9:16", "1:1", "4:3", "3:4"},
	}
}

type fluxGenerateRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Seed   int64  `json:"seed,omitempty"`
}

type fluxSubmitResponse struct {
	ID string `json:"id"`
}

type fluxResultResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result,omitempty"`
}

// Generate submits one image generation. The request id is the task
// reference.
func (p *FluxProvider) Generate(ctx context.Context, req *media.GenerationRequest) (*media.GenerationOutcome, error) {
	width, height := fluxDimensions(req.AspectRatio)
	body := fluxGenerateRequest{
		Prompt: req.Prompt,
		Width:  width,
		Height: height,
		Seed:   req.Seed,
	}

	var submitted fluxSubmitResponse
	if err := p.doJSON(ctx, http.MethodPost, "/v1/"+p.cfg.Model, body, &submitted); err != nil {
		return &media.GenerationOutcome{
			Success: false,
			Status:  media.StatusFailed,
			Error:   err.Error(),
		}, nil
	}

	p.logger.Debug("task submitted", zap.String("task_ref", submitted.ID))
	return &media.GenerationOutcome{
		Success: true,
		Status:  media.StatusPending,
		TaskRef: submitted.ID,
	}, nil
}

// CheckStatus fetches the result for a previously submitted request.
func (p *FluxProvider) CheckStatus(ctx context.Context, taskRef string) (*media.GenerationOutcome, error) {
	var result fluxResultResponse
	path := "/v1/get_result?id=" + url.QueryEscape(taskRef)
	if err := p.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	out := &media.GenerationOutcome{TaskRef: taskRef}
	switch result.Status {
	case "Ready":
		out.Status = media.StatusCompleted
		out.Success = true
		if result.Result != nil {
			out.ArtifactURL = result.Result.Sample
		}
	case "Pending":
		out.Status = media.StatusProcessing
	case "Error", "Content Moderated", "Request Moderated":
		out.Status = media.StatusFailed
		out.Error = fmt.Sprintf("generation failed: %s", result.Status)
	case "Task not found":
		out.Status = media.StatusFailed
		out.Error = media.ErrNoSuchTask.Error()
	default:
		out.Status = media.StatusPending
	}
	return out, nil
}

func (p *FluxProvider) WaitForCompletion(ctx context.Context, taskRef string, maxWait, pollInterval time.Duration) (*media.GenerationOutcome, error) {
	return media.PollUntilDone(ctx, func(ctx context.Context) (*media.GenerationOutcome, error) {
		return p.CheckStatus(ctx, taskRef)
	}, maxWait, pollInterval)
}

func (p *FluxProvider) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-key", p.cfg.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("flux request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("flux returned HTTP %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// fluxDimensions maps an aspect ratio onto the closest supported pixel
// pair. Dimensions must be multiples of 32.
func fluxDimensions(ratio string) (width, height int) {
	switch ratio {
	case "16:9":
		return 1344, 768
	case "9:16":
		return 768, 1344
	case "1:1":
		return 1024, 1024
	case "4:3":
		return 1152, 864
	case "3:4":
		return 864, 1152
	default:
		return 0, 0
	}
}
