package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
)

// VeoProvider adapts Google's Veo long-running operation API. The
// operation name returned on submit serves as the task reference.
type VeoProvider struct {
	cfg    VeoConfig
	client *http.Client
	logger *zap.Logger
}

var _ media.Provider = (*VeoProvider)(nil)

// NewVeoProvider creates a Veo adapter.
func NewVeoProvider(cfg VeoConfig, logger *zap.Logger) *VeoProvider {
	def := DefaultVeoConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &VeoProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", "veo")),
	}
}

func (p *VeoProvider) ID() string                   { return "veo" }
func (p *VeoProvider) DisplayName() string          { return "Google Veo" }
func (p *VeoProvider) Capability() media.Capability { return media.CapabilityVideo }
func (p *VeoProvider) IsConfigured() bool           { return p.cfg.APIKey != "" }

func (p *VeoProvider) Constraints() media.Constraints {
	return media.Constraints{
		AllowedDurations:    []int{4, 6, 8},
		AllowedAspectRatios: []string{"16:9", "9:16"},
	}
}

type veoInstance struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image,omitempty"`
}

type veoParameters struct {
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	AspectRatio     string `json:"aspectRatio,omitempty"`
	NegativePrompt  string `json:"negativePrompt,omitempty"`
}

type veoGenerateRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// Generate starts a long-running generation operation.
func (p *VeoProvider) Generate(ctx context.Context, req *media.GenerationRequest) (*media.GenerationOutcome, error) {
	body := veoGenerateRequest{
		Instances: []veoInstance{{Prompt: req.Prompt, Image: req.ExtendFromRef}},
		Parameters: veoParameters{
			DurationSeconds: req.DurationSeconds,
			AspectRatio:     req.AspectRatio,
			NegativePrompt:  req.NegativePrompt,
		},
	}

	path := fmt.Sprintf("/models/%s:predictLongRunning", p.cfg.Model)
	var op veoOperation
	if err := p.doJSON(ctx, http.MethodPost, path, body, &op); err != nil {
		return &media.GenerationOutcome{
			Success: false,
			Status:  media.StatusFailed,
			Error:   err.Error(),
		}, nil
	}

	p.logger.Debug("operation started", zap.String("task_ref", op.Name))
	return &media.GenerationOutcome{
		Success: true,
		Status:  media.StatusProcessing,
		TaskRef: op.Name,
	}, nil
}

// CheckStatus fetches the operation state. taskRef is the operation name.
func (p *VeoProvider) CheckStatus(ctx context.Context, taskRef string) (*media.GenerationOutcome, error) {
	var op veoOperation
	if err := p.doJSON(ctx, http.MethodGet, "/"+taskRef, nil, &op); err != nil {
		return nil, err
	}

	out := &media.GenerationOutcome{TaskRef: taskRef}
	if !op.Done {
		out.Status = media.StatusProcessing
		return out, nil
	}
	if op.Error != nil {
		out.Status = media.StatusFailed
		out.Error = op.Error.Message
		if out.Error == "" {
			out.Error = "operation failed without a reason"
		}
		return out, nil
	}

	out.Status = media.StatusCompleted
	out.Success = true
	if op.Response != nil {
		samples := op.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) > 0 {
			out.ArtifactURL = samples[0].Video.URI
		}
	}
	return out, nil
}

func (p *VeoProvider) WaitForCompletion(ctx context.Context, taskRef string, maxWait, pollInterval time.Duration) (*media.GenerationOutcome, error) {
	return media.PollUntilDone(ctx, func(ctx context.Context) (*media.GenerationOutcome, error) {
		return p.CheckStatus(ctx, taskRef)
	}, maxWait, pollInterval)
}

func (p *VeoProvider) doJSON(ctx context.Context, method, path string, in, out any) error {
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
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("veo request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("veo returned HTTP %d: %s", resp.StatusCode, apiErrorDetail(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
