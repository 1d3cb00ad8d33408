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

// RunwayProvider adapts the Runway Gen-3 task API. Generation is
// asynchronous: submit returns a task id, and the result is fetched by
// polling the task endpoint.
type RunwayProvider struct {
	cfg    RunwayConfig
	client *http.Client
	logger *zap.Logger
}

var _ media.Provider = (*RunwayProvider)(nil)

// NewRunwayProvider creates a Runway adapter.
func NewRunwayProvider(cfg RunwayConfig, logger *zap.Logger) *RunwayProvider {
	def := DefaultRunwayConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = def.APIVersion
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &RunwayProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", "runway")),
	}
}

func (p *RunwayProvider) ID() string                 { return "runway" }
func (p *RunwayProvider) DisplayName() string        { return "Runway Gen-3" }
func (p *RunwayProvider) Capability() media.Capability { return media.CapabilityVideo }
func (p *RunwayProvider) IsConfigured() bool         { return p.cfg.APIKey != "" }

// Constraints reflects the Gen-3 API: clips are 5 or 10 seconds.
func (p *RunwayProvider) Constraints() media.Constraints {
	return media.Constraints{
		AllowedDurations:    []int{5, 10},
		AllowedAspectRatios: []string{"16:9", "9:16"},
	}
}

type runwayGenerateRequest struct {
	PromptText  string `json:"promptText,omitempty"`
	PromptImage string `json:"promptImage,omitempty"`
	Model       string `json:"model"`
	Duration    int    `json:"duration,omitempty"`
	Ratio       string `json:"ratio,omitempty"`
	Seed        int64  `json:"seed,omitempty"`
}

type runwayTaskResponse struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Output        []string `json:"output,omitempty"`
	FailureReason string   `json:"failure,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Generate submits one generation task. Continuations post the previous
// artifact as the prompt image so the new clip picks up where it ended.
func (p *RunwayProvider) Generate(ctx context.Context, req *media.GenerationRequest) (*media.GenerationOutcome, error) {
	body := runwayGenerateRequest{
		Model:    p.cfg.Model,
		Duration: req.DurationSeconds,
		Ratio:    runwayRatio(req.AspectRatio),
		Seed:     req.Seed,
	}
	path := "/v1/text_to_video"
	if req.ExtendFromRef != "" {
		path = "/v1/image_to_video"
		body.PromptImage = req.ExtendFromRef
		body.PromptText = req.Prompt
	} else {
		body.PromptText = req.Prompt
	}

	var task runwayTaskResponse
	if err := p.doJSON(ctx, http.MethodPost, path, body, &task); err != nil {
		return &media.GenerationOutcome{
			Success: false,
			Status:  media.StatusFailed,
			Error:   err.Error(),
		}, nil
	}

	p.logger.Debug("task submitted",
		zap.String("task_ref", task.ID),
		zap.Bool("extension", req.ExtendFromRef != ""))

	return &media.GenerationOutcome{
		Success: true,
		Status:  runwayStatus(task.Status),
		TaskRef: task.ID,
	}, nil
}

// CheckStatus fetches the current task state.
func (p *RunwayProvider) CheckStatus(ctx context.Context, taskRef string) (*media.GenerationOutcome, error) {
	var task runwayTaskResponse
	if err := p.doJSON(ctx, http.MethodGet, "/v1/tasks/"+taskRef, nil, &task); err != nil {
		return nil, err
	}

	out := &media.GenerationOutcome{
		Status:  runwayStatus(task.Status),
		TaskRef: taskRef,
	}
	switch out.Status {
	case media.StatusCompleted:
		out.Success = true
		if len(task.Output) > 0 {
			out.ArtifactURL = task.Output[0]
		}
	case media.StatusFailed:
		out.Error = task.FailureReason
		if out.Error == "" {
			out.Error = task.Error
		}
		if out.Error == "" {
			out.Error = "task failed without a reason"
		}
	}
	return out, nil
}

// WaitForCompletion polls the task until it is terminal or maxWait elapses.
func (p *RunwayProvider) WaitForCompletion(ctx context.Context, taskRef string, maxWait, pollInterval time.Duration) (*media.GenerationOutcome, error) {
	return media.PollUntilDone(ctx, func(ctx context.Context) (*media.GenerationOutcome, error) {
		return p.CheckStatus(ctx, taskRef)
	}, maxWait, pollInterval)
}

func (p *RunwayProvider) doJSON(ctx context.Context, method, path string, in, out any) error {
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
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("X-Runway-Version", p.cfg.APIVersion)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("runway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("runway returned HTTP %d: %s", resp.StatusCode, apiErrorDetail(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runwayStatus(s string) media.TaskStatus {
	switch s {
	case "PENDING", "THROTTLED":
		return media.StatusPending
	case "RUNNING":
		return media.StatusProcessing
	case "SUCCEEDED":
		return media.StatusCompleted
	case "FAILED", "CANCELLED":
		return media.StatusFailed
	default:
		return media.StatusPending
	}
}

// runwayRatio maps the common aspect-ratio notation onto Runway's pixel
// pair notation.
func runwayRatio(ratio string) string {
	switch ratio {
	case "16:9":
		return "1280:768"
	case "9:16":
		return "768:1280"
	default:
		return ""
	}
}

// apiErrorDetail extracts a human-readable message from a provider error
// body, falling back to the raw body. Providers disagree on the shape:
// some return a bare error string, others nest a message object.
func apiErrorDetail(raw []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if len(payload.Error) > 0 {
			var s string
			if json.Unmarshal(payload.Error, &s) == nil && s != "" {
				return s
			}
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	if len(raw) == 0 {
		return "empty response body"
	}
	return string(raw)
}
