package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
)

// KlingProvider adapts the Kling video API. Task endpoints are split by
// kind (text2video vs image2video), so the task reference encodes the
// kind alongside the id.
type KlingProvider struct {
	cfg    KlingConfig
	client *http.Client
	logger *zap.Logger
}

var _ media.Provider = (*KlingProvider)(nil)

// NewKlingProvider creates a Kling adapter.
func NewKlingProvider(cfg KlingConfig, logger *zap.Logger) *KlingProvider {
	def := DefaultKlingConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &KlingProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", "kling")),
	}
}

func (p *KlingProvider) ID() string                   { return "kling" }
func (p *KlingProvider) DisplayName() string          { return "Kling" }
func (p *KlingProvider) Capability() media.Capability { return media.CapabilityVideo }
func (p *KlingProvider) IsConfigured() bool {
	return p.cfg.AccessKey != "" && p.cfg.SecretKey != ""
}

func (p *KlingProvider) Constraints() media.Constraints {
	return media.Constraints{
		AllowedDurations:    []int{5, 10},
		AllowedAspectRatios: []string{"16:9", "9:16", "1:1"},
	}
}

// signToken mints the short-lived HS256 JWT Kling expects: issuer is the
// access key, valid for 30 minutes, with a small clock-skew allowance.
func (p *KlingProvider) signToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": p.cfg.AccessKey,
		"exp": now.Add(30 * time.Minute).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
	})
	return token.SignedString([]byte(p.cfg.SecretKey))
}

type klingGenerateRequest struct {
	Model          string `json:"model_name"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Image          string `json:"image,omitempty"`
	Duration       string `json:"duration,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
}

type klingEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    struct {
			Videos []struct {
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// Generate submits one task. Continuations go through image2video with
// the previous artifact as the seed frame.
func (p *KlingProvider) Generate(ctx context.Context, req *media.GenerationRequest) (*media.GenerationOutcome, error) {
	kind := "text2video"
	body := klingGenerateRequest{
		Model:          p.cfg.Model,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		AspectRatio:    req.AspectRatio,
	}
	if req.DurationSeconds > 0 {
		body.Duration = fmt.Sprintf("%d", req.DurationSeconds)
	}
	if req.ExtendFromRef != "" {
		kind = "image2video"
		body.Image = req.ExtendFromRef
	}

	var env klingEnvelope
	if err := p.doJSON(ctx, http.MethodPost, "/v1/videos/"+kind, body, &env); err != nil {
		return &media.GenerationOutcome{
			Success: false,
			Status:  media.StatusFailed,
			Error:   err.Error(),
		}, nil
	}
	if env.Code != 0 {
		return &media.GenerationOutcome{
			Success: false,
			Status:  media.StatusFailed,
			Error:   fmt.Sprintf("kling error %d: %s", env.Code, env.Message),
		}, nil
	}

	taskRef := kind + "/" + env.Data.TaskID
	p.logger.Debug("task submitted", zap.String("task_ref", taskRef))
	return &media.GenerationOutcome{
		Success: true,
		Status:  klingStatus(env.Data.TaskStatus),
		TaskRef: taskRef,
	}, nil
}

// CheckStatus fetches task state. taskRef is "<kind>/<task_id>".
func (p *KlingProvider) CheckStatus(ctx context.Context, taskRef string) (*media.GenerationOutcome, error) {
	kind, id := splitKlingRef(taskRef)

	var env klingEnvelope
	if err := p.doJSON(ctx, http.MethodGet, "/v1/videos/"+kind+"/"+id, nil, &env); err != nil {
		return nil, err
	}
	if env.Code != 0 {
		return nil, fmt.Errorf("kling error %d: %s", env.Code, env.Message)
	}

	out := &media.GenerationOutcome{
		Status:  klingStatus(env.Data.TaskStatus),
		TaskRef: taskRef,
	}
	switch out.Status {
	case media.StatusCompleted:
		out.Success = true
		if videos := env.Data.TaskResult.Videos; len(videos) > 0 {
			out.ArtifactURL = videos[0].URL
		}
	case media.StatusFailed:
		out.Error = env.Data.TaskStatusMsg
		if out.Error == "" {
			out.Error = "task failed without a reason"
		}
	}
	return out, nil
}

func (p *KlingProvider) WaitForCompletion(ctx context.Context, taskRef string, maxWait, pollInterval time.Duration) (*media.GenerationOutcome, error) {
	return media.PollUntilDone(ctx, func(ctx context.Context) (*media.GenerationOutcome, error) {
		return p.CheckStatus(ctx, taskRef)
	}, maxWait, pollInterval)
}

func (p *KlingProvider) doJSON(ctx context.Context, method, path string, in, out any) error {
	token, err := p.signToken()
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

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
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("kling request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("kling returned HTTP %d: %s", resp.StatusCode, apiErrorDetail(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func klingStatus(s string) media.TaskStatus {
	switch s {
	case "submitted":
		return media.StatusPending
	case "processing":
		return media.StatusProcessing
	case "succeed":
		return media.StatusCompleted
	case "failed":
		return media.StatusFailed
	default:
		return media.StatusPending
	}
}

func splitKlingRef(taskRef string) (kind, id string) {
	if i := strings.IndexByte(taskRef, '/'); i > 0 {
		return taskRef[:i], taskRef[i+1:]
	}
	return "text2video", taskRef
}
