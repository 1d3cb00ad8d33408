package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
	"github.com/inkwell-ai/mediaflow/media/chain"
)

// GenerateHandler serves the generation, chain and task status endpoints.
type GenerateHandler struct {
	engine   *media.Engine
	builder  *chain.Builder
	defaults []media.EnabledProvider
	chainCfg chain.Config
	logger   *zap.Logger
}

// NewGenerateHandler creates the handler. defaults is the configured
// provider rotation used when a request carries no provider list, and
// chainCfg carries the deployment's chain limits; zero values fall back to
// chain.DefaultConfig. A negative MaxRetries disables per-scene retries
// (zero means unset).
func NewGenerateHandler(engine *media.Engine, builder *chain.Builder, defaults []media.EnabledProvider, chainCfg chain.Config, logger *zap.Logger) *GenerateHandler {
	base := chain.DefaultConfig()
	if chainCfg.MaxHops > 0 {
		base.MaxHops = chainCfg.MaxHops
	}
	switch {
	case chainCfg.MaxRetries > 0:
		base.MaxRetries = chainCfg.MaxRetries
	case chainCfg.MaxRetries < 0:
		base.MaxRetries = 0
	}
	if chainCfg.RetryDelay > 0 {
		base.RetryDelay = chainCfg.RetryDelay
	}
	if chainCfg.MaxWaitPerStep > 0 {
		base.MaxWaitPerStep = chainCfg.MaxWaitPerStep
	}
	if chainCfg.PollInterval > 0 {
		base.PollInterval = chainCfg.PollInterval
	}
	return &GenerateHandler{
		engine:   engine,
		builder:  builder,
		defaults: defaults,
		chainCfg: base,
		logger:   logger.With(zap.String("handler", "generate")),
	}
}

// GenerateRequest is the POST /api/generate body.
type GenerateRequest struct {
	Capability      string                  `json:"capability"`
	Prompt          string                  `json:"prompt"`
	NegativePrompt  string                  `json:"negative_prompt,omitempty"`
	Model           string                  `json:"model,omitempty"`
	DurationSeconds int                     `json:"duration_seconds,omitempty"`
	AspectRatio     string                  `json:"aspect_ratio,omitempty"`
	Voice           string                  `json:"voice,omitempty"`
	WithAudio       bool                    `json:"with_audio,omitempty"`
	Seed            int64                   `json:"seed,omitempty"`
	Providers       []media.EnabledProvider `json:"providers"`
	ContentID       string                  `json:"content_id,omitempty"`
	ClientID        string                  `json:"client_id,omitempty"`

	// Wait blocks the request until the task reaches a terminal state or
	// WaitSeconds elapses.
	Wait        bool `json:"wait,omitempty"`
	WaitSeconds int  `json:"wait_seconds,omitempty"`
}

// Generate handles POST /api/generate.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	capability := media.Capability(req.Capability)
	switch capability {
	case media.CapabilityVideo, media.CapabilityImage, media.CapabilitySpeech:
	default:
		WriteErrorMessage(w, http.StatusBadRequest, media.ErrCodeInvalidRequest,
			"capability must be one of: video, image, speech", h.logger)
		return
	}
	if req.Prompt == "" {
		WriteErrorMessage(w, http.StatusBadRequest, media.ErrCodeInvalidRequest,
			"prompt is required", h.logger)
		return
	}
	providers := req.Providers
	if len(providers) == 0 {
		providers = h.defaults
	}
	if len(providers) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, media.ErrCodeInvalidRequest,
			"at least one provider is required", h.logger)
		return
	}

	genReq := &media.GenerationRequest{
		Prompt:          req.Prompt,
		NegativePrompt:  req.NegativePrompt,
		Model:           req.Model,
		DurationSeconds: req.DurationSeconds,
		AspectRatio:     req.AspectRatio,
		Voice:           req.Voice,
		WithAudio:       req.WithAudio,
		Seed:            req.Seed,
	}
	opts := media.GenerateOptions{
		ContentID: req.ContentID,
		ClientID:  req.ClientID,
	}

	result := h.engine.Generate(r.Context(), capability, providers, genReq, opts)

	if req.Wait && result.Success && result.Outcome != nil &&
		!result.Outcome.Status.IsTerminal() && result.Outcome.TaskRef != "" {
		maxWait := 300 * time.Second
		if req.WaitSeconds > 0 {
			maxWait = time.Duration(req.WaitSeconds) * time.Second
		}
		if final, err := h.engine.WaitForCompletion(r.Context(), result.ProviderID, result.Outcome.TaskRef, maxWait, 0); err == nil {
			result.Outcome = final
			result.Success = final.Success
			if final.Error != "" {
				result.ErrorMessage = final.Error
			}
		}
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
		if result.BudgetBlocked {
			status = http.StatusPaymentRequired
		} else if result.ApprovalRequired {
			status = http.StatusForbidden
		}
	}
	WriteJSON(w, status, Response{
		Success:   result.Success,
		Data:      result,
		Timestamp: time.Now(),
		RequestID: result.RequestID,
	})
}

// ChainRequest is the POST /api/chain body.
type ChainRequest struct {
	Scenes []chain.SceneDefinition `json:"scenes"`

	// TargetDurationSeconds expands a single prompt into however many
	// scenes the duration needs. Ignored when Scenes is set.
	Prompt                string `json:"prompt,omitempty"`
	TargetDurationSeconds int    `json:"target_duration_seconds,omitempty"`

	Providers   []media.EnabledProvider `json:"providers"`
	Model       string                  `json:"model,omitempty"`
	AspectRatio string                  `json:"aspect_ratio,omitempty"`
	WithAudio   bool                    `json:"with_audio,omitempty"`
	MaxHops     int                     `json:"max_hops,omitempty"`
	MaxRetries  int                     `json:"max_retries,omitempty"`
	ContentID   string                  `json:"content_id,omitempty"`
	ClientID    string                  `json:"client_id,omitempty"`
}

// Chain handles POST /api/chain.
func (h *GenerateHandler) Chain(w http.ResponseWriter, r *http.Request) {
	var req ChainRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	scenes := req.Scenes
	if len(scenes) == 0 && req.Prompt != "" && req.TargetDurationSeconds > 0 {
		n := chain.ScenesNeededForDuration(req.TargetDurationSeconds)
		scenes = make([]chain.SceneDefinition, n)
		for i := range scenes {
			scenes[i] = chain.SceneDefinition{Prompt: req.Prompt}
		}
	}
	if len(scenes) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, media.ErrCodeInvalidRequest,
			"scenes or prompt with target_duration_seconds is required", h.logger)
		return
	}
	providers := req.Providers
	if len(providers) == 0 {
		providers = h.defaults
	}
	if len(providers) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, media.ErrCodeInvalidRequest,
			"at least one provider is required", h.logger)
		return
	}

	cfg := h.chainCfg
	cfg.Providers = providers
	cfg.Model = req.Model
	cfg.WithAudio = req.WithAudio
	cfg.ContentID = req.ContentID
	cfg.ClientID = req.ClientID
	if req.AspectRatio != "" {
		cfg.AspectRatio = req.AspectRatio
	}
	if req.MaxHops > 0 {
		cfg.MaxHops = req.MaxHops
	}
	if req.MaxRetries > 0 {
		cfg.MaxRetries = req.MaxRetries
	}

	result := h.builder.BuildContinuousOutput(r.Context(), scenes, cfg)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	WriteJSON(w, status, Response{
		Success:   result.Success,
		Data:      result,
		Timestamp: time.Now(),
	})
}

// TaskStatus handles GET /api/tasks/{provider}/{ref}.
func (h *GenerateHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	providerID := vars["provider"]
	taskRef := vars["ref"]

	outcome, err := h.engine.CheckStatus(r.Context(), providerID, taskRef)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrUnknownProvider):
			WriteErrorMessage(w, http.StatusNotFound, media.ErrCodeTaskNotFound, err.Error(), h.logger)
		case errors.Is(err, media.ErrProviderQuarantined):
			WriteErrorMessage(w, http.StatusServiceUnavailable, media.ErrCodeProviderUnavailable, err.Error(), h.logger)
		default:
			WriteErrorMessage(w, http.StatusBadGateway, media.ErrCodeUpstreamError, err.Error(), h.logger)
		}
		return
	}

	WriteSuccess(w, outcome)
}
