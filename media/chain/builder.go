package chain

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-ai/mediaflow/media"
	"github.com/inkwell-ai/mediaflow/media/retry"
)

// skippedSceneError marks scenes that were never attempted because an
// earlier scene broke the chain.
const skippedSceneError = "Skipped - previous scene failed"

// SceneDefinition is one caller-supplied scene in a chain, immutable for
// the run.
type SceneDefinition struct {
	Prompt string `json:"prompt"`
	// DurationHint suggests a clip length; the provider's constraints
	// still apply.
	DurationHint int `json:"duration_hint,omitempty"`
	// ResetRequired forces a fresh base generation instead of extending
	// the previous artifact (e.g. a cut to a new setting).
	ResetRequired bool `json:"reset_required,omitempty"`
}

// SceneResult records how one scene went.
type SceneResult struct {
	SceneIndex  int    `json:"scene_index"`
	Prompt      string `json:"prompt"`
	Success     bool   `json:"success"`
	ArtifactRef string `json:"artifact_ref,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
}

// ChainResult is the caller-facing outcome of one chain run. A broken chain
// still surfaces the last successful artifact and the per-scene breakdown;
// partial progress is never discarded.
type ChainResult struct {
	Success          bool          `json:"success"`
	HopCount         int           `json:"hop_count"`
	FinalArtifactRef string        `json:"final_artifact_ref,omitempty"`
	ProviderID       string        `json:"provider_id,omitempty"`
	SceneResults     []SceneResult `json:"scene_results"`
	ChainBroken      bool          `json:"chain_broken"`
	BreakReason      string        `json:"break_reason,omitempty"`

	EstimatedDurationSeconds int `json:"estimated_duration_seconds"`

	TotalScenes     int `json:"total_scenes"`
	CompletedScenes int `json:"completed_scenes"`
	FailedScenes    int `json:"failed_scenes"`
	SkippedScenes   int `json:"skipped_scenes"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Config controls one chain run.
type Config struct {
	// MaxHops is the hard ceiling on scenes processed; extra scenes are
	// truncated before the run starts.
	MaxHops int
	// MaxRetries is the retry budget per scene, i.e. up to MaxRetries+1
	// attempts.
	MaxRetries int
	// RetryDelay is the base interval for exponential backoff between
	// attempts of the same scene.
	RetryDelay time.Duration

	// Providers is the tenant's enabled rotation for base generations.
	Providers []media.EnabledProvider

	Model       string
	AspectRatio string
	WithAudio   bool

	// MaxWaitPerStep bounds polling of one scene's task to completion.
	MaxWaitPerStep time.Duration
	// PollInterval is the status polling cadence.
	PollInterval time.Duration

	ContentID    string
	ClientID     string
	BypassBudget bool
}

// DefaultConfig returns the standard chain limits.
func DefaultConfig() Config {
	return Config{
		MaxHops:        20,
		MaxRetries:     2,
		RetryDelay:     5 * time.Second,
		MaxWaitPerStep: 5 * time.Minute,
		PollInterval:   5 * time.Second,
		AspectRatio:    "16:9",
	}
}

// Generator is the slice of the engine the builder consumes: budget-gated
// base generation with fallback, pinned-provider extension, and bounded
// polling.
type Generator interface {
	Generate(ctx context.Context, capability media.Capability, enabled []media.EnabledProvider, req *media.GenerationRequest, opts media.GenerateOptions) *media.GenerationResult
	Extend(ctx context.Context, providerID string, req *media.GenerationRequest, opts media.GenerateOptions) *media.GenerationResult
	WaitForCompletion(ctx context.Context, providerID, taskRef string, maxWait, pollInterval time.Duration) (*media.GenerationOutcome, error)
}

var _ Generator = (*media.Engine)(nil)

// Builder chains generate-or-extend steps into one continuous output.
type Builder struct {
	gen    Generator
	logger *zap.Logger
}

// NewBuilder creates a scene chain builder on top of a generation engine.
func NewBuilder(gen Generator, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{gen: gen, logger: logger}
}

// BuildContinuousOutput runs the scene chain state machine.
//
// Scenes run strictly in order because every extension is causally
// dependent on the previous artifact. Each scene gets up to MaxRetries+1
// attempts with exponential backoff between them. Once a scene exhausts its
// retries the chain is broken: remaining scenes are recorded as skipped,
// not attempted, and the last successful artifact is still returned.
func (b *Builder) BuildContinuousOutput(ctx context.Context, scenes []SceneDefinition, cfg Config) *ChainResult {
	result := &ChainResult{StartedAt: time.Now()}

	if len(scenes) == 0 {
		result.ChainBroken = true
		result.BreakReason = "no scenes provided"
		result.CompletedAt = time.Now()
		return result
	}

	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxWaitPerStep <= 0 {
		cfg.MaxWaitPerStep = 5 * time.Minute
	}

	if len(scenes) > cfg.MaxHops {
		b.logger.Warn("truncating scene list to hop ceiling",
			zap.Int("scenes", len(scenes)),
			zap.Int("max_hops", cfg.MaxHops))
		scenes = scenes[:cfg.MaxHops]
	}
	result.TotalScenes = len(scenes)

	artifactRef := ""
	providerID := ""

	for i, scene := range scenes {
		if result.ChainBroken {
			result.SceneResults = append(result.SceneResults, SceneResult{
				SceneIndex: i,
				Prompt:     scene.Prompt,
				Success:    false,
				Error:      skippedSceneError,
			})
			result.SkippedScenes++
			continue
		}

		shouldReset := scene.ResetRequired || i == 0
		sceneRes := b.runScene(ctx, i, scene, cfg, shouldReset, artifactRef, providerID)
		result.SceneResults = append(result.SceneResults, sceneRes.SceneResult)

		if sceneRes.Success {
			artifactRef = sceneRes.ArtifactRef
			providerID = sceneRes.providerID
			result.HopCount++
			result.CompletedScenes++
			continue
		}

		result.FailedScenes++
		result.ChainBroken = true
		result.BreakReason = sceneRes.Error
		b.logger.Warn("chain broken",
			zap.Int("scene", i),
			zap.Int("attempts", sceneRes.Attempts),
			zap.String("error", sceneRes.Error))
	}

	result.Success = !result.ChainBroken && result.HopCount > 0
	result.FinalArtifactRef = artifactRef
	result.ProviderID = providerID
	result.EstimatedDurationSeconds = EstimateDurationForSceneCount(result.HopCount)
	result.CompletedAt = time.Now()

	b.logger.Info("chain run finished",
		zap.Bool("success", result.Success),
		zap.Int("hops", result.HopCount),
		zap.Int("completed", result.CompletedScenes),
		zap.Int("failed", result.FailedScenes),
		zap.Int("skipped", result.SkippedScenes),
		zap.Int("estimated_duration_s", result.EstimatedDurationSeconds))
	return result
}

type sceneOutcome struct {
	SceneResult
	providerID string
}

// runScene executes one scene step with its bounded retry loop. A step
// attempt that returns a task reference without an immediate artifact is
// polled to completion before being judged.
func (b *Builder) runScene(ctx context.Context, index int, scene SceneDefinition, cfg Config, shouldReset bool, artifactRef, providerID string) sceneOutcome {
	out := sceneOutcome{SceneResult: SceneResult{SceneIndex: index, Prompt: scene.Prompt}}

	maxAttempts := cfg.MaxRetries + 1
	lastErr := ""

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retry.BackoffDelay(cfg.RetryDelay, attempt)
			b.logger.Debug("retrying scene",
				zap.Int("scene", index),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			if err := retry.Sleep(ctx, delay); err != nil {
				lastErr = "cancelled: " + err.Error()
				break
			}
		}
		out.Attempts++

		req := &media.GenerationRequest{
			Prompt:          scene.Prompt,
			Model:           cfg.Model,
			DurationSeconds: scene.DurationHint,
			AspectRatio:     cfg.AspectRatio,
			WithAudio:       cfg.WithAudio,
		}
		opts := media.GenerateOptions{
			ContentID:    cfg.ContentID,
			ClientID:     cfg.ClientID,
			BypassBudget: cfg.BypassBudget,
		}

		var res *media.GenerationResult
		if shouldReset || artifactRef == "" {
			res = b.gen.Generate(ctx, media.CapabilityVideo, cfg.Providers, req, opts)
		} else {
			req.ExtendFromRef = artifactRef
			opts.Operation = media.OpVideoExtend
			res = b.gen.Extend(ctx, providerID, req, opts)
		}

		if res.BudgetBlocked || res.ApprovalRequired {
			// Not a provider malfunction; retrying cannot help.
			lastErr = res.Reason
			break
		}

		outcome := res.Outcome
		if res.Success && outcome != nil && !outcome.Status.IsTerminal() && outcome.TaskRef != "" {
			polled, err := b.gen.WaitForCompletion(ctx, res.ProviderID, outcome.TaskRef, cfg.MaxWaitPerStep, cfg.PollInterval)
			if err != nil {
				outcome = &media.GenerationOutcome{Status: media.StatusFailed, Error: err.Error()}
			} else {
				outcome = polled
			}
		}

		if outcome != nil && outcome.Status == media.StatusCompleted && outcome.ArtifactRef() != "" {
			out.Success = true
			out.ArtifactRef = outcome.ArtifactRef()
			out.providerID = res.ProviderID
			return out
		}

		switch {
		case outcome != nil && outcome.Error != "":
			lastErr = outcome.Error
		case res.ErrorMessage != "":
			lastErr = res.ErrorMessage
		default:
			lastErr = "scene produced no artifact"
		}
	}

	out.Success = false
	out.Error = lastErr
	return out
}
