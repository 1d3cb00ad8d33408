package media

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Orchestrator attempts capability-equivalent providers in priority order,
// consulting the health monitor before each attempt, classifying failures,
// and returning on first success.
type Orchestrator struct {
	registry *Registry
	health   HealthMonitor
	logger   *zap.Logger
}

// NewOrchestrator creates a fallback orchestrator. The health monitor is
// injected; the orchestrator never inspects its internal state, it only
// consults quarantine status and requests quarantine on hard failures.
func NewOrchestrator(registry *Registry, health HealthMonitor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: registry,
		health:   health,
		logger:   logger,
	}
}

// AttemptWithFallback tries the enabled providers for a capability in
// ascending priority order (stable on ties) and returns on the first
// success. Candidates that are unknown, quarantined, unconfigured, or
// constraint-violating are skipped without an attempt or a health record.
// Hard failures quarantine the provider before moving on; soft failures
// move on without penalty.
func (o *Orchestrator) AttemptWithFallback(ctx context.Context, capability Capability, enabled []EnabledProvider, req *GenerationRequest) *FallbackResult {
	candidates := sortEnabled(enabled)
	if len(candidates) == 0 {
		return &FallbackResult{Success: false, ErrorMessage: "no providers enabled"}
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
		req.RequestID = requestID
	}

	attempts := 0
	lastError := ""

	for _, cand := range candidates {
		p, ok := o.registry.Get(cand.ProviderID)
		if !ok || p.Capability() != capability {
			o.logger.Debug("skipping unknown provider",
				zap.String("provider", cand.ProviderID),
				zap.String("capability", string(capability)))
			continue
		}
		if o.health.IsProviderQuarantined(p.ID()) {
			o.logger.Debug("skipping quarantined provider", zap.String("provider", p.ID()))
			continue
		}
		if !p.IsConfigured() {
			o.logger.Debug("skipping unconfigured provider", zap.String("provider", p.ID()))
			continue
		}
		if !p.Constraints().Allows(req) {
			o.logger.Debug("skipping provider on constraint violation",
				zap.String("provider", p.ID()),
				zap.Int("duration", req.DurationSeconds),
				zap.String("aspect_ratio", req.AspectRatio))
			continue
		}

		if lim := o.registry.Limiter(p.ID()); lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return &FallbackResult{
					Success:      false,
					Attempts:     attempts,
					ErrorMessage: fmt.Sprintf("cancelled while rate-limited: %v", err),
				}
			}
		}

		attempts++
		start := time.Now()
		outcome := safeGenerate(ctx, p, req)
		latency := time.Since(start)

		success := outcome.Success && outcome.Status != StatusFailed
		o.recordHealth(p, requestID, CallObservation{
			Success:      success,
			Latency:      latency,
			ErrorMessage: outcome.Error,
		}, req.Metadata)

		if success {
			o.logger.Info("provider succeeded",
				zap.String("provider", p.ID()),
				zap.String("capability", string(capability)),
				zap.Int("attempts", attempts),
				zap.Duration("latency", latency))
			return &FallbackResult{
				Success:    true,
				ProviderID: p.ID(),
				Outcome:    outcome,
				Attempts:   attempts,
			}
		}

		lastError = outcome.Error
		if lastError == "" {
			lastError = "provider returned unsuccessful outcome"
		}

		class := ClassifyFailure(lastError)
		o.logger.Warn("provider failed",
			zap.String("provider", p.ID()),
			zap.String("class", class.String()),
			zap.String("error", lastError))
		if class == FailureHard {
			o.health.QuarantineProvider(p.ID(), lastError)
		}
	}

	msg := fmt.Sprintf("All providers failed. Last error: %s", lastError)
	if attempts == 0 && lastError == "" {
		msg = "no eligible providers: all candidates skipped"
	}
	return &FallbackResult{
		Success:      false,
		Attempts:     attempts,
		ErrorMessage: msg,
	}
}

// recordHealth isolates metrics recording from the control path: a failure
// to record must never abort or alter the orchestration outcome.
func (o *Orchestrator) recordHealth(p Provider, requestID string, obs CallObservation, tags map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("health recording panicked", zap.Any("panic", r))
		}
	}()
	o.health.RecordRequest(p.ID(), p.Capability(), requestID, obs, tags)
}

// safeGenerate folds transport errors and panics into the uniform outcome
// shape so they flow through the same classification as explicit failures.
func safeGenerate(ctx context.Context, p Provider, req *GenerationRequest) (outcome *GenerationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = &GenerationOutcome{
				Success: false,
				Status:  StatusFailed,
				Error:   fmt.Sprintf("provider panicked: %v", r),
			}
		}
	}()

	out, err := p.Generate(ctx, req)
	if err != nil {
		return &GenerationOutcome{Success: false, Status: StatusFailed, Error: err.Error()}
	}
	if out == nil {
		return &GenerationOutcome{Success: false, Status: StatusFailed, Error: "provider returned no outcome"}
	}
	return out
}

// sortEnabled filters to enabled entries and orders them by ascending
// priority, preserving the original order on ties.
func sortEnabled(enabled []EnabledProvider) []EnabledProvider {
	out := make([]EnabledProvider, 0, len(enabled))
	for _, e := range enabled {
		if e.Enabled {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
