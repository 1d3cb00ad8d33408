package media

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// GenerateOptions carries the per-call flags of a paid generation entry point.
type GenerateOptions struct {
	// BypassBudget skips the budget gate. Intended for internal retries of
	// already-approved work, not for ordinary callers.
	BypassBudget bool
	// ContentID, when set, requires the content approval gate to pass.
	ContentID string
	// ClientID attributes tracked cost to a tenant.
	ClientID string
	// Operation overrides the billable operation kind. Defaults to the
	// capability's base generation operation.
	Operation OperationKind
}

// Engine is the paid-call entry point: every generation passes the budget
// gate first, then the fallback orchestrator, and accepted work is costed.
type Engine struct {
	orch     *Orchestrator
	registry *Registry
	health   HealthMonitor
	budget   BudgetGate
	cache    StatusCache
	logger   *zap.Logger

	statusGroup singleflight.Group
}

// NewEngine wires the orchestrator with its budget and health collaborators.
// cache may be nil; status checks then always hit the provider.
func NewEngine(registry *Registry, health HealthMonitor, budget BudgetGate, cache StatusCache, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		orch:     NewOrchestrator(registry, health, logger),
		registry: registry,
		health:   health,
		budget:   budget,
		cache:    cache,
		logger:   logger,
	}
}

// Generate runs one budget-gated generation with provider fallback.
//
// Gate order: budget first (unless bypassed), then content approval when a
// content id is supplied. A gate rejection attempts no provider and is
// flagged distinctly so callers can tell "spend capped" from "service down".
func (e *Engine) Generate(ctx context.Context, capability Capability, enabled []EnabledProvider, req *GenerationRequest, opts GenerateOptions) *GenerationResult {
	op := opts.Operation
	if op == "" {
		op = DefaultOperation(capability)
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
		req.RequestID = requestID
	}

	if !opts.BypassBudget {
		// The gate is checked per candidate set, not per provider: one
		// rejection blocks the whole run before any candidate is touched.
		check := e.budget.CheckBudget(firstEnabledID(enabled), op)
		if !check.Allowed {
			e.logger.Warn("generation blocked by budget gate",
				zap.String("operation", string(op)),
				zap.String("reason", check.Reason),
				zap.Float64("daily_spent", check.DailySpent),
				zap.Float64("daily_limit", check.DailyLimit))
			return &GenerationResult{
				RequestID:     requestID,
				BudgetBlocked: true,
				Reason:        check.Reason,
				FallbackResult: FallbackResult{
					Success:      false,
					ErrorMessage: check.Reason,
				},
			}
		}
	}

	if opts.ContentID != "" {
		approval := e.budget.CheckContentApproval(opts.ContentID)
		if !approval.Allowed {
			e.logger.Warn("generation blocked pending approval",
				zap.String("content_id", opts.ContentID),
				zap.String("reason", approval.Reason))
			return &GenerationResult{
				RequestID:        requestID,
				ApprovalRequired: true,
				Reason:           approval.Reason,
				FallbackResult: FallbackResult{
					Success:      false,
					ErrorMessage: approval.Reason,
				},
			}
		}
	}

	res := e.orch.AttemptWithFallback(ctx, capability, enabled, req)
	e.trackAccepted(res.ProviderID, op, res.Outcome, opts, requestID)

	return &GenerationResult{RequestID: requestID, FallbackResult: *res}
}

// Extend runs a continuation on the provider that produced the source
// artifact. There is no fallback: an extension is causally bound to its
// provider. Budget and quarantine are still consulted, and a hard failure
// still quarantines.
func (e *Engine) Extend(ctx context.Context, providerID string, req *GenerationRequest, opts GenerateOptions) *GenerationResult {
	op := opts.Operation
	if op == "" {
		op = OpVideoExtend
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
		req.RequestID = requestID
	}

	if req.ExtendFromRef == "" {
		return &GenerationResult{
			RequestID: requestID,
			FallbackResult: FallbackResult{
				Success:      false,
				ErrorMessage: "extend requires a source artifact reference",
			},
		}
	}

	if !opts.BypassBudget {
		check := e.budget.CheckBudget(providerID, op)
		if !check.Allowed {
			return &GenerationResult{
				RequestID:     requestID,
				BudgetBlocked: true,
				Reason:        check.Reason,
				FallbackResult: FallbackResult{
					Success:      false,
					ErrorMessage: check.Reason,
				},
			}
		}
	}

	p, ok := e.registry.Get(providerID)
	if !ok {
		return &GenerationResult{
			RequestID: requestID,
			FallbackResult: FallbackResult{
				Success:      false,
				ErrorMessage: fmt.Sprintf("unknown provider %q", providerID),
			},
		}
	}
	if e.health.IsProviderQuarantined(providerID) {
		return &GenerationResult{
			RequestID: requestID,
			FallbackResult: FallbackResult{
				Success:      false,
				ErrorMessage: fmt.Sprintf("provider %q is quarantined", providerID),
			},
		}
	}

	if lim := e.registry.Limiter(providerID); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return &GenerationResult{
				RequestID: requestID,
				FallbackResult: FallbackResult{
					Success:      false,
					ErrorMessage: fmt.Sprintf("cancelled while rate-limited: %v", err),
				},
			}
		}
	}

	start := time.Now()
	outcome := safeGenerate(ctx, p, req)
	latency := time.Since(start)

	success := outcome.Success && outcome.Status != StatusFailed
	e.health.RecordRequest(providerID, p.Capability(), requestID, CallObservation{
		Success:      success,
		Latency:      latency,
		ErrorMessage: outcome.Error,
	}, req.Metadata)

	if !success && IsHardFailure(outcome.Error) {
		e.health.QuarantineProvider(providerID, outcome.Error)
	}

	e.trackAccepted(providerID, op, outcome, opts, requestID)

	return &GenerationResult{
		RequestID: requestID,
		FallbackResult: FallbackResult{
			Success:      success,
			ProviderID:   providerID,
			Outcome:      outcome,
			Attempts:     1,
			ErrorMessage: outcome.Error,
		},
	}
}

// CheckStatus returns the current state of a task, answering from the
// terminal-outcome cache when possible and deduplicating concurrent polls
// for the same task.
func (e *Engine) CheckStatus(ctx context.Context, providerID, taskRef string) (*GenerationOutcome, error) {
	if out, ok := e.cachedOutcome(providerID, taskRef); ok {
		return out, nil
	}

	p, ok := e.registry.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}
	if e.health.IsProviderQuarantined(providerID) {
		return nil, fmt.Errorf("%w: %s", ErrProviderQuarantined, providerID)
	}

	key := providerID + "/" + taskRef
	v, err, _ := e.statusGroup.Do(key, func() (interface{}, error) {
		out, err := p.CheckStatus(ctx, taskRef)
		if err != nil {
			return nil, err
		}
		e.cacheTerminal(providerID, taskRef, out)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*GenerationOutcome), nil
}

// WaitForCompletion polls a task to a terminal state within the wall-clock
// budget, short-circuiting on a cached terminal outcome.
func (e *Engine) WaitForCompletion(ctx context.Context, providerID, taskRef string, maxWait, pollInterval time.Duration) (*GenerationOutcome, error) {
	if out, ok := e.cachedOutcome(providerID, taskRef); ok {
		return out, nil
	}

	p, ok := e.registry.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
	}

	out, err := p.WaitForCompletion(ctx, taskRef, maxWait, pollInterval)
	if err != nil {
		return nil, err
	}
	e.cacheTerminal(providerID, taskRef, out)
	return out, nil
}

// trackAccepted records estimated cost for any outcome the provider
// accepted (task reference or artifact). Providers charge for accepted
// work, so cost is not deferred until completion.
func (e *Engine) trackAccepted(providerID string, op OperationKind, outcome *GenerationOutcome, opts GenerateOptions, requestID string) {
	if providerID == "" || !outcome.Accepted() {
		return
	}
	amount := e.budget.EstimatedCost(providerID, op)
	e.budget.TrackCost(providerID, op, amount, opts.ClientID, map[string]string{
		"request_id": requestID,
		"task_ref":   outcome.TaskRef,
	})
}

func (e *Engine) cachedOutcome(providerID, taskRef string) (*GenerationOutcome, bool) {
	if e.cache == nil || taskRef == "" {
		return nil, false
	}
	return e.cache.GetOutcome(providerID, taskRef)
}

func (e *Engine) cacheTerminal(providerID, taskRef string, out *GenerationOutcome) {
	if e.cache == nil || out == nil || taskRef == "" || !out.Status.IsTerminal() {
		return
	}
	e.cache.PutOutcome(providerID, taskRef, out)
}

// firstEnabledID picks the highest-priority enabled provider id for the
// pre-call budget consultation. Empty when nothing is enabled.
func firstEnabledID(enabled []EnabledProvider) string {
	sorted := sortEnabled(enabled)
	if len(sorted) == 0 {
		return ""
	}
	return sorted[0].ProviderID
}
