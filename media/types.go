// Package media provides the provider orchestration and resilience engine
// for generative-media backends: priority-ordered fallback across
// capability-equivalent providers, failure classification with quarantine,
// budget gating, and task polling primitives.
package media

import (
	"time"
)

// Capability identifies a class of generative-media work a provider can do.
type Capability string

const (
	CapabilityVideo  Capability = "video"
	CapabilityImage  Capability = "image"
	CapabilitySpeech Capability = "speech"
)

// OperationKind identifies a billable operation for budget accounting.
type OperationKind string

const (
	OpVideoGenerate    OperationKind = "video.generate"
	OpVideoExtend      OperationKind = "video.extend"
	OpImageGenerate    OperationKind = "image.generate"
	OpSpeechSynthesize OperationKind = "speech.synthesize"
)

// DefaultOperation returns the billable operation for a base generation
// in the given capability.
func DefaultOperation(c Capability) OperationKind {
	switch c {
	case CapabilityVideo:
		return OpVideoGenerate
	case CapabilityImage:
		return OpImageGenerate
	case CapabilitySpeech:
		return OpSpeechSynthesize
	default:
		return OperationKind(string(c) + ".generate")
	}
}

// TaskStatus is the lifecycle state of a generation task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// GenerationRequest is the provider-agnostic request for one generation call.
type GenerationRequest struct {
	RequestID       string            `json:"request_id,omitempty"`
	Prompt          string            `json:"prompt"`
	NegativePrompt  string            `json:"negative_prompt,omitempty"`
	Model           string            `json:"model,omitempty"`
	DurationSeconds int               `json:"duration_seconds,omitempty"`
	AspectRatio     string            `json:"aspect_ratio,omitempty"` // 16:9, 9:16, 1:1
	Resolution      string            `json:"resolution,omitempty"`
	Voice           string            `json:"voice,omitempty"` // speech only
	WithAudio       bool              `json:"with_audio,omitempty"`
	Seed            int64             `json:"seed,omitempty"`

	// ExtendFromRef seeds a continuation from a previously generated
	// artifact. Empty for base generations.
	ExtendFromRef string `json:"extend_from_ref,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// GenerationOutcome is the uniform result shape every provider call returns.
// Completed and failed are the terminal states.
type GenerationOutcome struct {
	Success     bool       `json:"success"`
	Status      TaskStatus `json:"status"`
	TaskRef     string     `json:"task_ref,omitempty"`
	ArtifactURL string     `json:"artifact_url,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ArtifactRef returns the reference a follow-up step should chain from:
// the artifact URL when present, otherwise the task reference.
func (o *GenerationOutcome) ArtifactRef() string {
	if o == nil {
		return ""
	}
	if o.ArtifactURL != "" {
		return o.ArtifactURL
	}
	return o.TaskRef
}

// Accepted reports whether the provider accepted the work. Providers charge
// for accepted tasks, so cost is tracked from this point, not completion.
func (o *GenerationOutcome) Accepted() bool {
	return o != nil && (o.TaskRef != "" || o.ArtifactURL != "")
}

// Constraints declares the hard limits a provider imposes on requests.
// A request that violates a constraint is skipped, never attempted.
type Constraints struct {
	// AllowedDurations lists the clip durations, in seconds, the provider
	// accepts. Empty means any duration.
	AllowedDurations []int `json:"allowed_durations,omitempty"`
	// AllowedAspectRatios lists accepted aspect ratios. Empty means any.
	AllowedAspectRatios []string `json:"allowed_aspect_ratios,omitempty"`
}

// Allows reports whether the request satisfies the constraints.
func (c Constraints) Allows(req *GenerationRequest) bool {
	if req == nil {
		return true
	}
	if len(c.AllowedDurations) > 0 && req.DurationSeconds > 0 {
		ok := false
		for _, d := range c.AllowedDurations {
			if d == req.DurationSeconds {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(c.AllowedAspectRatios) > 0 && req.AspectRatio != "" {
		ok := false
		for _, r := range c.AllowedAspectRatios {
			if r == req.AspectRatio {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// EnabledProvider is the caller-supplied (typically tenant-configured)
// rotation entry for one provider. Lower priority is tried first.
type EnabledProvider struct {
	ProviderID string `json:"provider_id" yaml:"provider_id"`
	Priority   int    `json:"priority" yaml:"priority"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
}

// CallObservation is what a call site reports to the health monitor about
// one provider call.
type CallObservation struct {
	Success      bool
	Latency      time.Duration
	ErrorCode    string
	ErrorMessage string
	CostIncurred float64
}

// HealthMonitor is the quarantine/circuit-breaker collaborator. The
// orchestrator consults quarantine status before every attempt and requests
// quarantine on hard failures; the monitor owns cooldown policy and any
// statistical auto-quarantine thresholds.
type HealthMonitor interface {
	// RecordRequest appends one health record. Best-effort: implementations
	// must never fail the caller.
	RecordRequest(providerID string, capability Capability, requestID string, obs CallObservation, tags map[string]string)

	// IsProviderQuarantined reports whether the provider is currently
	// excluded from rotation.
	IsProviderQuarantined(providerID string) bool

	// QuarantineProvider removes the provider from rotation for the
	// monitor's cooldown period.
	QuarantineProvider(providerID, reason string)
}

// BudgetCheck is the result of a pre-call budget consultation. It is
// computed at call time and does not mutate gate state.
type BudgetCheck struct {
	Allowed    bool    `json:"allowed"`
	Reason     string  `json:"reason,omitempty"`
	DailySpent float64 `json:"daily_spent"`
	DailyLimit float64 `json:"daily_limit"`
}

// ApprovalCheck is the result of a per-content human-approval consultation.
type ApprovalCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// BudgetGate is the spend-control collaborator consulted before every paid
// call and updated after every accepted one.
type BudgetGate interface {
	CheckBudget(providerID string, op OperationKind) BudgetCheck
	CheckContentApproval(contentID string) ApprovalCheck
	TrackCost(providerID string, op OperationKind, amount float64, clientID string, metadata map[string]string)
	EstimatedCost(providerID string, op OperationKind) float64
}

// StatusCache caches terminal task outcomes so repeated status checks after
// completion are answered without another provider round trip.
type StatusCache interface {
	GetOutcome(providerID, taskRef string) (*GenerationOutcome, bool)
	PutOutcome(providerID, taskRef string, outcome *GenerationOutcome)
}

// FallbackResult is what one fallback orchestration run returns.
type FallbackResult struct {
	Success    bool               `json:"success"`
	ProviderID string             `json:"provider_id,omitempty"`
	Outcome    *GenerationOutcome `json:"outcome,omitempty"`
	// Attempts counts providers actually invoked; skipped candidates
	// (quarantined, unconfigured, constraint-violating) are excluded.
	Attempts     int    `json:"attempts"`
	ErrorMessage string `json:"error,omitempty"`
}

// GenerationResult is the caller-facing result of a budget-gated generation.
// Exactly one of the three shapes reaches the caller: success with artifact,
// partial/failed with reason, or a distinct pre-call gate rejection.
type GenerationResult struct {
	FallbackResult

	RequestID string `json:"request_id"`

	// BudgetBlocked marks a pre-call budget rejection: no provider was
	// attempted and the failure is a spend cap, not a provider malfunction.
	BudgetBlocked bool `json:"budget_blocked,omitempty"`
	// ApprovalRequired marks a pre-call content-approval rejection.
	ApprovalRequired bool   `json:"approval_required,omitempty"`
	Reason           string `json:"reason,omitempty"`
}
