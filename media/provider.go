package media

import (
	"context"
	"fmt"
	"time"
)

// Provider is the uniform adapter every generative-media backend implements.
// One implementation per provider, held in a Registry keyed by id.
type Provider interface {
	// ID returns the stable provider identifier (e.g. "runway").
	ID() string

	// DisplayName returns the human-readable provider name.
	DisplayName() string

	// Capability returns the media class this provider serves.
	Capability() Capability

	// IsConfigured reports whether the provider has the credentials it
	// needs. Unconfigured providers are skipped, never attempted.
	IsConfigured() bool

	// Constraints returns the provider's declared request limits.
	Constraints() Constraints

	// Generate submits one generation. Async providers return a pending
	// outcome carrying a task reference; sync providers return a terminal
	// outcome directly.
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationOutcome, error)

	// CheckStatus returns the current state of a previously submitted task.
	// Calling it after a task reached a terminal state returns the same
	// terminal outcome each time.
	CheckStatus(ctx context.Context, taskRef string) (*GenerationOutcome, error)

	// WaitForCompletion polls CheckStatus on a fixed interval until a
	// terminal status or the wall-clock budget runs out.
	WaitForCompletion(ctx context.Context, taskRef string, maxWait, pollInterval time.Duration) (*GenerationOutcome, error)
}

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 300 * time.Second
)

// PollUntilDone drives a status-check function until it reports a terminal
// outcome or maxWait elapses. It checks once immediately, then on every
// tick. Transient check errors are retained but do not abort the wait.
//
// On timeout the best-known outcome is returned with an explanatory error
// message; the live task on the provider side is not cancelled.
func PollUntilDone(ctx context.Context, check func(ctx context.Context) (*GenerationOutcome, error), maxWait, pollInterval time.Duration) (*GenerationOutcome, error) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := &GenerationOutcome{Status: StatusPending}

	for {
		out, err := check(ctx)
		if err == nil && out != nil {
			last = out
			if out.Status.IsTerminal() {
				return out, nil
			}
		} else if err != nil {
			last = &GenerationOutcome{
				Status: last.Status,
				Error:  err.Error(),
			}
		}

		select {
		case <-ctx.Done():
			return timedOut(last, ctx.Err().Error()), nil
		case <-deadline.C:
			return timedOut(last, fmt.Sprintf("timed out after %s waiting for completion", maxWait)), nil
		case <-ticker.C:
		}
	}
}

// timedOut reports the best-known state as an unsuccessful, non-terminal
// outcome so callers see "still running somewhere" rather than a fake failure.
func timedOut(last *GenerationOutcome, reason string) *GenerationOutcome {
	out := *last
	out.Success = false
	if out.Error == "" {
		out.Error = reason
	}
	return &out
}
