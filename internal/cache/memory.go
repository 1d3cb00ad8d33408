package cache

import (
	"sync"

	"github.com/inkwell-ai/mediaflow/media"
)

// Memory is an in-process outcome cache for deployments without Redis.
// Entries live until process exit; terminal outcomes are small and
// bounded by task volume, so no eviction is done.
type Memory struct {
	mu       sync.RWMutex
	outcomes map[string]media.GenerationOutcome
}

var _ media.StatusCache = (*Memory)(nil)

// NewMemory creates an in-process outcome cache.
func NewMemory() *Memory {
	return &Memory{outcomes: make(map[string]media.GenerationOutcome)}
}

// GetOutcome returns the cached terminal outcome for a task, if present.
func (m *Memory) GetOutcome(providerID, taskRef string) (*media.GenerationOutcome, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out, ok := m.outcomes[outcomeKey(providerID, taskRef)]
	if !ok {
		return nil, false
	}
	copied := out
	return &copied, true
}

// PutOutcome caches a terminal outcome. Non-terminal outcomes are ignored.
func (m *Memory) PutOutcome(providerID, taskRef string, outcome *media.GenerationOutcome) {
	if outcome == nil || !outcome.Status.IsTerminal() {
		return
	}
	m.mu.Lock()
	m.outcomes[outcomeKey(providerID, taskRef)] = *outcome
	m.mu.Unlock()
}
