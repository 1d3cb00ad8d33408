// Package health tracks per-provider call outcomes and owns the quarantine
// policy that removes misbehaving providers from rotation.
package health

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inkwell-ai/mediaflow/internal/metrics"
	"github.com/inkwell-ai/mediaflow/media"
)

// Config tunes the monitor's quarantine behavior.
type Config struct {
	// CooldownPeriod is how long a quarantined provider stays out of
	// rotation before it is eligible again.
	CooldownPeriod time.Duration `json:"cooldown_period" yaml:"cooldown_period"`

	// WindowSize is how many recent calls per provider feed the failure
	// rate calculation.
	WindowSize int `json:"window_size" yaml:"window_size"`

	// MinSamples is the minimum number of windowed calls before the
	// failure rate is acted on.
	MinSamples int `json:"min_samples" yaml:"min_samples"`

	// FailureRateThreshold triggers an automatic quarantine when the
	// windowed failure rate reaches it.
	FailureRateThreshold float64 `json:"failure_rate_threshold" yaml:"failure_rate_threshold"`

	// MaxRecentRecords bounds the in-memory record ring kept for
	// dashboard projections.
	MaxRecentRecords int `json:"max_recent_records" yaml:"max_recent_records"`
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		CooldownPeriod:       30 * time.Minute,
		WindowSize:           20,
		MinSamples:           10,
		FailureRateThreshold: 0.5,
		MaxRecentRecords:     200,
	}
}

// QuarantineEntry describes one active quarantine.
type QuarantineEntry struct {
	ProviderID    string    `json:"provider_id"`
	Reason        string    `json:"reason"`
	QuarantinedAt time.Time `json:"quarantined_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ProviderStats is a point-in-time projection of one provider's window.
type ProviderStats struct {
	ProviderID     string        `json:"provider_id"`
	TotalCalls     int64         `json:"total_calls"`
	TotalFailures  int64         `json:"total_failures"`
	WindowCalls    int           `json:"window_calls"`
	WindowFailures int           `json:"window_failures"`
	FailureRate    float64       `json:"failure_rate"`
	AvgLatency     time.Duration `json:"avg_latency"`
	Quarantined    bool          `json:"quarantined"`
}

// HealthRecord is the persisted form of one call observation.
type HealthRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProviderID   string    `gorm:"index;size:64" json:"provider_id"`
	Capability   string    `gorm:"size:32" json:"capability"`
	RequestID    string    `gorm:"index;size:64" json:"request_id"`
	Success      bool      `json:"success"`
	LatencyMs    int64     `json:"latency_ms"`
	ErrorCode    string    `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage string    `gorm:"size:512" json:"error_message,omitempty"`
	Cost         float64   `json:"cost"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (HealthRecord) TableName() string { return "health_records" }

type windowEntry struct {
	success bool
	latency time.Duration
}

type providerWindow struct {
	entries       []windowEntry
	totalCalls    int64
	totalFailures int64
}

// Monitor implements media.HealthMonitor. It keeps quarantine state and a
// per-provider rolling window in memory, and persists individual records
// to the database on a best-effort basis.
type Monitor struct {
	cfg       Config
	db        *gorm.DB
	collector *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.RWMutex
	quarantined map[string]*QuarantineEntry
	windows     map[string]*providerWindow
	recent      []HealthRecord
}

var _ media.HealthMonitor = (*Monitor)(nil)

// NewMonitor creates a monitor. db and collector may be nil; persistence
// and metrics are then skipped. A nil logger falls back to a no-op logger.
func NewMonitor(cfg Config, db *gorm.DB, collector *metrics.Collector, logger *zap.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.CooldownPeriod <= 0 {
		cfg.CooldownPeriod = def.CooldownPeriod
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.FailureRateThreshold <= 0 || cfg.FailureRateThreshold > 1 {
		cfg.FailureRateThreshold = def.FailureRateThreshold
	}
	if cfg.MaxRecentRecords <= 0 {
		cfg.MaxRecentRecords = def.MaxRecentRecords
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Monitor{
		cfg:         cfg,
		db:          db,
		collector:   collector,
		logger:      logger.With(zap.String("component", "health_monitor")),
		now:         time.Now,
		quarantined: make(map[string]*QuarantineEntry),
		windows:     make(map[string]*providerWindow),
	}
}

// AutoMigrate creates the health_records table.
func (m *Monitor) AutoMigrate() error {
	if m.db == nil {
		return nil
	}
	return m.db.AutoMigrate(&HealthRecord{})
}

// RecordRequest appends one call observation. It never fails the caller:
// persistence errors are logged and dropped.
func (m *Monitor) RecordRequest(providerID string, capability media.Capability, requestID string, obs media.CallObservation, tags map[string]string) {
	record := HealthRecord{
		ProviderID:   providerID,
		Capability:   string(capability),
		RequestID:    requestID,
		Success:      obs.Success,
		LatencyMs:    obs.Latency.Milliseconds(),
		ErrorCode:    obs.ErrorCode,
		ErrorMessage: obs.ErrorMessage,
		Cost:         obs.CostIncurred,
		CreatedAt:    m.now(),
	}

	m.mu.Lock()
	w := m.windows[providerID]
	if w == nil {
		w = &providerWindow{}
		m.windows[providerID] = w
	}
	w.totalCalls++
	if !obs.Success {
		w.totalFailures++
	}
	w.entries = append(w.entries, windowEntry{success: obs.Success, latency: obs.Latency})
	if len(w.entries) > m.cfg.WindowSize {
		w.entries = w.entries[len(w.entries)-m.cfg.WindowSize:]
	}

	m.recent = append(m.recent, record)
	if len(m.recent) > m.cfg.MaxRecentRecords {
		m.recent = m.recent[len(m.recent)-m.cfg.MaxRecentRecords:]
	}

	trippedReason := ""
	if !obs.Success {
		if rate, samples := windowFailureRate(w.entries); samples >= m.cfg.MinSamples && rate >= m.cfg.FailureRateThreshold {
			if _, already := m.activeQuarantineLocked(providerID); !already {
				trippedReason = failureRateReason(rate, samples)
				m.quarantineLocked(providerID, trippedReason)
			}
		}
	}
	m.mu.Unlock()

	if m.collector != nil {
		m.collector.RecordProviderRequest(providerID, string(capability), obs.Success, obs.Latency)
		if trippedReason != "" {
			m.collector.RecordQuarantine(providerID)
		}
	}
	if trippedReason != "" {
		m.logger.Warn("provider auto-quarantined",
			zap.String("provider", providerID),
			zap.String("reason", trippedReason))
	}

	if m.db != nil {
		go func() {
			if err := m.db.Create(&record).Error; err != nil {
				m.logger.Warn("failed to persist health record",
					zap.String("provider", providerID),
					zap.Error(err))
			}
		}()
	}
}

// IsProviderQuarantined reports whether the provider is currently out of
// rotation. Expired quarantines are cleared lazily.
func (m *Monitor) IsProviderQuarantined(providerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, active := m.activeQuarantineLocked(providerID)
	return active
}

// QuarantineProvider removes the provider from rotation for the cooldown
// period. Re-quarantining an already quarantined provider extends the
// cooldown from now.
func (m *Monitor) QuarantineProvider(providerID, reason string) {
	m.mu.Lock()
	m.quarantineLocked(providerID, reason)
	m.mu.Unlock()

	if m.collector != nil {
		m.collector.RecordQuarantine(providerID)
	}
	m.logger.Warn("provider quarantined",
		zap.String("provider", providerID),
		zap.String("reason", reason),
		zap.Duration("cooldown", m.cfg.CooldownPeriod))
}

// ReleaseProvider lifts a quarantine before its cooldown expires.
func (m *Monitor) ReleaseProvider(providerID string) {
	m.mu.Lock()
	delete(m.quarantined, providerID)
	m.mu.Unlock()
	m.logger.Info("provider released from quarantine", zap.String("provider", providerID))
}

// QuarantineEntries returns the currently active quarantines.
func (m *Monitor) QuarantineEntries() []QuarantineEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]QuarantineEntry, 0, len(m.quarantined))
	for id := range m.quarantined {
		if e, active := m.activeQuarantineLocked(id); active {
			entries = append(entries, *e)
		}
	}
	return entries
}

// Stats returns a snapshot of every observed provider's window.
func (m *Monitor) Stats() []ProviderStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]ProviderStats, 0, len(m.windows))
	for id, w := range m.windows {
		var failures int
		var totalLatency time.Duration
		for _, e := range w.entries {
			if !e.success {
				failures++
			}
			totalLatency += e.latency
		}
		s := ProviderStats{
			ProviderID:     id,
			TotalCalls:     w.totalCalls,
			TotalFailures:  w.totalFailures,
			WindowCalls:    len(w.entries),
			WindowFailures: failures,
		}
		if len(w.entries) > 0 {
			s.FailureRate = float64(failures) / float64(len(w.entries))
			s.AvgLatency = totalLatency / time.Duration(len(w.entries))
		}
		_, s.Quarantined = m.activeQuarantineLocked(id)
		stats = append(stats, s)
	}
	return stats
}

// RecentRecords returns up to limit of the most recent in-memory records,
// newest first.
func (m *Monitor) RecentRecords(limit int) []HealthRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.recent) {
		limit = len(m.recent)
	}
	out := make([]HealthRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = m.recent[len(m.recent)-1-i]
	}
	return out
}

func (m *Monitor) quarantineLocked(providerID, reason string) {
	now := m.now()
	m.quarantined[providerID] = &QuarantineEntry{
		ProviderID:    providerID,
		Reason:        reason,
		QuarantinedAt: now,
		ExpiresAt:     now.Add(m.cfg.CooldownPeriod),
	}
}

// activeQuarantineLocked returns the entry if still in cooldown, clearing
// expired entries as a side effect. Callers must hold mu for writing.
func (m *Monitor) activeQuarantineLocked(providerID string) (*QuarantineEntry, bool) {
	e, ok := m.quarantined[providerID]
	if !ok {
		return nil, false
	}
	if m.now().After(e.ExpiresAt) {
		delete(m.quarantined, providerID)
		m.logger.Info("quarantine cooldown expired", zap.String("provider", providerID))
		return nil, false
	}
	return e, true
}

func windowFailureRate(entries []windowEntry) (rate float64, samples int) {
	samples = len(entries)
	if samples == 0 {
		return 0, 0
	}
	failures := 0
	for _, e := range entries {
		if !e.success {
			failures++
		}
	}
	return float64(failures) / float64(samples), samples
}

func failureRateReason(rate float64, samples int) string {
	return fmt.Sprintf("failure rate %.0f%% over last %d calls", rate*100, samples)
}
