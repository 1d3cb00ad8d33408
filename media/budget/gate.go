// Package budget enforces daily spend limits and per-content human approval
// before any paid provider call is made.
package budget

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/inkwell-ai/mediaflow/internal/metrics"
	"github.com/inkwell-ai/mediaflow/media"
)

// ApprovalStatus is the lifecycle of one content approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Config tunes the gate.
type Config struct {
	// DefaultDailyLimit is the per-provider daily spend ceiling in USD
	// when no provider-specific limit is set. Zero disables the gate.
	DefaultDailyLimit float64 `json:"default_daily_limit" yaml:"default_daily_limit"`

	// ProviderDailyLimits overrides the default per provider.
	ProviderDailyLimits map[string]float64 `json:"provider_daily_limits" yaml:"provider_daily_limits"`

	// Prices maps an operation to its estimated cost in USD.
	Prices map[media.OperationKind]float64 `json:"prices" yaml:"prices"`

	// ProviderPrices overrides Prices per provider.
	ProviderPrices map[string]map[media.OperationKind]float64 `json:"provider_prices" yaml:"provider_prices"`

	// RequireApproval gates every content-bearing call behind a human
	// approval before spend is allowed.
	RequireApproval bool `json:"require_approval" yaml:"require_approval"`
}

// DefaultConfig returns the gate defaults. The prices mirror the public
// list prices of the wired providers, rounded up.
func DefaultConfig() Config {
	return Config{
		DefaultDailyLimit: 50.0,
		Prices: map[media.OperationKind]float64{
			media.OpVideoGenerate:    0.50,
			media.OpVideoExtend:      0.45,
			media.OpImageGenerate:    0.05,
			media.OpSpeechSynthesize: 0.02,
		},
	}
}

// CostEntry is the persisted form of one accepted spend.
type CostEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProviderID string    `gorm:"index;size:64" json:"provider_id"`
	Operation  string    `gorm:"size:32" json:"operation"`
	Amount     float64   `json:"amount"`
	ClientID   string    `gorm:"index;size:64" json:"client_id,omitempty"`
	Metadata   string    `gorm:"size:1024" json:"metadata,omitempty"`
	Day        string    `gorm:"index;size:10" json:"day"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (CostEntry) TableName() string { return "cost_entries" }

// UsageSnapshot is a point-in-time projection of one provider's spend.
type UsageSnapshot struct {
	ProviderID string  `json:"provider_id"`
	Day        string  `json:"day"`
	Spent      float64 `json:"spent"`
	Limit      float64 `json:"limit"`
	Remaining  float64 `json:"remaining"`
}

type approvalRecord struct {
	status    ApprovalStatus
	updatedAt time.Time
}

// Gate implements media.BudgetGate. Daily spend is tracked in memory per
// provider and resets at the UTC day boundary; accepted spends are also
// appended to the database cost ledger on a best-effort basis.
type Gate struct {
	cfg       Config
	db        *gorm.DB
	collector *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	day       string
	spent     map[string]float64
	approvals map[string]*approvalRecord
}

var _ media.BudgetGate = (*Gate)(nil)

// NewGate creates a gate. db and collector may be nil; the cost ledger and
// metrics are then skipped. A nil logger falls back to a no-op logger.
func NewGate(cfg Config, db *gorm.DB, collector *metrics.Collector, logger *zap.Logger) *Gate {
	if cfg.Prices == nil {
		cfg.Prices = DefaultConfig().Prices
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		cfg:       cfg,
		db:        db,
		collector: collector,
		logger:    logger.With(zap.String("component", "budget_gate")),
		now:       time.Now,
		spent:     make(map[string]float64),
		approvals: make(map[string]*approvalRecord),
	}
	g.day = g.currentDay()
	return g
}

// AutoMigrate creates the cost_entries table.
func (g *Gate) AutoMigrate() error {
	if g.db == nil {
		return nil
	}
	return g.db.AutoMigrate(&CostEntry{})
}

// CheckBudget reports whether a call for op on providerID fits today's
// budget. The check projects the estimated cost on top of today's spend
// and does not mutate gate state.
func (g *Gate) CheckBudget(providerID string, op media.OperationKind) media.BudgetCheck {
	limit := g.dailyLimit(providerID)
	estimate := g.EstimatedCost(providerID, op)

	g.mu.Lock()
	g.rolloverLocked()
	spent := g.spent[providerID]
	g.mu.Unlock()

	check := media.BudgetCheck{
		Allowed:    true,
		DailySpent: spent,
		DailyLimit: limit,
	}
	if limit <= 0 {
		return check
	}
	if spent+estimate > limit {
		check.Allowed = false
		check.Reason = fmt.Sprintf("daily budget exceeded for %s: spent $%.2f + estimated $%.2f > limit $%.2f",
			providerID, spent, estimate, limit)
		if g.collector != nil {
			g.collector.RecordBudgetBlocked(providerID, string(op))
		}
	}
	return check
}

// CheckContentApproval reports whether contentID has been approved for
// paid generation. With RequireApproval off, everything is allowed.
// Unknown content is registered as pending so a human can act on it.
func (g *Gate) CheckContentApproval(contentID string) media.ApprovalCheck {
	if !g.cfg.RequireApproval || contentID == "" {
		return media.ApprovalCheck{Allowed: true}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.approvals[contentID]
	if !ok {
		g.approvals[contentID] = &approvalRecord{status: ApprovalPending, updatedAt: g.now()}
		return media.ApprovalCheck{
			Allowed: false,
			Reason:  fmt.Sprintf("content %s awaiting approval", contentID),
		}
	}

	switch rec.status {
	case ApprovalApproved:
		return media.ApprovalCheck{Allowed: true}
	case ApprovalRejected:
		return media.ApprovalCheck{
			Allowed: false,
			Reason:  fmt.Sprintf("content %s was rejected", contentID),
		}
	default:
		return media.ApprovalCheck{
			Allowed: false,
			Reason:  fmt.Sprintf("content %s awaiting approval", contentID),
		}
	}
}

// Approve marks contentID as approved for paid generation.
func (g *Gate) Approve(contentID string) {
	g.setApproval(contentID, ApprovalApproved)
}

// Reject marks contentID as rejected.
func (g *Gate) Reject(contentID string) {
	g.setApproval(contentID, ApprovalRejected)
}

func (g *Gate) setApproval(contentID string, status ApprovalStatus) {
	g.mu.Lock()
	g.approvals[contentID] = &approvalRecord{status: status, updatedAt: g.now()}
	g.mu.Unlock()
	g.logger.Info("content approval updated",
		zap.String("content_id", contentID),
		zap.String("status", string(status)))
}

// TrackCost records accepted spend against today's budget and appends a
// ledger entry. It never fails the caller.
func (g *Gate) TrackCost(providerID string, op media.OperationKind, amount float64, clientID string, metadata map[string]string) {
	if amount <= 0 {
		return
	}

	g.mu.Lock()
	g.rolloverLocked()
	g.spent[providerID] += amount
	day := g.day
	g.mu.Unlock()

	if g.collector != nil {
		g.collector.RecordProviderCost(providerID, string(op), amount)
	}
	g.logger.Debug("cost tracked",
		zap.String("provider", providerID),
		zap.String("operation", string(op)),
		zap.Float64("amount", amount))

	if g.db == nil {
		return
	}
	entry := CostEntry{
		ProviderID: providerID,
		Operation:  string(op),
		Amount:     amount,
		ClientID:   clientID,
		Day:        day,
		CreatedAt:  g.now(),
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = string(raw)
		}
	}
	go func() {
		if err := g.db.Create(&entry).Error; err != nil {
			g.logger.Warn("failed to persist cost entry",
				zap.String("provider", providerID),
				zap.Error(err))
		}
	}()
}

// EstimatedCost returns the estimated USD cost of one op call on
// providerID. Unknown operations estimate zero.
func (g *Gate) EstimatedCost(providerID string, op media.OperationKind) float64 {
	if byProvider, ok := g.cfg.ProviderPrices[providerID]; ok {
		if price, ok := byProvider[op]; ok {
			return price
		}
	}
	return g.cfg.Prices[op]
}

// Usage returns today's spend snapshot for every provider with recorded
// spend.
func (g *Gate) Usage() []UsageSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()

	out := make([]UsageSnapshot, 0, len(g.spent))
	for id, spent := range g.spent {
		limit := g.dailyLimit(id)
		s := UsageSnapshot{
			ProviderID: id,
			Day:        g.day,
			Spent:      spent,
			Limit:      limit,
		}
		if limit > 0 {
			s.Remaining = limit - spent
			if s.Remaining < 0 {
				s.Remaining = 0
			}
		}
		out = append(out, s)
	}
	return out
}

// Approvals returns the current approval status per content ID.
func (g *Gate) Approvals() map[string]ApprovalStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]ApprovalStatus, len(g.approvals))
	for id, rec := range g.approvals {
		out[id] = rec.status
	}
	return out
}

func (g *Gate) dailyLimit(providerID string) float64 {
	if limit, ok := g.cfg.ProviderDailyLimits[providerID]; ok {
		return limit
	}
	return g.cfg.DefaultDailyLimit
}

// rolloverLocked resets the in-memory spend counters when the UTC day
// changes. Callers must hold mu.
func (g *Gate) rolloverLocked() {
	day := g.currentDay()
	if day == g.day {
		return
	}
	g.logger.Info("daily budget reset", zap.String("day", day))
	g.day = day
	g.spent = make(map[string]float64)
}

func (g *Gate) currentDay() string {
	return g.now().UTC().Format("2006-01-02")
}
