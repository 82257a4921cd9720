// Package treasury implements the treasury allocation tracker: the asset
// registry, deviation detection, rebalancing planning and action execution.
package treasury

import "time"

// TotalBps is the full allocation scale (100.00% in basis points).
const TotalBps int64 = 10000

// DefaultSlippageBps is attached to planner suggestions. It is carried as
// metadata only; the balance-only executor does not enforce it.
const DefaultSlippageBps int64 = 200

// Asset is one tracked fungible token holding.
//
// Balance is kept in the token's smallest unit. TargetAllocation is the
// basis-point share of total treasury value this asset should hold. The
// model deliberately treats one unit of any token as one unit of value;
// price conversion is out of scope.
type Asset struct {
	Token            string    `json:"token"`
	Balance          int64     `json:"balance"`
	TargetAllocation int64     `json:"target_allocation"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Allocation is the current basis-point share of one active asset.
type Allocation struct {
	Token      string `json:"token"`
	Balance    int64  `json:"balance"`
	TargetBps  int64  `json:"target_bps"`
	CurrentBps int64  `json:"current_bps"`
}

// DeviationBps returns |current - target| for this allocation.
func (a Allocation) DeviationBps() int64 {
	d := a.CurrentBps - a.TargetBps
	if d < 0 {
		return -d
	}
	return d
}

// RebalancingAction is a proposed or submitted balance adjustment. Actions
// are value objects: they reference assets by token only and are consumed
// once.
type RebalancingAction struct {
	Token                string `json:"token"`
	Amount               int64  `json:"amount"`
	IsBuy                bool   `json:"is_buy"`
	SlippageToleranceBps int64  `json:"slippage_tolerance_bps"`
}

// ActionRecord is the audit-trail entry emitted for every executed action.
type ActionRecord struct {
	Token       string
	Amount      int64
	IsBuy       bool
	SlippageBps int64
	Kind        string // "rebalance" or "emergency_withdraw"
	Caller      string
	Timestamp   time.Time
}

// ActionRecorder persists executed actions to an audit ledger. Recording is
// best-effort: a ledger failure never rolls back an executed batch.
type ActionRecorder interface {
	Record(rec ActionRecord) error
}

// EventPublisher receives treasury events after state is finalized. The
// publish happens outside the treasury lock, so subscribers can never
// re-enter a half-applied mutation.
type EventPublisher interface {
	Publish(eventType string, data map[string]interface{})
}

// Event types published by the treasury service.
const (
	EventAssetAdded        = "asset_added"
	EventAssetRemoved      = "asset_removed"
	EventTargetUpdated     = "target_updated"
	EventRebalanced        = "rebalanced"
	EventEmergencyWithdraw = "emergency_withdraw"
	EventRebalancingToggle = "rebalancing_toggled"
)
