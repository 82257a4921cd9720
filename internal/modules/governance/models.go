// Package governance holds the proposal lifecycle that drives treasury
// rebalancing. A proposal bundles rebalancing actions; once it collects
// enough approvals it can be executed, which hands the actions to the
// treasury under the DAO role.
package governance

import (
	"time"

	"github.com/aristath/treasurer/internal/modules/treasury"
)

// Proposal statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusExecuted = "executed"
	StatusFailed   = "failed"
)

// Proposal is one governance proposal over a batch of rebalancing actions.
type Proposal struct {
	UUID         string                       `json:"uuid"`
	Title        string                       `json:"title"`
	Description  string                       `json:"description"`
	Actions      []treasury.RebalancingAction `json:"actions"`
	Status       string                       `json:"status"`
	VotesFor     int64                        `json:"votes_for"`
	VotesAgainst int64                        `json:"votes_against"`
	Proposer     string                       `json:"proposer"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
	ExecutedAt   *time.Time                   `json:"executed_at,omitempty"`
}

// Open reports whether the proposal can still collect votes.
func (p *Proposal) Open() bool {
	return p.Status == StatusPending
}

// Metrics summarizes proposal activity.
type Metrics struct {
	Total        int64   `json:"total"`
	Pending      int64   `json:"pending"`
	Approved     int64   `json:"approved"`
	Rejected     int64   `json:"rejected"`
	Executed     int64   `json:"executed"`
	Failed       int64   `json:"failed"`
	ApprovalRate float64 `json:"approval_rate"`
	TotalVotes   int64   `json:"total_votes"`
}
