// Package ledger provides the immutable audit trail of executed treasury
// actions. Entries are append-only; nothing in the service updates or
// deletes them.
package ledger

import "time"

// Entry is one executed action in the audit trail.
type Entry struct {
	UUID        string    `json:"uuid"`
	Token       string    `json:"token"`
	Amount      int64     `json:"amount"`
	IsBuy       bool      `json:"is_buy"`
	SlippageBps int64     `json:"slippage_bps"`
	Kind        string    `json:"kind"` // "rebalance" or "emergency_withdraw"
	Caller      string    `json:"caller"`
	CreatedAt   time.Time `json:"created_at"`
}
