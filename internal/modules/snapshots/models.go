// Package snapshots stores the treasury's value and allocation history.
// The snapshot job appends one row per interval; the analysis module reads
// the series back for trend and value-change calculations.
package snapshots

import "time"

// AllocationEntry is one asset's slice of a snapshot. Entries are encoded
// as a msgpack blob per snapshot row.
type AllocationEntry struct {
	Token      string `msgpack:"token" json:"token"`
	Balance    int64  `msgpack:"balance" json:"balance"`
	TargetBps  int64  `msgpack:"target_bps" json:"target_bps"`
	CurrentBps int64  `msgpack:"current_bps" json:"current_bps"`
}

// Snapshot is one point-in-time record of treasury state.
type Snapshot struct {
	ID          int64             `json:"id"`
	TotalValue  int64             `json:"total_value"`
	Allocations []AllocationEntry `json:"allocations"`
	CreatedAt   time.Time         `json:"created_at"`
}
