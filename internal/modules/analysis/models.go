package analysis

// Report summarizes the current health of the treasury.
type Report struct {
	TotalValue         int64    `json:"total_value"`
	AssetCount         int      `json:"asset_count"`
	ThresholdBps       int64    `json:"threshold_bps"`
	RebalancingEnabled bool     `json:"rebalancing_enabled"`
	NeedsRebalancing   bool     `json:"needs_rebalancing"`
	MaxDeviationBps    int64    `json:"max_deviation_bps"`
	MeanDeviationBps   float64  `json:"mean_deviation_bps"`
	StdDevDeviationBps float64  `json:"stddev_deviation_bps"`
	Diversification    float64  `json:"diversification"`
	RiskFactors        []string `json:"risk_factors"`
	Trend              *Trend   `json:"trend,omitempty"`
}

// Trend describes the direction of the treasury's total value based on
// the snapshot history.
type Trend struct {
	Samples       int      `json:"samples"`
	SMA           *float64 `json:"sma,omitempty"`
	ROCPercent    *float64 `json:"roc_percent,omitempty"`
	ChangePercent float64  `json:"change_percent"`
	Direction     string   `json:"direction"` // "up", "down", "flat" or "unknown"
}

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a condition the analysis service wants operators to see.
type Alert struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}
