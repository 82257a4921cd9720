// Package analysis derives health metrics from treasury state and the
// snapshot history: deviation statistics, a diversification score, risk
// factors, value trend and operator alerts. It only reads; it never
// mutates treasury state.
package analysis

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/modules/snapshots"
	"github.com/aristath/treasurer/internal/modules/treasury"
	"github.com/aristath/treasurer/pkg/formulas"
)

// Concentration above this share of the treasury is flagged as a risk.
const concentrationLimitBps = 5000

// Value drop percentages that trigger alerts over the trend window.
const (
	valueDropWarningPct  = 10.0
	valueDropCriticalPct = 25.0
)

// Default number of snapshots considered for trend and alerts.
const defaultTrendWindow = 24

// Service computes analysis reports over treasury and snapshot data.
type Service struct {
	treasury  *treasury.Service
	snapshots *snapshots.Repository
	log       zerolog.Logger
}

// NewService creates a new analysis service
func NewService(treasurySvc *treasury.Service, snapshotRepo *snapshots.Repository, log zerolog.Logger) *Service {
	return &Service{
		treasury:  treasurySvc,
		snapshots: snapshotRepo,
		log:       log.With().Str("service", "analysis").Logger(),
	}
}

// Report builds a full health report for the treasury.
func (s *Service) Report() (*Report, error) {
	allocations := s.treasury.CurrentAllocations()
	assets := s.treasury.ActiveAssets()

	report := &Report{
		TotalValue:         s.treasury.TotalValue(),
		AssetCount:         len(assets),
		ThresholdBps:       s.treasury.ThresholdBps(),
		RebalancingEnabled: s.treasury.RebalancingEnabled(),
		NeedsRebalancing:   s.treasury.NeedsRebalancing(),
		RiskFactors:        []string{},
	}

	deviations := make([]float64, 0, len(allocations))
	weights := make([]float64, 0, len(allocations))
	for _, alloc := range allocations {
		dev := alloc.DeviationBps()
		deviations = append(deviations, float64(dev))
		if dev > report.MaxDeviationBps {
			report.MaxDeviationBps = dev
		}
		weights = append(weights, float64(alloc.Balance))
	}

	report.MeanDeviationBps = formulas.Mean(deviations)
	report.StdDevDeviationBps = formulas.StdDev(deviations)
	report.Diversification = formulas.DiversificationScore(weights)

	report.RiskFactors = s.riskFactors(report, assets, allocations)

	trend, err := s.Trend(defaultTrendWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to compute trend: %w", err)
	}
	report.Trend = trend

	return report, nil
}

// riskFactors inspects the current state for conditions worth surfacing.
func (s *Service) riskFactors(report *Report, assets []treasury.Asset, allocations []treasury.Allocation) []string {
	factors := []string{}

	var targetSum int64
	for _, asset := range assets {
		targetSum += asset.TargetAllocation
	}
	if targetSum > treasury.TotalBps {
		factors = append(factors, fmt.Sprintf(
			"target allocations sum to %d bps, above the %d bps whole", targetSum, treasury.TotalBps))
	}

	for _, alloc := range allocations {
		if alloc.CurrentBps > concentrationLimitBps {
			factors = append(factors, fmt.Sprintf(
				"%s holds %d bps of treasury value, above the %d bps concentration limit",
				alloc.Token, alloc.CurrentBps, concentrationLimitBps))
		}
	}

	if report.NeedsRebalancing && !report.RebalancingEnabled {
		factors = append(factors, "treasury needs rebalancing but rebalancing is disabled")
	}

	if report.TotalValue == 0 && len(assets) > 0 {
		factors = append(factors, "treasury holds registered assets but no value")
	}

	return factors
}

// Trend computes the value trend over the last `window` snapshots.
// With fewer than two samples the direction is "unknown".
func (s *Service) Trend(window int) (*Trend, error) {
	if window <= 0 {
		window = defaultTrendWindow
	}

	series, err := s.snapshots.ValueSeries(window)
	if err != nil {
		return nil, fmt.Errorf("failed to load value series: %w", err)
	}

	trend := &Trend{
		Samples:   len(series),
		Direction: "unknown",
	}
	if len(series) < 2 {
		return trend, nil
	}

	trend.SMA = formulas.CalculateSMA(series, min(len(series), window/2+1))
	trend.ROCPercent = formulas.CalculateROC(series, len(series)-1)
	trend.ChangePercent = formulas.PercentChange(series[0], series[len(series)-1])

	switch {
	case math.Abs(trend.ChangePercent) < 0.5:
		trend.Direction = "flat"
	case trend.ChangePercent > 0:
		trend.Direction = "up"
	default:
		trend.Direction = "down"
	}

	return trend, nil
}

// Alerts evaluates alert conditions over current state and recent history.
func (s *Service) Alerts() ([]Alert, error) {
	alerts := []Alert{}

	report, err := s.Report()
	if err != nil {
		return nil, err
	}

	if report.NeedsRebalancing {
		severity := SeverityInfo
		if !report.RebalancingEnabled {
			severity = SeverityWarning
		}
		alerts = append(alerts, Alert{
			Severity: severity,
			Code:     "needs_rebalancing",
			Message: fmt.Sprintf("allocation deviation of %d bps exceeds the %d bps threshold",
				report.MaxDeviationBps, report.ThresholdBps),
		})
	}

	for _, factor := range report.RiskFactors {
		alerts = append(alerts, Alert{
			Severity: SeverityWarning,
			Code:     "risk_factor",
			Message:  factor,
		})
	}

	if report.Trend != nil && report.Trend.Direction == "down" {
		drop := -report.Trend.ChangePercent
		switch {
		case drop >= valueDropCriticalPct:
			alerts = append(alerts, Alert{
				Severity: SeverityCritical,
				Code:     "value_drop",
				Message:  fmt.Sprintf("treasury value dropped %.1f%% over the last %d snapshots", drop, report.Trend.Samples),
			})
		case drop >= valueDropWarningPct:
			alerts = append(alerts, Alert{
				Severity: SeverityWarning,
				Code:     "value_drop",
				Message:  fmt.Sprintf("treasury value dropped %.1f%% over the last %d snapshots", drop, report.Trend.Samples),
			})
		}
	}

	return alerts, nil
}
