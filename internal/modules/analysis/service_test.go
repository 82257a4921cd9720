package analysis

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/treasurer/internal/domain"
	"github.com/aristath/treasurer/internal/modules/snapshots"
	"github.com/aristath/treasurer/internal/modules/treasury"
)

var (
	testOwner = domain.Caller{ID: "owner-1", Role: domain.RoleOwner}
	testDAO   = domain.Caller{ID: "dao-1", Role: domain.RoleDAO}
)

func newTestService(t *testing.T) (*Service, *treasury.Service, *snapshots.Repository) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(snapshots.Schema)
	require.NoError(t, err)

	snapRepo := snapshots.NewRepository(db, zerolog.Nop())
	treasurySvc := treasury.NewService(treasury.ServiceConfig{
		ThresholdBps: 500,
		Log:          zerolog.Nop(),
	})

	return NewService(treasurySvc, snapRepo, zerolog.Nop()), treasurySvc, snapRepo
}

func seedBalance(t *testing.T, svc *treasury.Service, token string, amount int64) {
	t.Helper()
	err := svc.RebalanceTreasury(context.Background(), testDAO, []treasury.RebalancingAction{
		{Token: token, Amount: amount, IsBuy: true},
	})
	require.NoError(t, err)
}

func TestReport_EmptyTreasury(t *testing.T) {
	svc, _, _ := newTestService(t)

	report, err := svc.Report()
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.TotalValue)
	assert.Equal(t, 0, report.AssetCount)
	assert.False(t, report.NeedsRebalancing)
	assert.Equal(t, 0.0, report.Diversification)
	assert.Empty(t, report.RiskFactors)
	require.NotNil(t, report.Trend)
	assert.Equal(t, "unknown", report.Trend.Direction)
}

func TestReport_BalancedTreasury(t *testing.T) {
	svc, treasurySvc, _ := newTestService(t)

	_, err := treasurySvc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)
	_, err = treasurySvc.AddAsset(testOwner, "ETH", 5000)
	require.NoError(t, err)
	seedBalance(t, treasurySvc, "USDC", 5000)
	seedBalance(t, treasurySvc, "ETH", 5000)

	report, err := svc.Report()
	require.NoError(t, err)

	assert.Equal(t, int64(10000), report.TotalValue)
	assert.Equal(t, 2, report.AssetCount)
	assert.False(t, report.NeedsRebalancing)
	assert.Equal(t, int64(0), report.MaxDeviationBps)
	assert.InDelta(t, 1.0, report.Diversification, 1e-9)
	assert.Empty(t, report.RiskFactors)
}

func TestReport_FlagsConcentrationAndDeviation(t *testing.T) {
	svc, treasurySvc, _ := newTestService(t)

	_, err := treasurySvc.AddAsset(testOwner, "ETH", 5000)
	require.NoError(t, err)
	_, err = treasurySvc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)
	seedBalance(t, treasurySvc, "ETH", 9000)
	seedBalance(t, treasurySvc, "USDC", 1000)

	report, err := svc.Report()
	require.NoError(t, err)

	assert.True(t, report.NeedsRebalancing)
	assert.Equal(t, int64(4000), report.MaxDeviationBps)
	require.Len(t, report.RiskFactors, 1)
	assert.Contains(t, report.RiskFactors[0], "ETH")
	assert.Contains(t, report.RiskFactors[0], "concentration")
}

func TestReport_FlagsTargetSumAboveWhole(t *testing.T) {
	svc, treasurySvc, _ := newTestService(t)

	_, err := treasurySvc.AddAsset(testOwner, "ETH", 8000)
	require.NoError(t, err)
	_, err = treasurySvc.AddAsset(testOwner, "USDC", 8000)
	require.NoError(t, err)

	report, err := svc.Report()
	require.NoError(t, err)

	found := false
	for _, factor := range report.RiskFactors {
		if strings.Contains(factor, "16000") {
			found = true
		}
	}
	assert.True(t, found, "expected a target-sum risk factor, got %v", report.RiskFactors)
}

func TestReport_FlagsDisabledRebalancingWhileNeeded(t *testing.T) {
	svc, treasurySvc, _ := newTestService(t)

	_, err := treasurySvc.AddAsset(testOwner, "ETH", 5000)
	require.NoError(t, err)
	_, err = treasurySvc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)
	seedBalance(t, treasurySvc, "ETH", 9000)
	seedBalance(t, treasurySvc, "USDC", 1000)

	require.NoError(t, treasurySvc.SetRebalancingEnabled(testOwner, false))

	report, err := svc.Report()
	require.NoError(t, err)

	found := false
	for _, factor := range report.RiskFactors {
		if strings.Contains(factor, "disabled") {
			found = true
		}
	}
	assert.True(t, found, "expected a disabled-while-needed risk factor, got %v", report.RiskFactors)
}

func TestTrend_Directions(t *testing.T) {
	svc, _, snapRepo := newTestService(t)

	for _, v := range []int64{1000, 1100, 1200, 1300} {
		require.NoError(t, snapRepo.Append(v, nil))
	}

	trend, err := svc.Trend(10)
	require.NoError(t, err)
	assert.Equal(t, 4, trend.Samples)
	assert.Equal(t, "up", trend.Direction)
	assert.InDelta(t, 30.0, trend.ChangePercent, 1e-9)
	require.NotNil(t, trend.ROCPercent)
}

func TestTrend_InsufficientSamples(t *testing.T) {
	svc, _, snapRepo := newTestService(t)

	require.NoError(t, snapRepo.Append(1000, nil))

	trend, err := svc.Trend(10)
	require.NoError(t, err)
	assert.Equal(t, 1, trend.Samples)
	assert.Equal(t, "unknown", trend.Direction)
	assert.Nil(t, trend.SMA)
}

func TestAlerts_NeedsRebalancingSeverity(t *testing.T) {
	svc, treasurySvc, _ := newTestService(t)

	_, err := treasurySvc.AddAsset(testOwner, "ETH", 5000)
	require.NoError(t, err)
	_, err = treasurySvc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)
	seedBalance(t, treasurySvc, "ETH", 8000)
	seedBalance(t, treasurySvc, "USDC", 2000)

	alerts, err := svc.Alerts()
	require.NoError(t, err)

	var rebalanceAlert *Alert
	for i := range alerts {
		if alerts[i].Code == "needs_rebalancing" {
			rebalanceAlert = &alerts[i]
		}
	}
	require.NotNil(t, rebalanceAlert)
	assert.Equal(t, SeverityInfo, rebalanceAlert.Severity)

	// Disabling rebalancing escalates the alert.
	require.NoError(t, treasurySvc.SetRebalancingEnabled(testOwner, false))

	alerts, err = svc.Alerts()
	require.NoError(t, err)

	rebalanceAlert = nil
	for i := range alerts {
		if alerts[i].Code == "needs_rebalancing" {
			rebalanceAlert = &alerts[i]
		}
	}
	require.NotNil(t, rebalanceAlert)
	assert.Equal(t, SeverityWarning, rebalanceAlert.Severity)
}

func TestAlerts_ValueDrop(t *testing.T) {
	svc, _, snapRepo := newTestService(t)

	for _, v := range []int64{1000, 900, 800, 700} {
		require.NoError(t, snapRepo.Append(v, nil))
	}

	alerts, err := svc.Alerts()
	require.NoError(t, err)

	var dropAlert *Alert
	for i := range alerts {
		if alerts[i].Code == "value_drop" {
			dropAlert = &alerts[i]
		}
	}
	require.NotNil(t, dropAlert)
	assert.Equal(t, SeverityCritical, dropAlert.Severity)
}

func TestAlerts_QuietWhenHealthy(t *testing.T) {
	svc, treasurySvc, snapRepo := newTestService(t)

	_, err := treasurySvc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)
	_, err = treasurySvc.AddAsset(testOwner, "ETH", 5000)
	require.NoError(t, err)
	seedBalance(t, treasurySvc, "USDC", 500)
	seedBalance(t, treasurySvc, "ETH", 500)

	require.NoError(t, snapRepo.Append(1000, nil))
	require.NoError(t, snapRepo.Append(1000, nil))

	alerts, err := svc.Alerts()
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
