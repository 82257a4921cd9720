package treasury

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)

	return db
}

func newPersistentService(t *testing.T, db *sql.DB) *Service {
	repo := NewRepository(db, zerolog.Nop())
	svc := NewService(ServiceConfig{
		ThresholdBps: 500,
		Repo:         repo,
		Log:          zerolog.Nop(),
	})
	require.NoError(t, svc.Load())
	return svc
}

func TestRepository_SaveAndLoad(t *testing.T) {
	db := setupTestDB(t)
	svc := newPersistentService(t, db)
	ctx := context.Background()

	_, err := svc.AddAsset(testOwner, "USDC", 4000)
	require.NoError(t, err)
	_, err = svc.AddAsset(testOwner, "ETH", 6000)
	require.NoError(t, err)
	require.NoError(t, svc.RebalanceTreasury(ctx, testDAO, []RebalancingAction{
		{Token: "USDC", Amount: 400, IsBuy: true},
		{Token: "ETH", Amount: 600, IsBuy: true},
	}))

	// A fresh service over the same database sees the same state, in the
	// same registry order.
	restored := newPersistentService(t, db)

	allocations := restored.CurrentAllocations()
	require.Len(t, allocations, 2)
	assert.Equal(t, "USDC", allocations[0].Token)
	assert.Equal(t, int64(400), allocations[0].Balance)
	assert.Equal(t, "ETH", allocations[1].Token)
	assert.Equal(t, int64(600), allocations[1].Balance)
	assert.Equal(t, int64(1000), restored.TotalValue())
}

func TestRepository_DeactivationSurvivesReload(t *testing.T) {
	db := setupTestDB(t)
	svc := newPersistentService(t, db)

	_, err := svc.AddAsset(testOwner, "ETH", 5000)
	require.NoError(t, err)
	_, err = svc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveAsset(testOwner, "ETH"))

	restored := newPersistentService(t, db)

	active := restored.ActiveAssets()
	require.Len(t, active, 1)
	assert.Equal(t, "USDC", active[0].Token)

	// Deactivated row retained for history.
	asset, err := restored.GetAsset("ETH")
	require.NoError(t, err)
	assert.False(t, asset.IsActive)
}

func TestRepository_SettingsSurviveReload(t *testing.T) {
	db := setupTestDB(t)
	svc := newPersistentService(t, db)

	require.NoError(t, svc.SetRebalancingEnabled(testOwner, false))
	require.NoError(t, svc.UpdateThreshold(testOwner, 750))

	restored := newPersistentService(t, db)
	assert.False(t, restored.RebalancingEnabled())
	assert.Equal(t, int64(750), restored.ThresholdBps())
}

func TestRepository_EmergencyWithdrawSurvivesReload(t *testing.T) {
	db := setupTestDB(t)
	svc := newPersistentService(t, db)
	ctx := context.Background()

	_, err := svc.AddAsset(testOwner, "ETH", 10000)
	require.NoError(t, err)
	require.NoError(t, svc.RebalanceTreasury(ctx, testDAO, []RebalancingAction{
		{Token: "ETH", Amount: 500, IsBuy: true},
	}))

	require.NoError(t, svc.EmergencyWithdraw(testOwner))

	restored := newPersistentService(t, db)
	assert.Equal(t, int64(0), restored.TotalValue())
	assert.False(t, restored.RebalancingEnabled())
}

func TestRepository_UpdateUnknownAsset(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	err := repo.UpdateAsset(Asset{Token: "GHOST"})
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestRepository_SettingDefaults(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	enabled, err := repo.GetSettingBool(SettingRebalancingEnabled, true)
	require.NoError(t, err)
	assert.True(t, enabled)

	threshold, err := repo.GetSettingInt64(SettingRebalancingThreshold, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), threshold)
}
