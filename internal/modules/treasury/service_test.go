package treasury

import (
	"context"
	"testing"

	"github.com/aristath/treasurer/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOwner    = domain.Caller{ID: "owner-1", Role: domain.RoleOwner}
	testDAO      = domain.Caller{ID: "dao-1", Role: domain.RoleDAO}
	testObserver = domain.Caller{ID: "anyone", Role: domain.RoleObserver}
)

func newTestService() *Service {
	return NewService(ServiceConfig{
		ThresholdBps: 500,
		Log:          zerolog.Nop(),
	})
}

func TestAddAsset_NewAssetHasZeroShare(t *testing.T) {
	svc := newTestService()

	asset, err := svc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), asset.Balance)
	assert.True(t, asset.IsActive)

	allocations := svc.CurrentAllocations()
	require.Len(t, allocations, 1)
	assert.Equal(t, "USDC", allocations[0].Token)
	assert.Equal(t, int64(0), allocations[0].CurrentBps)
	assert.Equal(t, int64(5000), allocations[0].TargetBps)
}

func TestAddAsset_DuplicateActiveTokenFails(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddAsset(testOwner, "ETH", 3000)
	require.NoError(t, err)

	_, err = svc.AddAsset(testOwner, "ETH", 4000)
	assert.ErrorIs(t, err, ErrDuplicateAsset)
}

func TestAddAsset_AllocationOutOfRangeFails(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddAsset(testOwner, "ETH", 10001)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	_, err = svc.AddAsset(testOwner, "ETH", -1)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	// Boundary values are valid
	_, err = svc.AddAsset(testOwner, "ETH", 0)
	assert.NoError(t, err)
	_, err = svc.AddAsset(testOwner, "UNI", 10000)
	assert.NoError(t, err)
}

func TestAddAsset_RequiresOwner(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddAsset(testDAO, "ETH", 3000)
	assert.ErrorIs(t, err, ErrUnauthorizedCaller)

	_, err = svc.AddAsset(testObserver, "ETH", 3000)
	assert.ErrorIs(t, err, ErrUnauthorizedCaller)
}

func TestAddAsset_ReregisterAfterRemoval(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddAsset(testOwner, "ETH", 3000)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveAsset(testOwner, "ETH"))

	// Deactivated tokens may be registered again; the asset restarts at
	// zero balance with the new target.
	asset, err := svc.AddAsset(testOwner, "ETH", 7000)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), asset.TargetAllocation)
	assert.Equal(t, int64(0), asset.Balance)
}

func TestRemoveAsset_UnknownTokenFails(t *testing.T) {
	svc := newTestService()

	err := svc.RemoveAsset(testOwner, "DOGE")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestRemoveAsset_NonZeroBalanceFails(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.AddAsset(testOwner, "ETH", 10000)
	require.NoError(t, err)

	err = svc.RebalanceTreasury(ctx, testDAO, []RebalancingAction{
		{Token: "ETH", Amount: 100, IsBuy: true},
	})
	require.NoError(t, err)

	err = svc.RemoveAsset(testOwner, "ETH")
	assert.ErrorIs(t, err, ErrNonZeroBalance)

	// After selling down to zero, removal succeeds.
	err = svc.RebalanceTreasury(ctx, testDAO, []RebalancingAction{
		{Token: "ETH", Amount: 100, IsBuy: false},
	})
	require.NoError(t, err)
	assert.NoError(t, svc.RemoveAsset(testOwner, "ETH"))
}

func TestUpdateTargetAllocation(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddAsset(testOwner, "ETH", 3000)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateTargetAllocation(testOwner, "ETH", 6000))

	asset, err := svc.GetAsset("ETH")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), asset.TargetAllocation)
	assert.Equal(t, int64(0), asset.Balance)

	err = svc.UpdateTargetAllocation(testOwner, "ETH", 10001)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	err = svc.UpdateTargetAllocation(testOwner, "DOGE", 1000)
	assert.ErrorIs(t, err, ErrUnknownAsset)

	err = svc.UpdateTargetAllocation(testDAO, "ETH", 1000)
	assert.ErrorIs(t, err, ErrUnauthorizedCaller)
}

func TestCurrentAllocations_ZeroTotalValue(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddAsset(testOwner, "ETH", 6000)
	require.NoError(t, err)
	_, err = svc.AddAsset(testOwner, "USDC", 4000)
	require.NoError(t, err)

	for _, alloc := range svc.CurrentAllocations() {
		assert.Equal(t, int64(0), alloc.CurrentBps)
	}
	assert.Equal(t, int64(0), svc.TotalValue())
}

func TestCurrentAllocations_RegistryOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, token := range []string{"USDC", "ETH", "UNI"} {
		_, err := svc.AddAsset(testOwner, token, 3000)
		require.NoError(t, err)
	}

	err := svc.RebalanceTreasury(ctx, testDAO, []RebalancingAction{
		{Token: "UNI", Amount: 100, IsBuy: true},
		{Token: "USDC", Amount: 200, IsBuy: true},
	})
	require.NoError(t, err)

	allocations := svc.CurrentAllocations()
	require.Len(t, allocations, 3)
	assert.Equal(t, "USDC", allocations[0].Token)
	assert.Equal(t, "ETH", allocations[1].Token)
	assert.Equal(t, "UNI", allocations[2].Token)

	// Integer division truncates: 200/300 and 100/300 of 10000.
	assert.Equal(t, int64(6666), allocations[0].CurrentBps)
	assert.Equal(t, int64(0), allocations[1].CurrentBps)
	assert.Equal(t, int64(3333), allocations[2].CurrentBps)
}

func TestUpdateThreshold(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.UpdateThreshold(testOwner, 250))
	assert.Equal(t, int64(250), svc.ThresholdBps())

	err := svc.UpdateThreshold(testOwner, 10001)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	err = svc.UpdateThreshold(testDAO, 100)
	assert.ErrorIs(t, err, ErrUnauthorizedCaller)
}

func TestActiveAssets_ExcludesDeactivated(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddAsset(testOwner, "ETH", 5000)
	require.NoError(t, err)
	_, err = svc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveAsset(testOwner, "ETH"))

	active := svc.ActiveAssets()
	require.Len(t, active, 1)
	assert.Equal(t, "USDC", active[0].Token)

	// The deactivated asset is still readable for history.
	asset, err := svc.GetAsset("ETH")
	require.NoError(t, err)
	assert.False(t, asset.IsActive)
}
