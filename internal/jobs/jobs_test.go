package jobs

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/treasurer/internal/database"
	"github.com/aristath/treasurer/internal/domain"
	"github.com/aristath/treasurer/internal/modules/snapshots"
	"github.com/aristath/treasurer/internal/modules/treasury"
)

var (
	testOwner = domain.Caller{ID: "owner-1", Role: domain.RoleOwner}
	testDAO   = domain.Caller{ID: "dao-1", Role: domain.RoleDAO}
)

type capturePublisher struct {
	mu     sync.Mutex
	events []string
	data   []map[string]interface{}
}

func (p *capturePublisher) Publish(eventType string, data map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.data = append(p.data, data)
}

func newUnbalancedTreasury(t *testing.T) *treasury.Service {
	t.Helper()

	svc := treasury.NewService(treasury.ServiceConfig{ThresholdBps: 500, Log: zerolog.Nop()})
	_, err := svc.AddAsset(testOwner, "ETH", 5000)
	require.NoError(t, err)
	_, err = svc.AddAsset(testOwner, "USDC", 5000)
	require.NoError(t, err)

	err = svc.RebalanceTreasury(context.Background(), testDAO, []treasury.RebalancingAction{
		{Token: "ETH", Amount: 8000, IsBuy: true},
		{Token: "USDC", Amount: 2000, IsBuy: true},
	})
	require.NoError(t, err)

	return svc
}

func TestDeviationCheckJob_PublishesSuggestions(t *testing.T) {
	svc := newUnbalancedTreasury(t)
	pub := &capturePublisher{}

	job := NewDeviationCheckJob(svc, pub, zerolog.Nop())
	assert.Equal(t, "deviation_check", job.Name())
	require.NoError(t, job.Run())

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventDeviationDetected, pub.events[0])

	suggestions, ok := pub.data[0]["suggestions"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "ETH", suggestions[0]["token"])
	assert.Equal(t, int64(3000), suggestions[0]["amount"])
	assert.Equal(t, false, suggestions[0]["is_buy"])
}

func TestDeviationCheckJob_QuietWhenBalanced(t *testing.T) {
	svc := treasury.NewService(treasury.ServiceConfig{ThresholdBps: 500, Log: zerolog.Nop()})
	pub := &capturePublisher{}

	job := NewDeviationCheckJob(svc, pub, zerolog.Nop())
	require.NoError(t, job.Run())
	assert.Empty(t, pub.events)
}

func TestSnapshotJob_RecordsState(t *testing.T) {
	svc := newUnbalancedTreasury(t)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(snapshots.Schema)
	require.NoError(t, err)

	snapRepo := snapshots.NewRepository(db, zerolog.Nop())
	job := NewSnapshotJob(svc, snapRepo, zerolog.Nop())
	assert.Equal(t, "snapshot", job.Name())

	require.NoError(t, job.Run())

	latest, err := snapRepo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(10000), latest.TotalValue)
	require.Len(t, latest.Allocations, 2)
	assert.Equal(t, "ETH", latest.Allocations[0].Token)
	assert.Equal(t, int64(8000), latest.Allocations[0].CurrentBps)
}

func TestHealthCheckJob_HealthyDatabases(t *testing.T) {
	newFileDB := func(name string) *database.DB {
		db, err := database.New(filepath.Join(t.TempDir(), name))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	}

	treasuryDB := newFileDB("treasury.db")
	historyDB := newFileDB("history.db")

	// Write something so the WAL has frames to report on.
	_, err := treasuryDB.Conn().Exec("CREATE TABLE ping (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = treasuryDB.Conn().Exec("INSERT INTO ping (id) VALUES (1)")
	require.NoError(t, err)

	var buf bytes.Buffer
	job := NewHealthCheckJob(treasuryDB, historyDB, zerolog.New(&buf))
	assert.Equal(t, "health_check", job.Name())

	require.NoError(t, job.Run())

	// A healthy WAL-mode database must never trip the checkpoint warning
	// path; the pragma returns three columns and all three must scan.
	assert.NotContains(t, buf.String(), "Failed to check WAL checkpoint")
}

func TestHealthCheckJob_NilDatabaseSkipped(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "treasury.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	job := NewHealthCheckJob(db, nil, zerolog.Nop())
	require.NoError(t, job.Run())
}
