package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/treasurer/internal/domain"
	"github.com/aristath/treasurer/internal/modules/analysis"
	"github.com/aristath/treasurer/internal/modules/snapshots"
	"github.com/aristath/treasurer/internal/modules/treasury"
)

func newTestRouter(t *testing.T) (*chi.Mux, *treasury.Service, *snapshots.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(snapshots.Schema)
	require.NoError(t, err)

	treasurySvc := treasury.NewService(treasury.ServiceConfig{
		ThresholdBps: 500,
		Log:          zerolog.Nop(),
	})
	snapshotRepo := snapshots.NewRepository(db, zerolog.Nop())

	handler := NewHandler(analysis.NewService(treasurySvc, snapshotRepo, zerolog.Nop()), snapshotRepo, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api/treasury", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	return router, treasurySvc, snapshotRepo
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleAnalysis(t *testing.T) {
	router, treasurySvc, _ := newTestRouter(t)

	owner := domain.Caller{ID: "owner-1", Role: domain.RoleOwner}
	_, err := treasurySvc.AddAsset(owner, "ETH", 6000)
	require.NoError(t, err)
	_, err = treasurySvc.AddAsset(owner, "USDC", 4000)
	require.NoError(t, err)

	rec := get(t, router, "/api/treasury/analysis")
	require.Equal(t, http.StatusOK, rec.Code)

	var report analysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.AssetCount)
	assert.Equal(t, int64(500), report.ThresholdBps)
	assert.True(t, report.RebalancingEnabled)
}

func TestHandleAlerts_EmptyTreasury(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := get(t, router, "/api/treasury/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]analysis.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body["alerts"])
}

func TestHandleHistory(t *testing.T) {
	router, _, snapshotRepo := newTestRouter(t)

	for _, value := range []int64{100, 200} {
		require.NoError(t, snapshotRepo.Append(value, nil))
	}

	rec := get(t, router, "/api/treasury/history?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]snapshots.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["snapshots"], 1)
	assert.Equal(t, int64(200), body["snapshots"][0].TotalValue)
}

func TestHandleHistory_InvalidLimit(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := get(t, router, "/api/treasury/history?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
