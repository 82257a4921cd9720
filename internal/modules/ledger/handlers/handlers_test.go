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

	"github.com/aristath/treasurer/internal/modules/ledger"
	"github.com/aristath/treasurer/internal/modules/treasury"
)

func newTestRouter(t *testing.T) (*chi.Mux, *ledger.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(ledger.Schema)
	require.NoError(t, err)

	repo := ledger.NewRepository(db, zerolog.Nop())
	handler := NewHandler(repo, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	return router, repo
}

func record(t *testing.T, repo *ledger.Repository, token string, amount int64) {
	t.Helper()
	require.NoError(t, repo.Record(treasury.ActionRecord{
		Token:  token,
		Amount: amount,
		IsBuy:  true,
		Kind:   "rebalance",
		Caller: "dao-1",
	}))
}

func TestListEntries(t *testing.T) {
	router, repo := newTestRouter(t)

	record(t, repo, "ETH", 500)
	record(t, repo, "USDC", 300)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger/entries", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["total"])
	assert.Len(t, body["entries"].([]interface{}), 2)
}

func TestListEntries_TokenFilter(t *testing.T) {
	router, repo := newTestRouter(t)

	record(t, repo, "ETH", 500)
	record(t, repo, "USDC", 300)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger/entries?token=ETH", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	entries := body["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "ETH", entries[0].(map[string]interface{})["token"])
}

func TestListEntries_InvalidLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger/entries?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEntries_Empty(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger/entries", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["total"])
	assert.Empty(t, body["entries"])
}
