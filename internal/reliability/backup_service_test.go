package reliability

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/treasurer/internal/database"
)

func TestBackupDatabase(t *testing.T) {
	dir := t.TempDir()

	db, err := database.New(filepath.Join(dir, "treasury.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec("CREATE TABLE assets (token TEXT PRIMARY KEY, balance INTEGER)")
	require.NoError(t, err)
	_, err = db.Conn().Exec("INSERT INTO assets (token, balance) VALUES ('ETH', 500)")
	require.NoError(t, err)

	svc := NewBackupService(zerolog.Nop())
	svc.Register("treasury", db)

	dest := filepath.Join(dir, "backup.db")
	require.NoError(t, svc.BackupDatabase("treasury", dest))

	// The copy is a standalone, readable database.
	copyDB, err := database.New(dest)
	require.NoError(t, err)
	t.Cleanup(func() { copyDB.Close() })

	var balance int64
	require.NoError(t, copyDB.Conn().QueryRow("SELECT balance FROM assets WHERE token = 'ETH'").Scan(&balance))
	assert.Equal(t, int64(500), balance)

	// Re-running overwrites the stale copy instead of failing.
	require.NoError(t, svc.BackupDatabase("treasury", dest))
}

func TestBackupDatabase_Unknown(t *testing.T) {
	svc := NewBackupService(zerolog.Nop())
	err := svc.BackupDatabase("nope", filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)
}

func TestDatabaseNames_RegistrationOrder(t *testing.T) {
	dir := t.TempDir()

	treasuryDB, err := database.New(filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	t.Cleanup(func() { treasuryDB.Close() })

	historyDB, err := database.New(filepath.Join(dir, "b.db"))
	require.NoError(t, err)
	t.Cleanup(func() { historyDB.Close() })

	svc := NewBackupService(zerolog.Nop())
	svc.Register("treasury", treasuryDB)
	svc.Register("history", historyDB)
	svc.Register("treasury", treasuryDB) // re-register is a no-op for ordering

	assert.Equal(t, []string{"treasury", "history"}, svc.DatabaseNames())
}
