// Package reliability covers operational safety nets: consistent SQLite
// backups, archive creation and off-site replication to Cloudflare R2.
package reliability

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/treasurer/internal/database"
)

// BackupService produces consistent local copies of the SQLite databases
// using VACUUM INTO, which is safe while the databases are in use.
type BackupService struct {
	databases map[string]*database.DB
	names     []string
	log       zerolog.Logger
}

// NewBackupService creates a new backup service. Databases are backed up
// in the order given.
func NewBackupService(log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: make(map[string]*database.DB),
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// Register adds a database under a stable backup name.
func (s *BackupService) Register(name string, db *database.DB) {
	if _, ok := s.databases[name]; !ok {
		s.names = append(s.names, name)
	}
	s.databases[name] = db
}

// DatabaseNames returns the registered database names in registration order.
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// BackupDatabase writes a consistent copy of one database to destPath.
func (s *BackupService) BackupDatabase(name, destPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("unknown database %q", name)
	}

	// VACUUM INTO refuses to overwrite an existing file.
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear stale backup %s: %w", destPath, err)
	}

	if _, err := db.Conn().Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("failed to vacuum %s into %s: %w", name, destPath, err)
	}

	s.log.Debug().Str("database", name).Str("dest", destPath).Msg("Database backed up")
	return nil
}
