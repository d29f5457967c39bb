package store

import (
	"errors"

	"gorm.io/gorm"
)

// SyncSchema creates/updates tables and indexes from models. Table structure
// changes do not use versioned migrations.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(
		&Session{},
		&Pane{},
		&ProjectSettings{},
	); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_sessions_alive ON sessions(is_alive) WHERE is_alive = true;`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id) WHERE project_id <> '';`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_pane ON sessions(pane_id) WHERE pane_id <> '';`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_project_mode_alive ON sessions(project_id, mode, is_alive);`,
		`CREATE INDEX IF NOT EXISTS idx_panes_order ON panes(pane_order);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
