package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertProjectSettings inserts or updates the per-project row in one
// statement.
func (s *Store) UpsertProjectSettings(ps *ProjectSettings) error {
	if ps.ProjectID == "" {
		return errors.New("project id is required")
	}
	if ps.ActiveMode == "" {
		ps.ActiveMode = ModeShell
	}
	ps.UpdatedAt = nowUnix()
	return s.gdb.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"enabled":       gorm.Expr("excluded.enabled"),
			"active_mode":   gorm.Expr("excluded.active_mode"),
			"display_order": gorm.Expr("excluded.display_order"),
			"updated_at":    gorm.Expr("excluded.updated_at"),
		}),
	}).Create(ps).Error
}

func (s *Store) GetProjectSettings(projectID string) (ProjectSettings, error) {
	var ps ProjectSettings
	err := s.gdb.Where("project_id = ?", projectID).First(&ps).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProjectSettings{}, ErrNotFound
	}
	if err != nil {
		return ProjectSettings{}, err
	}
	return ps, nil
}

func (s *Store) ListProjectSettings() ([]ProjectSettings, error) {
	settings := make([]ProjectSettings, 0)
	err := s.gdb.Order("display_order ASC, project_id ASC").Find(&settings).Error
	if err != nil {
		return nil, err
	}
	return settings, nil
}
