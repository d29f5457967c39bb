package store

import (
	"errors"

	"gorm.io/gorm"
)

// insertSession fills defaults and computes session_number before inserting.
// Numbering is per (project_id, mode) over live rows only, so resets restart
// the sequence; sessions without a project are always number 1.
func insertSession(tx *gorm.DB, sess *Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	if sess.Mode == "" {
		sess.Mode = ModeShell
	}
	if sess.AuxiliaryState == "" {
		sess.AuxiliaryState = AuxStateNotStarted
	}
	now := nowUnix()
	if sess.CreatedAt <= 0 {
		sess.CreatedAt = now
	}
	if sess.LastAccessedAt <= 0 {
		sess.LastAccessedAt = sess.CreatedAt
	}
	sess.IsAlive = true

	if sess.SessionNumber <= 0 {
		sess.SessionNumber = 1
		if sess.ProjectID != "" {
			var next int
			err := tx.Raw(
				`SELECT COALESCE(MAX(session_number), 0) + 1 FROM sessions WHERE project_id = ? AND mode = ? AND is_alive = ?`,
				sess.ProjectID, sess.Mode, true,
			).Scan(&next).Error
			if err != nil {
				return err
			}
			sess.SessionNumber = next
		}
	}
	return tx.Create(sess).Error
}

func (s *Store) CreateSession(sess *Session) error {
	return s.gdb.Transaction(func(tx *gorm.DB) error {
		return insertSession(tx, sess)
	})
}

func (s *Store) GetSession(id string) (Session, error) {
	var sess Session
	err := s.gdb.Where("id = ?", id).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) ListSessions(includeDead bool) ([]Session, error) {
	q := s.gdb.Model(&Session{})
	if !includeDead {
		q = q.Where("is_alive = ?", true)
	}
	sessions := make([]Session, 0)
	if err := q.Order("created_at ASC, session_number ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateSession applies the given column updates. ErrNotFound when no row
// matches the id.
func (s *Store) UpdateSession(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	tx := s.gdb.Model(&Session{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession hard-deletes the row. Deleting a missing id is not an error.
func (s *Store) DeleteSession(id string) error {
	return s.gdb.Where("id = ?", id).Delete(&Session{}).Error
}

func (s *Store) MarkDead(id string) error {
	return s.gdb.Model(&Session{}).Where("id = ?", id).Update("is_alive", false).Error
}

func (s *Store) MarkAlive(id string) error {
	return s.gdb.Model(&Session{}).Where("id = ?", id).Update("is_alive", true).Error
}

// Touch records client access. Purging keys off this timestamp.
func (s *Store) Touch(id string) error {
	return s.gdb.Model(&Session{}).Where("id = ?", id).Update("last_accessed_at", nowUnix()).Error
}

// PurgeDead deletes rows that have been dead and untouched for more than the
// given number of days. Returns the number of rows removed.
func (s *Store) PurgeDead(olderThanDays int) (int64, error) {
	cutoff := nowUnix() - int64(olderThanDays)*86400
	tx := s.gdb.Where("is_alive = ? AND last_accessed_at < ?", false, cutoff).Delete(&Session{})
	return tx.RowsAffected, tx.Error
}

// ListOrphaned returns the rows PurgeDead would remove, without removing them.
func (s *Store) ListOrphaned(olderThanDays int) ([]Session, error) {
	cutoff := nowUnix() - int64(olderThanDays)*86400
	sessions := make([]Session, 0)
	err := s.gdb.
		Where("is_alive = ? AND last_accessed_at < ?", false, cutoff).
		Order("last_accessed_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSessionByProject returns the live session for (project, mode). When
// duplicates exist the most recently created row wins.
func (s *Store) GetSessionByProject(projectID, mode string) (Session, error) {
	var sess Session
	err := s.gdb.
		Where("project_id = ? AND mode = ? AND is_alive = ?", projectID, mode, true).
		Order("created_at DESC, session_number DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetDeadSessionByProject returns the most recent dead row for (project,
// mode), the resurrection candidate for session creation.
func (s *Store) GetDeadSessionByProject(projectID, mode string) (Session, error) {
	var sess Session
	err := s.gdb.
		Where("project_id = ? AND mode = ? AND is_alive = ?", projectID, mode, false).
		Order("created_at DESC, session_number DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetProjectSessions returns at most one live session per mode for the
// project, keyed by mode. Most recent wins when duplicates exist.
func (s *Store) GetProjectSessions(projectID string) (map[string]Session, error) {
	rows, err := s.GetAllProjectSessions(projectID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Session, 2)
	for i := len(rows) - 1; i >= 0; i-- {
		out[rows[i].Mode] = rows[i]
	}
	return out, nil
}

// GetAllProjectSessions returns every live session for the project, oldest
// first. Cleanup uses it to find duplicate rows beyond the canonical two.
func (s *Store) GetAllProjectSessions(projectID string) ([]Session, error) {
	sessions := make([]Session, 0)
	err := s.gdb.
		Where("project_id = ? AND is_alive = ?", projectID, true).
		Order("created_at ASC, session_number ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) ListSessionsByPane(paneID string) ([]Session, error) {
	sessions := make([]Session, 0)
	err := s.gdb.
		Where("pane_id = ?", paneID).
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateTargetSession stores the auxiliary mux session name the client
// switched to. An empty target clears the column.
func (s *Store) UpdateTargetSession(id, target string) error {
	tx := s.gdb.Model(&Session{}).Where("id = ?", id).Update("last_target_session", target)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAuxiliaryState transitions the auxiliary state machine. With expected
// set the update applies only when the current state matches, which is the
// sole primitive concurrent starters race on. Returns whether the update
// applied.
func (s *Store) UpdateAuxiliaryState(id, newState, expected string) (bool, error) {
	q := s.gdb.Model(&Session{}).Where("id = ?", id)
	if expected != "" {
		q = q.Where("auxiliary_state = ?", expected)
	}
	tx := q.Update("auxiliary_state", newState)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (s *Store) GetAuxiliaryState(id string) (string, error) {
	var state string
	tx := s.gdb.Raw(`SELECT auxiliary_state FROM sessions WHERE id = ?`, id).Scan(&state)
	if tx.Error != nil {
		return "", tx.Error
	}
	if tx.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return state, nil
}

// ResurrectSession revives a dead row in place, keeping its id and access
// history. Only the fields a fresh creation would have set are replaced.
func (s *Store) ResurrectSession(id, name, workingDir string) error {
	tx := s.gdb.Model(&Session{}).Where("id = ?", id).Updates(map[string]any{
		"name":        name,
		"working_dir": workingDir,
		"is_alive":    true,
	})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
