package session

import (
	"errors"
	"fmt"
	"log/slog"

	"summitflow/terminal/internal/store"
)

// Batch implements multi-session operations on top of Core: reset,
// project-wide reset, reset-all, and project disable.
type Batch struct {
	core  *Core
	store *store.Store
	log   *slog.Logger
}

func NewBatch(core *Core, st *store.Store, log *slog.Logger) *Batch {
	if log == nil {
		log = slog.Default()
	}
	return &Batch{core: core, store: st, log: log.With("module", "session")}
}

// Reset recreates one session, preserving its identity fields. The returned
// id may differ from the input: the delete-then-create sequence can land on
// a resurrected row for the same (project, mode).
func (b *Batch) Reset(id string) (string, error) {
	row, err := b.store.GetSession(id)
	if errors.Is(err, store.ErrNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if err := b.core.Delete(id); err != nil {
		return "", err
	}
	newID, err := b.core.Create(CreateParams{
		Name:       row.Name,
		ProjectID:  row.ProjectID,
		WorkingDir: row.WorkingDir,
		UserID:     row.UserID,
		Mode:       row.Mode,
		PaneID:     row.PaneID,
	})
	if err != nil {
		return "", fmt.Errorf("recreate session: %w", err)
	}
	b.log.Info("session reset", "old_id", id, "new_id", newID)
	return newID, nil
}

// ResetProject deletes every live session for the project, then creates
// exactly one per mode. Rows beyond the canonical two are counted as cleaned
// orphans. Returns the new session ids keyed by mode.
func (b *Batch) ResetProject(projectID, workingDir string) (map[string]string, error) {
	rows, err := b.store.GetAllProjectSessions(projectID)
	if err != nil {
		return nil, err
	}

	// Oldest first, so the last write per mode is the most recent row.
	byMode := make(map[string]store.Session, 2)
	for _, row := range rows {
		byMode[row.Mode] = row
	}
	if extra := len(rows) - len(byMode); extra > 0 {
		b.log.Info("cleaning duplicate project sessions", "project_id", projectID, "orphans", extra)
	}

	for _, row := range rows {
		if err := b.core.Delete(row.ID); err != nil {
			return nil, err
		}
	}

	created := make(map[string]string, 2)
	for _, mode := range []string{store.ModeShell, store.ModeAuxiliary} {
		old, hadOld := byMode[mode]
		wd := workingDir
		if wd == "" {
			wd = old.WorkingDir
		}
		name := old.Name
		if name == "" {
			name = projectID + "-" + mode
		}
		params := CreateParams{
			Name:       name,
			ProjectID:  projectID,
			WorkingDir: wd,
			Mode:       mode,
		}
		if hadOld {
			params.UserID = old.UserID
			params.PaneID = old.PaneID
		}
		id, err := b.core.Create(params)
		if err != nil {
			return nil, err
		}
		created[mode] = id
	}
	b.log.Info("project reset", "project_id", projectID)
	return created, nil
}

// ResetAll resets every live session and returns how many were processed.
// Individual failures are logged and skipped so one broken session cannot
// wedge the whole sweep.
func (b *Batch) ResetAll() (int, error) {
	rows, err := b.store.ListSessions(false)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, row := range rows {
		if _, err := b.Reset(row.ID); err != nil {
			b.log.Warn("reset failed", "session_id", row.ID, "error", err)
			continue
		}
		count++
	}
	b.log.Info("reset all sessions", "count", count)
	return count, nil
}

// DisableProject tears down the project's live sessions and records
// enabled=false in its settings.
func (b *Batch) DisableProject(projectID string) error {
	rows, err := b.store.GetAllProjectSessions(projectID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := b.core.Delete(row.ID); err != nil {
			return err
		}
	}

	ps, err := b.store.GetProjectSettings(projectID)
	if errors.Is(err, store.ErrNotFound) {
		ps = store.ProjectSettings{ProjectID: projectID}
	} else if err != nil {
		return err
	}
	ps.Enabled = false
	if err := b.store.UpsertProjectSettings(&ps); err != nil {
		return err
	}
	b.log.Info("project disabled", "project_id", projectID, "sessions_removed", len(rows))
	return nil
}
