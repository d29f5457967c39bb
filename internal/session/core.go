package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"summitflow/terminal/internal/store"
)

// Mux is the slice of the tmux driver the lifecycle needs. Kept narrow so
// tests can fake the mux side while running against a real store.
type Mux interface {
	SessionName(id string) string
	ExistsByID(id string) (bool, error)
	Create(id, workingDir string) error
	Kill(id string, ignoreMissing bool) (bool, error)
	ListPrefixed() ([]string, error)
}

// Core performs atomic create/delete/resurrect of single sessions. Every
// path that leaves the store claiming a live session either has a mux
// session behind it or rolls back before returning.
type Core struct {
	store *store.Store
	mux   Mux
	log   *slog.Logger
}

func NewCore(st *store.Store, mux Mux, log *slog.Logger) *Core {
	if log == nil {
		log = slog.Default()
	}
	return &Core{store: st, mux: mux, log: log.With("module", "session")}
}

type CreateParams struct {
	Name       string
	ProjectID  string
	WorkingDir string
	UserID     string
	Mode       string
	PaneID     string
}

// Create makes a session row plus its mux session and returns the id.
//
// When the project already has a dead row for this mode it is resurrected in
// place, keeping its id and history. The two paths roll back differently on
// mux failure: a resurrected row goes back to dead (it pre-existed), a newly
// inserted row is deleted (no phantom id may remain referenceable).
func (c *Core) Create(p CreateParams) (string, error) {
	mode := p.Mode
	if mode == "" {
		mode = store.ModeShell
	}
	if mode != store.ModeShell && mode != store.ModeAuxiliary {
		return "", fmt.Errorf("invalid session mode %q", mode)
	}

	if p.ProjectID != "" {
		dead, err := c.store.GetDeadSessionByProject(p.ProjectID, mode)
		if err == nil {
			return c.resurrect(dead, p)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}

	id := uuid.NewString()
	sess := store.Session{
		ID:         id,
		Name:       p.Name,
		ProjectID:  p.ProjectID,
		WorkingDir: p.WorkingDir,
		UserID:     p.UserID,
		Mode:       mode,
		PaneID:     p.PaneID,
	}
	if err := c.store.CreateSession(&sess); err != nil {
		return "", err
	}
	if err := c.mux.Create(id, p.WorkingDir); err != nil {
		if delErr := c.store.DeleteSession(id); delErr != nil {
			c.log.Error("rollback delete failed", "session_id", id, "error", delErr)
		}
		return "", fmt.Errorf("create mux session: %w", err)
	}
	c.log.Info("session created", "session_id", id, "project_id", p.ProjectID, "mode", mode)
	return id, nil
}

func (c *Core) resurrect(dead store.Session, p CreateParams) (string, error) {
	workingDir := p.WorkingDir
	if workingDir == "" {
		workingDir = dead.WorkingDir
	}
	if err := c.store.ResurrectSession(dead.ID, p.Name, workingDir); err != nil {
		return "", err
	}
	rebind := map[string]any{}
	if p.PaneID != "" && p.PaneID != dead.PaneID {
		rebind["pane_id"] = p.PaneID
	}
	if p.UserID != "" && p.UserID != dead.UserID {
		rebind["user_id"] = p.UserID
	}
	if len(rebind) > 0 {
		if err := c.store.UpdateSession(dead.ID, rebind); err != nil {
			return "", err
		}
	}
	if err := c.mux.Create(dead.ID, workingDir); err != nil {
		if mdErr := c.store.MarkDead(dead.ID); mdErr != nil {
			c.log.Error("rollback mark dead failed", "session_id", dead.ID, "error", mdErr)
		}
		return "", fmt.Errorf("create mux session: %w", err)
	}
	c.log.Info("session resurrected", "session_id", dead.ID, "project_id", p.ProjectID, "mode", dead.Mode)
	return dead.ID, nil
}

// Delete kills the mux session best-effort and hard-deletes the row. Safe to
// call for ids that no longer exist anywhere.
func (c *Core) Delete(id string) error {
	if _, err := c.mux.Kill(id, true); err != nil {
		c.log.Warn("mux kill failed during delete", "session_id", id, "error", err)
	}
	if err := c.store.DeleteSession(id); err != nil {
		return err
	}
	c.log.Info("session deleted", "session_id", id)
	return nil
}

// EnsureAlive brings the store row and mux session back in sync for one id.
// Called on every WebSocket connect.
func (c *Core) EnsureAlive(id string) (bool, error) {
	row, err := c.store.GetSession(id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	exists, err := c.mux.ExistsByID(id)
	if err != nil {
		return false, err
	}
	if exists {
		if !row.IsAlive {
			if err := c.store.MarkAlive(id); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	if err := c.mux.Create(id, row.WorkingDir); err != nil {
		c.log.Warn("resurrection failed", "session_id", id, "error", err)
		if mdErr := c.store.MarkDead(id); mdErr != nil {
			return false, mdErr
		}
		return false, nil
	}
	if err := c.store.MarkAlive(id); err != nil {
		return false, err
	}
	c.log.Info("mux session recreated", "session_id", id)
	return true, nil
}
