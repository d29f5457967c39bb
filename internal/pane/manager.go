package pane

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"summitflow/terminal/internal/session"
	"summitflow/terminal/internal/store"
)

// MaxPanes caps the grid. Creation checks the count first; nothing is
// inserted once the cap is reached.
const MaxPanes = 4

const layoutRetryAttempts = 3

// Validation failures surfaced verbatim as HTTP 400 details.
var (
	ErrPaneLimitReached   = errors.New("Maximum 4 panes allowed. Close one to add more.")
	ErrInvalidPaneType    = errors.New("pane_type must be 'project' or 'adhoc'")
	ErrProjectIDRequired  = errors.New("project_id required for project panes")
	ErrProjectIDForbidden = errors.New("project_id must be empty for adhoc panes")
	ErrAdhocAuxiliaryMode = errors.New("Ad-hoc panes do not support auxiliary mode")
	ErrInvalidActiveMode  = errors.New("active_mode must be 'shell' or 'auxiliary'")
)

// PaneWithSessions is a pane plus the session rows it owns, the shape every
// pane endpoint returns.
type PaneWithSessions struct {
	store.Pane
	Sessions []store.Session
}

// Manager owns pane CRUD. Session rows are created inside the pane
// transaction; their mux sessions only come into being on first WebSocket
// connect. Deletion goes through the session core so mux sessions die with
// the pane.
type Manager struct {
	store *store.Store
	core  *session.Core
	log   *slog.Logger
}

func NewManager(st *store.Store, core *session.Core, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: st, core: core, log: log.With("module", "pane")}
}

type CreateParams struct {
	PaneType   string
	PaneName   string
	ProjectID  string
	WorkingDir string
	// PaneOrder < 0 appends after the current last pane.
	PaneOrder int
}

func (m *Manager) Create(p CreateParams) (PaneWithSessions, error) {
	switch p.PaneType {
	case store.PaneTypeProject:
		if p.ProjectID == "" {
			return PaneWithSessions{}, ErrProjectIDRequired
		}
	case store.PaneTypeAdhoc:
		if p.ProjectID != "" {
			return PaneWithSessions{}, ErrProjectIDForbidden
		}
	default:
		return PaneWithSessions{}, ErrInvalidPaneType
	}

	count, err := m.store.CountPanes()
	if err != nil {
		return PaneWithSessions{}, err
	}
	if count >= MaxPanes {
		return PaneWithSessions{}, ErrPaneLimitReached
	}

	sessionName := p.PaneName
	if p.ProjectID != "" {
		sessionName = "Project: " + p.ProjectID
	}
	pane := store.Pane{
		ID:        uuid.NewString(),
		PaneType:  p.PaneType,
		ProjectID: p.ProjectID,
		PaneOrder: p.PaneOrder,
		PaneName:  p.PaneName,
	}
	sessions := []*store.Session{
		{ID: uuid.NewString(), Name: sessionName, WorkingDir: p.WorkingDir, Mode: store.ModeShell},
	}
	if p.PaneType == store.PaneTypeProject {
		sessions = append(sessions, &store.Session{
			ID: uuid.NewString(), Name: sessionName, WorkingDir: p.WorkingDir, Mode: store.ModeAuxiliary,
		})
	}
	if err := m.store.CreatePaneWithSessions(&pane, sessions); err != nil {
		return PaneWithSessions{}, err
	}
	m.log.Info("pane created", "pane_id", pane.ID, "pane_type", pane.PaneType, "project_id", p.ProjectID)

	out := PaneWithSessions{Pane: pane, Sessions: make([]store.Session, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, *sess)
	}
	return out, nil
}

func (m *Manager) Get(id string) (PaneWithSessions, error) {
	pane, err := m.store.GetPane(id)
	if err != nil {
		return PaneWithSessions{}, err
	}
	return m.withSessions(pane)
}

func (m *Manager) List() ([]PaneWithSessions, error) {
	panes, err := m.store.ListPanes()
	if err != nil {
		return nil, err
	}
	out := make([]PaneWithSessions, 0, len(panes))
	for _, pane := range panes {
		pws, err := m.withSessions(pane)
		if err != nil {
			return nil, err
		}
		out = append(out, pws)
	}
	return out, nil
}

type CountResult struct {
	Count    int64 `json:"count"`
	MaxPanes int   `json:"max_panes"`
	AtLimit  bool  `json:"at_limit"`
}

func (m *Manager) Count() (CountResult, error) {
	n, err := m.store.CountPanes()
	if err != nil {
		return CountResult{}, err
	}
	return CountResult{Count: n, MaxPanes: MaxPanes, AtLimit: n >= MaxPanes}, nil
}

type UpdateParams struct {
	PaneName   *string
	ActiveMode *string
	PaneOrder  *int
}

func (m *Manager) Update(id string, p UpdateParams) (PaneWithSessions, error) {
	pane, err := m.store.GetPane(id)
	if err != nil {
		return PaneWithSessions{}, err
	}

	fields := map[string]any{}
	if p.PaneName != nil {
		fields["pane_name"] = *p.PaneName
	}
	if p.ActiveMode != nil {
		if *p.ActiveMode != store.ModeShell && *p.ActiveMode != store.ModeAuxiliary {
			return PaneWithSessions{}, ErrInvalidActiveMode
		}
		if pane.PaneType == store.PaneTypeAdhoc && *p.ActiveMode == store.ModeAuxiliary {
			return PaneWithSessions{}, ErrAdhocAuxiliaryMode
		}
		fields["active_mode"] = *p.ActiveMode
	}
	if p.PaneOrder != nil {
		fields["pane_order"] = *p.PaneOrder
	}
	if len(fields) == 0 {
		return m.withSessions(pane)
	}

	if err := m.store.UpdatePane(id, fields); err != nil {
		return PaneWithSessions{}, err
	}
	updated, err := m.store.GetPane(id)
	if err != nil {
		return PaneWithSessions{}, err
	}
	return m.withSessions(updated)
}

// UpdateLayout patches a single pane's geometry.
func (m *Manager) UpdateLayout(id string, layout store.PaneLayoutUpdate) (PaneWithSessions, error) {
	pane, err := m.store.GetPane(id)
	if err != nil {
		return PaneWithSessions{}, err
	}
	layout.PaneID = pane.ID
	if err := m.store.UpdatePaneLayouts([]store.PaneLayoutUpdate{layout}); err != nil {
		return PaneWithSessions{}, err
	}
	updated, err := m.store.GetPane(id)
	if err != nil {
		return PaneWithSessions{}, err
	}
	return m.withSessions(updated)
}

// Delete tears down the pane's sessions (mux side included) and then removes
// the pane row with whatever session rows remain bound to it.
func (m *Manager) Delete(id string) error {
	if _, err := m.store.GetPane(id); err != nil {
		return err
	}
	sessions, err := m.store.ListSessionsByPane(id)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if err := m.core.Delete(sess.ID); err != nil {
			return err
		}
	}
	if err := m.store.DeletePaneCascade(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	m.log.Info("pane deleted", "pane_id", id, "sessions_removed", len(sessions))
	return nil
}

func (m *Manager) Swap(a, b string) error {
	return m.store.SwapPaneOrders(a, b)
}

func (m *Manager) UpdateOrder(items []store.PaneOrderUpdate) error {
	return m.store.UpdatePaneOrders(items)
}

// UpdateLayoutsWithRetry applies a bulk layout update, retrying on storage
// contention with linear backoff before giving up.
func (m *Manager) UpdateLayoutsWithRetry(items []store.PaneLayoutUpdate) error {
	var lastErr error
	for attempt := 0; attempt < layoutRetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		if lastErr = m.store.UpdatePaneLayouts(items); lastErr == nil {
			return nil
		}
		m.log.Warn("layout update attempt failed", "attempt", attempt+1, "error", lastErr)
	}
	return fmt.Errorf("failed to update layouts after %d attempts: %w", layoutRetryAttempts, lastErr)
}

func (m *Manager) withSessions(pane store.Pane) (PaneWithSessions, error) {
	sessions, err := m.store.ListSessionsByPane(pane.ID)
	if err != nil {
		return PaneWithSessions{}, err
	}
	return PaneWithSessions{Pane: pane, Sessions: sessions}, nil
}
