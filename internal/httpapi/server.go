package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"summitflow/terminal/internal/auxiliary"
	"summitflow/terminal/internal/pane"
	"summitflow/terminal/internal/store"
)

// SessionStore is the slice of the store the session read/patch routes and
// the switch hook use.
type SessionStore interface {
	ListSessions(includeDead bool) ([]store.Session, error)
	GetSession(id string) (store.Session, error)
	UpdateSession(id string, fields map[string]any) error
	UpdateTargetSession(id, target string) error
}

// SettingsStore persists per-project terminal settings.
type SettingsStore interface {
	GetProjectSettings(projectID string) (store.ProjectSettings, error)
	UpsertProjectSettings(ps *store.ProjectSettings) error
}

// SessionLifecycle is the single-session slice of the lifecycle core.
type SessionLifecycle interface {
	Delete(id string) error
}

// SessionBatch covers the multi-session operations.
type SessionBatch interface {
	Reset(id string) (string, error)
	ResetAll() (int, error)
	ResetProject(projectID, workingDir string) (map[string]string, error)
	DisableProject(projectID string) error
}

// PaneService is the pane manager surface the pane routes need.
type PaneService interface {
	Create(p pane.CreateParams) (pane.PaneWithSessions, error)
	Get(id string) (pane.PaneWithSessions, error)
	List() ([]pane.PaneWithSessions, error)
	Count() (pane.CountResult, error)
	Update(id string, p pane.UpdateParams) (pane.PaneWithSessions, error)
	UpdateLayout(id string, layout store.PaneLayoutUpdate) (pane.PaneWithSessions, error)
	Delete(id string) error
	Swap(a, b string) error
	UpdateOrder(items []store.PaneOrderUpdate) error
	UpdateLayoutsWithRetry(items []store.PaneLayoutUpdate) error
}

// AuxiliaryService drives the auxiliary process per session.
type AuxiliaryService interface {
	State(id string) (string, error)
	Start(id string) (auxiliary.StartResult, error)
	Status(id string) (auxiliary.StatusResult, error)
}

// TerminalBridge owns a WebSocket connection for its whole lifetime.
type TerminalBridge interface {
	Handle(ctx context.Context, conn *websocket.Conn, sessionID string)
}

type Deps struct {
	Sessions  SessionStore
	Settings  SettingsStore
	Lifecycle SessionLifecycle
	Batch     SessionBatch
	Panes     PaneService
	Auxiliary AuxiliaryService
	Bridge    TerminalBridge
}

type Server struct {
	deps Deps
	mux  *http.ServeMux
	log  *slog.Logger
}

func NewServer(deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{deps: deps, mux: http.NewServeMux(), log: log.With("module", "httpapi")}
	s.registerSessionRoutes()
	s.registerPaneRoutes()
	s.registerProjectRoutes()
	s.registerHookRoute()
	s.registerTerminalWS()
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]any{"status": "healthy", "service": "terminal"})
}

func respondOK(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, payload)
}

// respondDetail is the error envelope: {"detail": "<message>"} with the
// given status code.
func respondDetail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"detail": msg})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondMethodNotAllowed(w http.ResponseWriter) {
	respondDetail(w, http.StatusMethodNotAllowed, "method not allowed")
}

func respondRouteNotFound(w http.ResponseWriter) {
	respondDetail(w, http.StatusNotFound, "route not found")
}

var validationErrs = []error{
	pane.ErrPaneLimitReached,
	pane.ErrInvalidPaneType,
	pane.ErrProjectIDRequired,
	pane.ErrProjectIDForbidden,
	pane.ErrAdhocAuxiliaryMode,
	pane.ErrInvalidActiveMode,
	auxiliary.ErrMuxSessionMissing,
}

func isValidationErr(err error) bool {
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// respondServiceError maps service-layer failures onto the envelope: missing
// rows are 404 with the caller's resource message, validation sentinels are
// 400 with their own text, anything else is a logged 500.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondDetail(w, http.StatusNotFound, notFoundMsg)
	case isValidationErr(err):
		respondDetail(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "error", err)
		respondDetail(w, http.StatusInternalServerError, err.Error())
	}
}
