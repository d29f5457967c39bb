package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"summitflow/terminal/internal/store"
)

func (s *Server) registerSessionRoutes() {
	s.mux.HandleFunc("/api/terminal/sessions", s.handleSessionCollection)
	s.mux.HandleFunc("/api/terminal/sessions/", s.handleSessionItem)
	s.mux.HandleFunc("/api/terminal/reset-all", s.handleResetAll)
}

func (s *Server) handleSessionCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSessionList(w)
	case http.MethodPost:
		// Sessions are created through panes so the pane cap holds; the
		// direct route stays registered only to explain itself.
		respondDetail(w, http.StatusBadRequest,
			"Direct session creation is disabled. Use POST /api/terminal/panes instead. "+
				"Sessions are now managed through panes (max 4 panes allowed).")
	default:
		respondMethodNotAllowed(w)
	}
}

func (s *Server) handleSessionItem(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/terminal/sessions/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			s.handleSessionGet(w, id)
		case http.MethodPatch:
			s.handleSessionUpdate(w, r, id)
		case http.MethodDelete:
			s.handleSessionDelete(w, id)
		default:
			respondMethodNotAllowed(w)
		}
	case len(parts) == 2 && parts[0] != "" && parts[1] == "reset":
		if r.Method != http.MethodPost {
			respondMethodNotAllowed(w)
			return
		}
		s.handleSessionReset(w, parts[0])
	case len(parts) == 3 && parts[0] != "" && parts[1] == "auxiliary":
		s.handleAuxiliary(w, r, parts[0], parts[2])
	default:
		respondRouteNotFound(w)
	}
}

func (s *Server) handleSessionList(w http.ResponseWriter) {
	rows, err := s.deps.Sessions.ListSessions(false)
	if err != nil {
		s.respondServiceError(w, err, "sessions not found")
		return
	}
	items := make([]sessionPayload, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSessionPayload(row))
	}
	respondOK(w, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, id string) {
	row, err := s.deps.Sessions.GetSession(id)
	if err != nil {
		s.respondServiceError(w, err, sessionNotFound(id))
		return
	}
	respondOK(w, toSessionPayload(row))
}

func (s *Server) handleSessionUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Name *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	row, err := s.deps.Sessions.GetSession(id)
	if err != nil {
		s.respondServiceError(w, err, sessionNotFound(id))
		return
	}

	name := ""
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if name == "" {
		respondOK(w, toSessionPayload(row))
		return
	}

	if err := s.deps.Sessions.UpdateSession(id, map[string]any{"name": name}); err != nil {
		s.respondServiceError(w, err, sessionNotFound(id))
		return
	}
	updated, err := s.deps.Sessions.GetSession(id)
	if err != nil {
		s.respondServiceError(w, err, sessionNotFound(id))
		return
	}
	respondOK(w, toSessionPayload(updated))
}

// handleSessionDelete is idempotent: deleting an id that is already gone
// still reports deleted.
func (s *Server) handleSessionDelete(w http.ResponseWriter, id string) {
	if err := s.deps.Lifecycle.Delete(id); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.respondServiceError(w, err, sessionNotFound(id))
		return
	}
	respondOK(w, map[string]any{"deleted": true, "id": id})
}

func (s *Server) handleSessionReset(w http.ResponseWriter, id string) {
	newID, err := s.deps.Batch.Reset(id)
	if err != nil {
		s.respondServiceError(w, err, sessionNotFound(id))
		return
	}
	row, err := s.deps.Sessions.GetSession(newID)
	if err != nil {
		s.log.Error("reset session row missing", "session_id", newID, "error", err)
		respondDetail(w, http.StatusInternalServerError, "Session reset but not found")
		return
	}
	respondOK(w, toSessionPayload(row))
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondMethodNotAllowed(w)
		return
	}
	count, err := s.deps.Batch.ResetAll()
	if err != nil {
		s.respondServiceError(w, err, "sessions not found")
		return
	}
	respondOK(w, map[string]any{"reset_count": count})
}

func (s *Server) handleAuxiliary(w http.ResponseWriter, r *http.Request, id, action string) {
	switch action {
	case "state":
		if r.Method != http.MethodGet {
			respondMethodNotAllowed(w)
			return
		}
		state, err := s.deps.Auxiliary.State(id)
		if err != nil {
			s.respondServiceError(w, err, sessionNotFound(id))
			return
		}
		respondOK(w, map[string]any{"session_id": id, "state": state})
	case "start":
		if r.Method != http.MethodPost {
			respondMethodNotAllowed(w)
			return
		}
		res, err := s.deps.Auxiliary.Start(id)
		if err != nil {
			s.respondServiceError(w, err, sessionNotFound(id))
			return
		}
		respondOK(w, res)
	case "status":
		if r.Method != http.MethodGet {
			respondMethodNotAllowed(w)
			return
		}
		res, err := s.deps.Auxiliary.Status(id)
		if err != nil {
			s.respondServiceError(w, err, sessionNotFound(id))
			return
		}
		respondOK(w, res)
	default:
		respondRouteNotFound(w)
	}
}

func sessionNotFound(id string) string {
	return fmt.Sprintf("Session %s not found", id)
}
