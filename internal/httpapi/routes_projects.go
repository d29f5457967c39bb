package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"summitflow/terminal/internal/store"
)

func (s *Server) registerProjectRoutes() {
	s.mux.HandleFunc("/api/terminal/projects/", s.handleProjectItem)
}

func (s *Server) handleProjectItem(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/terminal/projects/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		respondRouteNotFound(w)
		return
	}
	projectID := parts[0]
	switch parts[1] {
	case "settings":
		switch r.Method {
		case http.MethodGet:
			s.handleSettingsGet(w, projectID)
		case http.MethodPut:
			s.handleSettingsPut(w, r, projectID)
		default:
			respondMethodNotAllowed(w)
		}
	case "reset":
		if r.Method != http.MethodPost {
			respondMethodNotAllowed(w)
			return
		}
		s.handleProjectReset(w, r, projectID)
	case "disable":
		if r.Method != http.MethodPost {
			respondMethodNotAllowed(w)
			return
		}
		s.handleProjectDisable(w, projectID)
	default:
		respondRouteNotFound(w)
	}
}

// settingsOrDefaults returns the stored row, or the implicit defaults for a
// project that never opted in.
func (s *Server) settingsOrDefaults(projectID string) (store.ProjectSettings, error) {
	ps, err := s.deps.Settings.GetProjectSettings(projectID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ProjectSettings{ProjectID: projectID, ActiveMode: store.ModeShell}, nil
	}
	return ps, err
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, projectID string) {
	ps, err := s.settingsOrDefaults(projectID)
	if err != nil {
		s.respondServiceError(w, err, "project settings not found")
		return
	}
	respondOK(w, toSettingsPayload(ps))
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request, projectID string) {
	var req struct {
		Enabled      *bool   `json:"enabled"`
		ActiveMode   *string `json:"active_mode"`
		DisplayOrder *int    `json:"display_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ActiveMode != nil && *req.ActiveMode != store.ModeShell && *req.ActiveMode != store.ModeAuxiliary {
		respondDetail(w, http.StatusBadRequest, "active_mode must be 'shell' or 'auxiliary'")
		return
	}

	ps, err := s.settingsOrDefaults(projectID)
	if err != nil {
		s.respondServiceError(w, err, "project settings not found")
		return
	}
	if req.Enabled != nil {
		ps.Enabled = *req.Enabled
	}
	if req.ActiveMode != nil {
		ps.ActiveMode = *req.ActiveMode
	}
	if req.DisplayOrder != nil {
		ps.DisplayOrder = *req.DisplayOrder
	}
	if err := s.deps.Settings.UpsertProjectSettings(&ps); err != nil {
		s.respondServiceError(w, err, "project settings not found")
		return
	}
	respondOK(w, toSettingsPayload(ps))
}

// handleProjectReset recreates the project's session pair and flips the
// active mode back to shell, mirroring what a fresh project looks like.
func (s *Server) handleProjectReset(w http.ResponseWriter, r *http.Request, projectID string) {
	var req struct {
		WorkingDir string `json:"working_dir"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.deps.Batch.ResetProject(projectID, req.WorkingDir)
	if err != nil {
		s.respondServiceError(w, err, "project not found")
		return
	}

	ps, err := s.settingsOrDefaults(projectID)
	if err == nil {
		ps.ActiveMode = store.ModeShell
		err = s.deps.Settings.UpsertProjectSettings(&ps)
	}
	if err != nil {
		s.log.Warn("mode reset failed after project reset", "project_id", projectID, "error", err)
	}

	respondOK(w, map[string]any{
		"project_id":           projectID,
		"shell_session_id":     created[store.ModeShell],
		"auxiliary_session_id": created[store.ModeAuxiliary],
		"mode":                 store.ModeShell,
	})
}

func (s *Server) handleProjectDisable(w http.ResponseWriter, projectID string) {
	if err := s.deps.Batch.DisableProject(projectID); err != nil {
		s.respondServiceError(w, err, "project not found")
		return
	}
	respondOK(w, map[string]any{"project_id": projectID, "disabled": true})
}
