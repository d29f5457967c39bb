package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"summitflow/terminal/internal/pane"
	"summitflow/terminal/internal/store"
)

func (s *Server) registerPaneRoutes() {
	s.mux.HandleFunc("/api/terminal/panes", s.handlePaneCollection)
	s.mux.HandleFunc("/api/terminal/panes/", s.handlePaneItem)
	s.mux.HandleFunc("/api/terminal/layout", s.handleBulkLayout)
}

func (s *Server) handlePaneCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handlePaneList(w)
	case http.MethodPost:
		s.handlePaneCreate(w, r)
	default:
		respondMethodNotAllowed(w)
	}
}

func (s *Server) handlePaneItem(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/terminal/panes/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "count":
		if r.Method != http.MethodGet {
			respondMethodNotAllowed(w)
			return
		}
		s.handlePaneCount(w)
	case len(parts) == 1 && parts[0] == "swap":
		if r.Method != http.MethodPost {
			respondMethodNotAllowed(w)
			return
		}
		s.handlePaneSwap(w, r)
	case len(parts) == 1 && parts[0] == "order":
		if r.Method != http.MethodPut {
			respondMethodNotAllowed(w)
			return
		}
		s.handlePaneOrder(w, r)
	case len(parts) == 1 && parts[0] != "":
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			s.handlePaneGet(w, id)
		case http.MethodPatch:
			s.handlePaneUpdate(w, r, id)
		case http.MethodDelete:
			s.handlePaneDelete(w, id)
		default:
			respondMethodNotAllowed(w)
		}
	case len(parts) == 2 && parts[0] != "" && parts[1] == "layout":
		if r.Method != http.MethodPatch {
			respondMethodNotAllowed(w)
			return
		}
		s.handlePaneLayout(w, r, parts[0])
	default:
		respondRouteNotFound(w)
	}
}

func (s *Server) handlePaneList(w http.ResponseWriter) {
	panes, err := s.deps.Panes.List()
	if err != nil {
		s.respondServiceError(w, err, "panes not found")
		return
	}
	items := make([]panePayload, 0, len(panes))
	for _, p := range panes {
		items = append(items, toPanePayload(p))
	}
	respondOK(w, map[string]any{"items": items, "total": len(items), "max_panes": pane.MaxPanes})
}

func (s *Server) handlePaneCount(w http.ResponseWriter) {
	res, err := s.deps.Panes.Count()
	if err != nil {
		s.respondServiceError(w, err, "panes not found")
		return
	}
	respondOK(w, res)
}

func (s *Server) handlePaneCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaneType   string `json:"pane_type"`
		PaneName   string `json:"pane_name"`
		ProjectID  string `json:"project_id"`
		WorkingDir string `json:"working_dir"`
		PaneOrder  *int   `json:"pane_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	// Absent order appends after the last pane.
	order := -1
	if req.PaneOrder != nil {
		order = *req.PaneOrder
	}
	created, err := s.deps.Panes.Create(pane.CreateParams{
		PaneType:   req.PaneType,
		PaneName:   strings.TrimSpace(req.PaneName),
		ProjectID:  req.ProjectID,
		WorkingDir: req.WorkingDir,
		PaneOrder:  order,
	})
	if err != nil {
		s.respondServiceError(w, err, "pane not found")
		return
	}
	respondOK(w, toPanePayload(created))
}

func (s *Server) handlePaneGet(w http.ResponseWriter, id string) {
	pws, err := s.deps.Panes.Get(id)
	if err != nil {
		s.respondServiceError(w, err, paneNotFound(id))
		return
	}
	respondOK(w, toPanePayload(pws))
}

func (s *Server) handlePaneUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		PaneName   *string `json:"pane_name"`
		ActiveMode *string `json:"active_mode"`
		PaneOrder  *int    `json:"pane_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	pws, err := s.deps.Panes.Update(id, pane.UpdateParams{
		PaneName:   req.PaneName,
		ActiveMode: req.ActiveMode,
		PaneOrder:  req.PaneOrder,
	})
	if err != nil {
		s.respondServiceError(w, err, paneNotFound(id))
		return
	}
	respondOK(w, toPanePayload(pws))
}

func (s *Server) handlePaneDelete(w http.ResponseWriter, id string) {
	if err := s.deps.Panes.Delete(id); err != nil {
		s.respondServiceError(w, err, paneNotFound(id))
		return
	}
	respondOK(w, map[string]any{"deleted": true, "id": id})
}

func (s *Server) handlePaneSwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaneIDA string `json:"pane_id_a"`
		PaneIDB string `json:"pane_id_b"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PaneIDA == "" || req.PaneIDB == "" {
		respondDetail(w, http.StatusBadRequest, "pane_id_a and pane_id_b are required")
		return
	}
	if err := s.deps.Panes.Swap(req.PaneIDA, req.PaneIDB); err != nil {
		s.respondServiceError(w, err, "One or both panes not found")
		return
	}
	respondOK(w, map[string]any{"swapped": true, "pane_id_a": req.PaneIDA, "pane_id_b": req.PaneIDB})
}

func (s *Server) handlePaneOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaneOrders []struct {
			PaneID    string `json:"pane_id"`
			PaneOrder int    `json:"pane_order"`
		} `json:"pane_orders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	items := make([]store.PaneOrderUpdate, 0, len(req.PaneOrders))
	for _, it := range req.PaneOrders {
		items = append(items, store.PaneOrderUpdate{PaneID: it.PaneID, PaneOrder: it.PaneOrder})
	}
	if err := s.deps.Panes.UpdateOrder(items); err != nil {
		s.respondServiceError(w, err, "panes not found")
		return
	}
	respondOK(w, map[string]any{"updated": true, "count": len(items)})
}

type layoutItem struct {
	PaneID        string   `json:"pane_id"`
	WidthPercent  *float64 `json:"width_percent"`
	HeightPercent *float64 `json:"height_percent"`
	GridRow       *int     `json:"grid_row"`
	GridCol       *int     `json:"grid_col"`
}

func (it layoutItem) toUpdate() store.PaneLayoutUpdate {
	return store.PaneLayoutUpdate{
		PaneID:        it.PaneID,
		WidthPercent:  it.WidthPercent,
		HeightPercent: it.HeightPercent,
		GridRow:       it.GridRow,
		GridCol:       it.GridCol,
	}
}

func (s *Server) handlePaneLayout(w http.ResponseWriter, r *http.Request, id string) {
	var req layoutItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	req.PaneID = id
	pws, err := s.deps.Panes.UpdateLayout(id, req.toUpdate())
	if err != nil {
		s.respondServiceError(w, err, paneNotFound(id))
		return
	}
	respondOK(w, toPanePayload(pws))
}

// handleBulkLayout updates the geometry of the whole grid in one call and
// returns every pane so the client can render from a consistent snapshot.
func (s *Server) handleBulkLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		respondMethodNotAllowed(w)
		return
	}
	var req struct {
		Layouts []layoutItem `json:"layouts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Layouts) == 0 {
		respondOK(w, []panePayload{})
		return
	}

	items := make([]store.PaneLayoutUpdate, 0, len(req.Layouts))
	for _, it := range req.Layouts {
		items = append(items, it.toUpdate())
	}
	if err := s.deps.Panes.UpdateLayoutsWithRetry(items); err != nil {
		s.respondServiceError(w, err, "panes not found")
		return
	}

	panes, err := s.deps.Panes.List()
	if err != nil {
		s.respondServiceError(w, err, "panes not found")
		return
	}
	out := make([]panePayload, 0, len(panes))
	for _, p := range panes {
		out = append(out, toPanePayload(p))
	}
	respondOK(w, out)
}

func paneNotFound(id string) string {
	return fmt.Sprintf("Pane %s not found", id)
}
