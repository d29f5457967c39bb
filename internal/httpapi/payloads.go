package httpapi

import (
	"time"

	"summitflow/terminal/internal/pane"
	"summitflow/terminal/internal/store"
)

// The store keeps optional strings as '' and timestamps as unix seconds;
// responses carry null and RFC 3339 instead.

type sessionPayload struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	UserID            *string `json:"user_id"`
	ProjectID         *string `json:"project_id"`
	WorkingDir        *string `json:"working_dir"`
	PaneID            *string `json:"pane_id"`
	Mode              string  `json:"mode"`
	SessionNumber     int     `json:"session_number"`
	IsAlive           bool    `json:"is_alive"`
	CreatedAt         *string `json:"created_at"`
	LastAccessedAt    *string `json:"last_accessed_at"`
	LastTargetSession *string `json:"last_target_session"`
	AuxiliaryState    string  `json:"auxiliary_state"`
}

// sessionSummary is the reduced shape embedded in pane payloads.
type sessionSummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Mode          string  `json:"mode"`
	SessionNumber int     `json:"session_number"`
	IsAlive       bool    `json:"is_alive"`
	WorkingDir    *string `json:"working_dir"`
}

type panePayload struct {
	ID            string           `json:"id"`
	PaneType      string           `json:"pane_type"`
	ProjectID     *string          `json:"project_id"`
	PaneOrder     int              `json:"pane_order"`
	PaneName      string           `json:"pane_name"`
	ActiveMode    string           `json:"active_mode"`
	CreatedAt     *string          `json:"created_at"`
	Sessions      []sessionSummary `json:"sessions"`
	WidthPercent  float64          `json:"width_percent"`
	HeightPercent float64          `json:"height_percent"`
	GridRow       int              `json:"grid_row"`
	GridCol       int              `json:"grid_col"`
}

type settingsPayload struct {
	ProjectID    string  `json:"project_id"`
	Enabled      bool    `json:"enabled"`
	ActiveMode   string  `json:"active_mode"`
	DisplayOrder int     `json:"display_order"`
	UpdatedAt    *string `json:"updated_at"`
}

func toSessionPayload(row store.Session) sessionPayload {
	return sessionPayload{
		ID:                row.ID,
		Name:              row.Name,
		UserID:            optionalString(row.UserID),
		ProjectID:         optionalString(row.ProjectID),
		WorkingDir:        optionalString(row.WorkingDir),
		PaneID:            optionalString(row.PaneID),
		Mode:              row.Mode,
		SessionNumber:     row.SessionNumber,
		IsAlive:           row.IsAlive,
		CreatedAt:         optionalTime(row.CreatedAt),
		LastAccessedAt:    optionalTime(row.LastAccessedAt),
		LastTargetSession: optionalString(row.LastTargetSession),
		AuxiliaryState:    row.AuxiliaryState,
	}
}

func toSessionSummary(row store.Session) sessionSummary {
	return sessionSummary{
		ID:            row.ID,
		Name:          row.Name,
		Mode:          row.Mode,
		SessionNumber: row.SessionNumber,
		IsAlive:       row.IsAlive,
		WorkingDir:    optionalString(row.WorkingDir),
	}
}

func toPanePayload(pws pane.PaneWithSessions) panePayload {
	sessions := make([]sessionSummary, 0, len(pws.Sessions))
	for _, row := range pws.Sessions {
		sessions = append(sessions, toSessionSummary(row))
	}
	return panePayload{
		ID:            pws.ID,
		PaneType:      pws.PaneType,
		ProjectID:     optionalString(pws.ProjectID),
		PaneOrder:     pws.PaneOrder,
		PaneName:      pws.PaneName,
		ActiveMode:    pws.ActiveMode,
		CreatedAt:     optionalTime(pws.CreatedAt),
		Sessions:      sessions,
		WidthPercent:  pws.WidthPercent,
		HeightPercent: pws.HeightPercent,
		GridRow:       pws.GridRow,
		GridCol:       pws.GridCol,
	}
}

func toSettingsPayload(ps store.ProjectSettings) settingsPayload {
	return settingsPayload{
		ProjectID:    ps.ProjectID,
		Enabled:      ps.Enabled,
		ActiveMode:   ps.ActiveMode,
		DisplayOrder: ps.DisplayOrder,
		UpdatedAt:    optionalTime(ps.UpdatedAt),
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func optionalTime(unix int64) *string {
	if unix == 0 {
		return nil
	}
	v := time.Unix(unix, 0).UTC().Format(time.RFC3339)
	return &v
}
