package httpapi

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

func (s *Server) registerTerminalWS() {
	s.mux.HandleFunc("/ws/terminal/", s.handleTerminalWS)
}

// handleTerminalWS upgrades the connection and hands it to the bridge, which
// owns it until teardown. Errors after the upgrade travel over the socket as
// close frames, not HTTP statuses.
func (s *Server) handleTerminalWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/terminal/")
	if id == "" || strings.Contains(id, "/") {
		respondRouteNotFound(w)
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "session_id", id, "error", err)
		return
	}
	conn.SetReadLimit(1 << 20)
	s.deps.Bridge.Handle(r.Context(), conn, id)
}
