package httpapi

import (
	"errors"
	"net"
	"net/http"

	"summitflow/terminal/internal/store"
	"summitflow/terminal/internal/tmux"
)

// Hook response statuses. tmux fires the hook as a background curl and
// discards the body; the status exists for operators and tests.
const (
	hookStored   = "stored"
	hookCleared  = "cleared"
	hookIgnored  = "ignored"
	hookRejected = "rejected"
)

func (s *Server) registerHookRoute() {
	s.mux.HandleFunc("/api/internal/session-switch", s.handleSessionSwitch)
}

// handleSessionSwitch ingests client-session-changed callbacks from the
// multiplexer and keeps last_target_session current. Every outcome is a 200
// so the fire-and-forget caller never sees a failure.
func (s *Server) handleSessionSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w)
		return
	}
	if !isLoopback(r.RemoteAddr) {
		s.log.Warn("session switch hook from non-loopback peer", "remote_addr", r.RemoteAddr)
		respondOK(w, map[string]any{"status": hookRejected})
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	// Empty from means an initial attach rather than a switch; it falls
	// through to ignored below.
	if to == "" || !tmux.ValidName(to) || (from != "" && !tmux.ValidName(from)) {
		respondOK(w, map[string]any{"status": hookRejected})
		return
	}

	id, ok := tmux.StripPrefix(from)
	if !ok {
		respondOK(w, map[string]any{"status": hookIgnored})
		return
	}

	// Switching to another of our base sessions means the client left the
	// auxiliary target, not that it entered one.
	status, target := hookStored, to
	if _, base := tmux.StripPrefix(to); base {
		status, target = hookCleared, ""
	}
	if err := s.deps.Sessions.UpdateTargetSession(id, target); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Error("target session update failed", "session_id", id, "error", err)
		}
		respondOK(w, map[string]any{"status": hookIgnored})
		return
	}
	s.log.Debug("session switch recorded", "session_id", id, "status", status, "target", target)
	respondOK(w, map[string]any{"status": status, "session_id": id, "target": target})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
