package protocol

import (
	"bytes"
	"encoding/json"
)

// Control is one client-to-server control frame. Everything the browser
// sends that is not a control frame is keystrokes for the PTY.
type Control struct {
	Resize  *Resize `json:"resize,omitempty"`
	Refresh bool    `json:"refresh,omitempty"`
}

type Resize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Valid reports whether the dimensions are usable for a winsize ioctl.
func (r *Resize) Valid() bool {
	return r != nil && r.Cols > 0 && r.Rows > 0
}

// ParseControl decodes data as a control frame. The second return is false
// when the frame is terminal input instead: not a JSON object, malformed
// JSON (pasted text often looks like JSON), or an object without a known
// control key. Input must never be swallowed, so anything ambiguous falls
// through as input.
func ParseControl(data []byte) (Control, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Control{}, false
	}
	var ctl Control
	if err := json.Unmarshal(trimmed, &ctl); err != nil {
		return Control{}, false
	}
	if ctl.Resize == nil && !ctl.Refresh {
		return Control{}, false
	}
	return ctl, true
}

// Close codes for the terminal WebSocket. 4000 is the application range;
// 1011 is the standard internal-error code and is used as-is.
const CloseSessionDead = 4000

// ClosePayload is the JSON close reason carried by CloseSessionDead. Close
// reasons ride in the close frame itself, which caps them at 123 bytes, so
// the message stays short.
type ClosePayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SessionDeadReason renders the close reason for a session that does not
// exist or could not be restored on connect.
func SessionDeadReason() string {
	return mustJSON(ClosePayload{
		Error:   "session_dead",
		Message: "Session not found or could not be restored",
	})
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
