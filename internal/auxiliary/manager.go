package auxiliary

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"summitflow/terminal/internal/store"
)

// ErrMuxSessionMissing is returned by Start when the base mux session is not
// running, so there is no pane to launch the auxiliary process into.
var ErrMuxSessionMissing = errors.New("mux session not running")

// Mux is the slice of the tmux driver the auxiliary manager needs.
type Mux interface {
	SessionName(id string) string
	Exists(name string) (bool, error)
	IsAuxiliaryRunning(name string) (bool, error)
	SendKeys(name, text string, enter bool) error
	ClientSession(name string) (string, error)
}

// Connection status of the auxiliary session from the client's point of view.
const (
	StatusNone   = "none"
	StatusActive = "active"
	StatusIdle   = "idle"
)

type Options struct {
	// LaunchCommand is typed into the session to start the auxiliary
	// process, e.g. "claude --dangerously-skip-permissions".
	LaunchCommand string
	// VerifyDelay is how long after launch the background check waits
	// before deciding between running and error.
	VerifyDelay time.Duration
}

// Manager owns the auxiliary process state machine. All transitions go
// through the store's conditional update, so concurrent starters and the
// background verifier never need a lock: whoever loses the compare-and-set
// observes the new state and backs off.
type Manager struct {
	store         *store.Store
	mux           Mux
	launchCommand string
	verifyDelay   time.Duration
	log           *slog.Logger
}

func NewManager(st *store.Store, mux Mux, opts Options, log *slog.Logger) *Manager {
	cmd := opts.LaunchCommand
	if cmd == "" {
		cmd = "claude --dangerously-skip-permissions"
	}
	delay := opts.VerifyDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:         st,
		mux:           mux,
		launchCommand: cmd,
		verifyDelay:   delay,
		log:           log.With("module", "auxiliary"),
	}
}

func (m *Manager) State(id string) (string, error) {
	return m.store.GetAuxiliaryState(id)
}

type StartResult struct {
	Started bool   `json:"started"`
	State   string `json:"state"`
}

// Start launches the auxiliary process in the session's mux pane unless one
// is already running. Exactly one of any number of concurrent callers sends
// the launch command; the rest report the state they observed.
func (m *Manager) Start(id string) (StartResult, error) {
	if _, err := m.store.GetSession(id); err != nil {
		return StartResult{}, err
	}
	name := m.mux.SessionName(id)
	exists, err := m.mux.Exists(name)
	if err != nil {
		return StartResult{}, err
	}
	if !exists {
		return StartResult{}, ErrMuxSessionMissing
	}

	// The process check is authoritative over whatever state is stored.
	running, err := m.mux.IsAuxiliaryRunning(name)
	if err != nil {
		return StartResult{}, err
	}
	if running {
		if _, err := m.store.UpdateAuxiliaryState(id, store.AuxStateRunning, ""); err != nil {
			return StartResult{}, err
		}
		return StartResult{Started: false, State: store.AuxStateRunning}, nil
	}

	current, err := m.store.GetAuxiliaryState(id)
	if err != nil {
		return StartResult{}, err
	}
	if current == store.AuxStateStarting {
		return StartResult{Started: false, State: current}, nil
	}
	applied, err := m.store.UpdateAuxiliaryState(id, store.AuxStateStarting, current)
	if err != nil {
		return StartResult{}, err
	}
	if !applied {
		observed, err := m.store.GetAuxiliaryState(id)
		if err != nil {
			return StartResult{}, err
		}
		return StartResult{Started: false, State: observed}, nil
	}

	if err := m.mux.SendKeys(name, m.launchCommand, true); err != nil {
		if _, csErr := m.store.UpdateAuxiliaryState(id, store.AuxStateError, store.AuxStateStarting); csErr != nil {
			m.log.Error("state rollback failed", "session_id", id, "error", csErr)
		}
		return StartResult{}, fmt.Errorf("send launch command: %w", err)
	}
	m.log.Info("auxiliary launch sent", "session_id", id)

	go m.verify(id, name)
	return StartResult{Started: true, State: store.AuxStateStarting}, nil
}

// verify decides, one delay after launch, whether the process actually came
// up. The transition is conditional from starting, so if anything else
// already advanced the state this is a no-op.
func (m *Manager) verify(id, name string) {
	time.Sleep(m.verifyDelay)

	running, err := m.mux.IsAuxiliaryRunning(name)
	if err != nil {
		m.log.Warn("auxiliary verification check failed", "session_id", id, "error", err)
		running = false
	}
	target := store.AuxStateError
	if running {
		target = store.AuxStateRunning
	}
	applied, err := m.store.UpdateAuxiliaryState(id, target, store.AuxStateStarting)
	if err != nil {
		m.log.Error("auxiliary verification update failed", "session_id", id, "error", err)
		return
	}
	if applied {
		m.log.Info("auxiliary verified", "session_id", id, "state", target)
	}
}

type StatusResult struct {
	Status string `json:"status"`
	Target string `json:"target,omitempty"`
}

// Status reports whether the client is currently viewing the auxiliary
// session it last switched to: "none" when no live target is recorded,
// "active" when the attached client is inside it, "idle" when it exists but
// the client is elsewhere.
func (m *Manager) Status(id string) (StatusResult, error) {
	row, err := m.store.GetSession(id)
	if err != nil {
		return StatusResult{}, err
	}
	target := row.LastTargetSession
	if target == "" {
		return StatusResult{Status: StatusNone}, nil
	}
	exists, err := m.mux.Exists(target)
	if err != nil {
		return StatusResult{}, err
	}
	if !exists {
		return StatusResult{Status: StatusNone}, nil
	}
	current, err := m.mux.ClientSession(m.mux.SessionName(id))
	if err != nil {
		return StatusResult{}, err
	}
	if current == target {
		return StatusResult{Status: StatusActive, Target: target}, nil
	}
	return StatusResult{Status: StatusIdle, Target: target}, nil
}
