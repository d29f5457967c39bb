package bridge

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/creack/pty"

	"summitflow/terminal/internal/protocol"
	"summitflow/terminal/internal/store"
	"summitflow/terminal/internal/tmux"
)

const writeTimeout = 5 * time.Second

// Lifecycle heals the session on connect.
type Lifecycle interface {
	EnsureAlive(id string) (bool, error)
}

// Sessions is the slice of the store the bridge touches.
type Sessions interface {
	GetSession(id string) (store.Session, error)
	Touch(id string) error
	UpdateTargetSession(id, target string) error
}

// Mux is the slice of the tmux driver the bridge drives.
type Mux interface {
	SessionName(id string) string
	Exists(name string) (bool, error)
	Create(id, workingDir string) error
	CaptureScrollback(name string) (string, error)
	ResizeWindow(name string, cols, rows int) error
	IsAuxiliaryRunning(name string) (bool, error)
	AttachCommand(baseName, targetName string) (string, []string)
	DefaultSize() (cols, rows int)
}

type Options struct {
	// HandshakeTimeout bounds the wait for the client's first resize
	// control before scrollback is replayed at default dimensions.
	HandshakeTimeout time.Duration
	FlushInterval    time.Duration
	BatchLimit       int
	ReadSize         int
	// AuxLaunch is the full command line typed into auxiliary-mode panes
	// when no auxiliary process is running yet.
	AuxLaunch      string
	AuxLaunchDelay time.Duration
}

// Server bridges WebSocket connections to PTY-attached mux sessions. One
// Handle call owns one connection for its whole life.
type Server struct {
	lifecycle Lifecycle
	sessions  Sessions
	mux       Mux
	registry  *Registry
	opts      Options
	log       *slog.Logger

	// spawn is swappable so tests can substitute a plain fd pair for a
	// real pseudo-terminal.
	spawn func(name string, args []string, cols, rows int) (*os.File, int, error)
}

func NewServer(lc Lifecycle, sessions Sessions, mux Mux, reg *Registry, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultBatchLimit
	}
	if opts.ReadSize <= 0 {
		opts.ReadSize = defaultReadSize
	}
	if opts.AuxLaunchDelay <= 0 {
		opts.AuxLaunchDelay = time.Second
	}
	return &Server{
		lifecycle: lc,
		sessions:  sessions,
		mux:       mux,
		registry:  reg,
		opts:      opts,
		log:       log.With("module", "bridge"),
		spawn:     startPTY,
	}
}

// Registry exposes the active-bridge registry for observers.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Handle runs the bridge for one connection: heal the session, attach a
// PTY, pump both directions, then tear the child down. The mux session is
// never killed here; surviving disconnects is the point.
func (s *Server) Handle(ctx context.Context, conn *websocket.Conn, sessionID string) {
	log := s.log.With("session_id", sessionID)

	alive, err := s.lifecycle.EnsureAlive(sessionID)
	if err != nil {
		log.Warn("ensure alive failed", "error", err)
		alive = false
	}
	if !alive {
		log.Warn("terminal session dead")
		_ = conn.Close(protocol.CloseSessionDead, protocol.SessionDeadReason())
		return
	}

	if err := s.sessions.Touch(sessionID); err != nil {
		log.Warn("touch failed", "error", err)
	}
	row, err := s.sessions.GetSession(sessionID)
	if err != nil {
		log.Warn("session row read failed", "error", err)
		_ = conn.Close(protocol.CloseSessionDead, protocol.SessionDeadReason())
		return
	}
	if err := s.mux.Create(sessionID, row.WorkingDir); err != nil {
		log.Error("mux create failed", "error", err)
		_ = conn.Close(protocol.CloseSessionDead, protocol.SessionDeadReason())
		return
	}

	baseName := s.mux.SessionName(sessionID)
	target := s.resolveTarget(row.LastTargetSession, log)
	name, args := s.mux.AttachCommand(baseName, target)

	cols, rows := s.mux.DefaultSize()
	ptmx, pid, err := s.spawn(name, args, cols, rows)
	if err != nil {
		log.Error("pty spawn failed", "error", err)
		_ = conn.Close(protocol.CloseSessionDead, protocol.SessionDeadReason())
		return
	}
	log.Info("terminal connected", "mux_session", baseName, "target", target, "pid", pid)

	connCtx, connCancel := context.WithCancel(ctx)
	s.registry.Add(Entry{SessionID: sessionID, MuxName: baseName, PID: pid, MasterFD: ptmx.Fd()})

	firstResize := make(chan struct{})
	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		defer connCancel()
		s.inputLoop(connCtx, conn, ptmx, baseName, firstResize, log)
	}()

	defer func() {
		connCancel()
		<-inputDone
		killAndReap(pid)
		_ = ptmx.Close()
		s.registry.Remove(sessionID)
		log.Info("terminal cleanup complete")
	}()

	// Scrollback waits for the first resize so it renders at the real
	// dimensions; without one the defaults stand.
	select {
	case <-firstResize:
	case <-time.After(s.opts.HandshakeTimeout):
		log.Debug("no resize handshake, keeping defaults", "cols", cols, "rows", rows)
	case <-connCtx.Done():
	}

	if sb, err := s.mux.CaptureScrollback(baseName); err != nil {
		log.Warn("scrollback capture failed", "error", err)
	} else if sb != "" {
		_ = s.writeText(connCtx, conn, sb)
	}

	if row.Mode == store.ModeAuxiliary && s.opts.AuxLaunch != "" {
		go s.autostart(connCtx, ptmx, baseName, log)
	}

	pump := newOutputPump(ptmx, func(text string) error {
		return s.writeText(connCtx, conn, text)
	}, s.opts, log)
	runErr := pump.Run(connCtx)

	if pump.sawExit {
		// The attached session ended; a stale switch target would
		// re-trigger on the next connect.
		log.Info("mux session exited")
		if err := s.sessions.UpdateTargetSession(sessionID, ""); err != nil {
			log.Warn("clear target failed", "error", err)
		}
	}

	switch {
	case runErr == nil:
		_ = conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(runErr, context.Canceled):
		// Client went away; nothing left to send.
		log.Info("terminal disconnected")
	default:
		log.Error("terminal stream error", "error", runErr)
		_ = conn.Close(websocket.StatusInternalError, closeReason(runErr))
	}
}

// inputLoop forwards client frames to the PTY. Text frames that parse as
// control messages steer the terminal instead; the first valid resize also
// completes the scrollback handshake.
func (s *Server) inputLoop(ctx context.Context, conn *websocket.Conn, ptmx *os.File, baseName string, firstResize chan<- struct{}, log *slog.Logger) {
	resized := false
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ == websocket.MessageBinary {
			if _, err := ptmx.Write(data); err != nil {
				return
			}
			continue
		}
		ctl, ok := protocol.ParseControl(data)
		if !ok {
			if _, err := ptmx.Write(data); err != nil {
				return
			}
			continue
		}
		if ctl.Resize.Valid() {
			s.applyResize(ptmx, baseName, ctl.Resize.Cols, ctl.Resize.Rows, log)
			if !resized {
				resized = true
				close(firstResize)
			}
		}
		if ctl.Refresh {
			if _, err := ptmx.Write([]byte{0x0c}); err != nil {
				return
			}
		}
	}
}

func (s *Server) applyResize(ptmx *os.File, baseName string, cols, rows int, log *slog.Logger) {
	if err := pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		log.Warn("pty resize failed", "error", err)
	}
	if err := s.mux.ResizeWindow(baseName, cols, rows); err != nil {
		log.Warn("mux resize failed", "error", err)
	}
	log.Debug("terminal resized", "cols", cols, "rows", rows)
}

// autostart types the auxiliary launch command into a fresh auxiliary pane.
// The delay lets the shell prompt settle first.
func (s *Server) autostart(ctx context.Context, ptmx *os.File, baseName string, log *slog.Logger) {
	running, err := s.mux.IsAuxiliaryRunning(baseName)
	if err != nil {
		log.Warn("auxiliary probe failed", "error", err)
		return
	}
	if running {
		return
	}
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.opts.AuxLaunchDelay):
	}
	if _, err := ptmx.Write([]byte(s.opts.AuxLaunch + "\n")); err == nil {
		log.Info("auxiliary autostarted", "mux_session", baseName)
	}
}

// resolveTarget gates the stored switch target: it must still be a valid
// name and still exist in the mux, otherwise the attach goes to the base
// session alone.
func (s *Server) resolveTarget(stored string, log *slog.Logger) string {
	if stored == "" {
		return ""
	}
	if !tmux.ValidName(stored) {
		log.Warn("ignoring invalid stored target", "target", stored)
		return ""
	}
	exists, err := s.mux.Exists(stored)
	if err != nil {
		log.Warn("stored target probe failed", "target", stored, "error", err)
		return ""
	}
	if !exists {
		return ""
	}
	return stored
}

func (s *Server) writeText(ctx context.Context, conn *websocket.Conn, text string) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, []byte(text))
}

// closeReason truncates err for a close frame; the payload caps reasons at
// 123 bytes.
func closeReason(err error) string {
	msg := err.Error()
	if len(msg) > 123 {
		msg = msg[:123]
	}
	return msg
}
