package bridge

import (
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const (
	reapAttempts = 20
	reapInterval = 10 * time.Millisecond
)

// startPTY forks the attach process with a pseudo-terminal sized cols×rows.
// TERM is pinned so tmux renders for xterm.js regardless of the daemon's
// own environment.
func startPTY(name string, args []string, cols, rows int) (*os.File, int, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, 0, err
	}
	return ptmx, cmd.Process.Pid, nil
}

// killAndReap force-kills the attach child and collects it so no zombie
// outlives the bridge: SIGKILL, bounded non-blocking waits, then one
// blocking wait. "No such process" and "no child processes" mean it was
// already collected and are not errors.
func killAndReap(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(pid, unix.SIGKILL)

	var status unix.WaitStatus
	for i := 0; i < reapAttempts; i++ {
		wpid, err := unix.Wait4(pid, &status, unix.WNOHANG, nil)
		if err == nil && wpid == 0 {
			// Still running.
			time.Sleep(reapInterval)
			continue
		}
		if err == unix.EINTR {
			time.Sleep(reapInterval)
			continue
		}
		// Reaped here, or gone already (ECHILD/ESRCH).
		return
	}

	for {
		if _, err := unix.Wait4(pid, &status, 0, nil); err != unix.EINTR {
			return
		}
	}
}
