package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// commandTimeout bounds every tmux invocation. A stuck tmux server must not
// hang request handlers or the reconciler.
const commandTimeout = 10 * time.Second

type Exec interface {
	Output(name string, args ...string) ([]byte, error)
	Run(name string, args ...string) error
}

type RealExec struct{}

func (r *RealExec) Output(name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, wrapExecErr(ctx, err, out)
	}
	return out, nil
}

func (r *RealExec) Run(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return wrapExecErr(ctx, err, out)
	}
	return nil
}

func wrapExecErr(ctx context.Context, err error, out []byte) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("command timed out after %s: %w", commandTimeout, err)
	}
	msg := strings.TrimSpace(string(out))
	if msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}
