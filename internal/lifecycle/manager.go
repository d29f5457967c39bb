// Package lifecycle coordinates the long-lived jobs of the service and the
// shutdown hooks that must run once they stop. Signal handling is the
// caller's concern; the manager only reacts to its context.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type namedJob struct {
	name string
	fn   func(context.Context) error
}

// Manager runs registered jobs until the first failure or context
// cancellation, then executes shutdown hooks in registration order.
type Manager struct {
	mu        sync.Mutex
	runs      []namedJob
	shutdowns []namedJob
}

func NewManager() *Manager {
	return &Manager{}
}

// AddRun registers a long-lived job. The job must return when its context
// is canceled; a non-nil return cancels every other run job.
func (m *Manager) AddRun(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.runs = append(m.runs, namedJob{name: name, fn: fn})
	m.mu.Unlock()
}

// AddShutdown registers a hook executed after all run jobs have stopped.
// Hooks run in registration order; a failing hook does not stop the rest.
func (m *Manager) AddShutdown(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.shutdowns = append(m.shutdowns, namedJob{name: name, fn: fn})
	m.mu.Unlock()
}

// StartAndWait blocks until every run job has returned, then runs the
// shutdown hooks. The returned error joins the first run failure with any
// hook failures, each prefixed with the job name that produced it.
func (m *Manager) StartAndWait(parent context.Context) error {
	runCtx, cancelRuns := context.WithCancel(parent)
	defer cancelRuns()

	runs := m.snapshot(&m.runs)
	shutdowns := m.snapshot(&m.shutdowns)

	errCh := make(chan error, len(runs))
	var wg sync.WaitGroup
	for _, job := range runs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := job.fn(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", job.name, err)
				cancelRuns()
			}
		}()
	}

	doneCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	var runErr error
	select {
	case <-parent.Done():
		cancelRuns()
	case err := <-errCh:
		runErr = err
		cancelRuns()
	case <-doneCh:
	}

	<-doneCh
	// A job may have failed in the window between the select and the last
	// wg.Done; the buffered channel still holds that error.
	if runErr == nil {
		select {
		case runErr = <-errCh:
		default:
		}
	}

	var shutdownErr error
	for _, job := range shutdowns {
		if err := job.fn(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("%s: %w", job.name, err))
		}
	}
	return errors.Join(runErr, shutdownErr)
}

func (m *Manager) snapshot(src *[]namedJob) []namedJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]namedJob, len(*src))
	copy(out, *src)
	return out
}
