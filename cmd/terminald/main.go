package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"summitflow/terminal/internal/auxiliary"
	"summitflow/terminal/internal/bridge"
	"summitflow/terminal/internal/command"
	"summitflow/terminal/internal/config"
	"summitflow/terminal/internal/httpapi"
	"summitflow/terminal/internal/lifecycle"
	"summitflow/terminal/internal/logging"
	"summitflow/terminal/internal/pane"
	"summitflow/terminal/internal/session"
	"summitflow/terminal/internal/store"
	"summitflow/terminal/internal/tmux"
)

var version = "dev"
var buildTime = "unknown"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig: config.LoadConfig,
		RunServe: func(ctx context.Context, cfg config.Config) error {
			return runServe(ctx, os.Stdout, cfg)
		},
		RunMigrateUp: runMigrateUp,
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Component: "terminald"}).Error("terminald failed", "err", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, out io.Writer, cfg config.Config) error {
	log := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Component: "terminald"})

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}

	driver := tmux.NewDriver(&tmux.RealExec{}, tmux.Options{
		Socket:      cfg.TmuxSocket,
		DefaultCols: cfg.DefaultCols,
		DefaultRows: cfg.DefaultRows,
		AuxCommand:  cfg.AuxCommand,
	})

	core := session.NewCore(st, driver, log)
	batch := session.NewBatch(core, st, log)

	// The reconciliation pass heals drift from the last run; a failure here
	// leaves stale rows but the service is still usable, so keep going.
	if stats, err := session.NewReconciler(st, driver, cfg.PurgeAfterDays, log).Run(); err != nil {
		log.Error("startup reconciliation failed", "err", err)
	} else {
		log.Info("startup reconciliation done",
			"db_sessions", stats.TotalDBSessions,
			"tmux_sessions", stats.TotalMuxSessions,
			"marked_alive", stats.MarkedAlive,
			"marked_dead", stats.MarkedDead,
			"purged", stats.Purged,
			"orphans_killed", stats.OrphansKilled,
		)
	}

	launch := auxLaunchCommand(cfg)
	aux := auxiliary.NewManager(st, driver, auxiliary.Options{LaunchCommand: launch}, log)
	panes := pane.NewManager(st, core, log)
	term := bridge.NewServer(core, st, driver, bridge.NewRegistry(), bridge.Options{AuxLaunch: launch}, log)

	api := httpapi.NewServer(httpapi.Deps{
		Sessions:  st,
		Settings:  st,
		Lifecycle: core,
		Batch:     batch,
		Panes:     panes,
		Auxiliary: aux,
		Bridge:    term,
	}, log)

	addr := net.JoinHostPort(cfg.ListenHost, strconv.Itoa(cfg.ListenPort))
	hookURL := fmt.Sprintf("http://%s/api/internal/session-switch", hookAddr(cfg))
	if err := driver.RegisterSwitchHook(hookURL); err != nil {
		log.Warn("session switch hook registration failed, last-target tracking disabled", "err", err)
	}
	_, _ = fmt.Fprintf(out, "terminald listening at http://%s (version=%s built=%s)\n", addr, version, buildTime)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	mgr := lifecycle.NewManager()
	mgr.AddRun("http-server", func(runCtx context.Context) error {
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	mgr.AddShutdown("unregister-switch-hook", func(context.Context) error {
		return driver.UnregisterSwitchHook()
	})
	mgr.AddShutdown("http-server-shutdown", func(context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	mgr.AddShutdown("close-store", func(context.Context) error {
		return st.Close()
	})

	return mgr.StartAndWait(ctx)
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	// Open syncs the schema, so migrate-up is open-then-close.
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	return st.Close()
}

// auxLaunchCommand joins the auxiliary binary with its launch arguments
// into the line typed at the session shell.
func auxLaunchCommand(cfg config.Config) string {
	return strings.TrimSpace(strings.TrimSpace(cfg.AuxCommand) + " " + strings.TrimSpace(cfg.AuxLaunchArgs))
}

// hookAddr is the address tmux's hook curl dials. Wildcard listen hosts are
// not dialable, so those fall back to loopback.
func hookAddr(cfg config.Config) string {
	host := strings.TrimSpace(cfg.ListenHost)
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.ListenPort))
}
