package session

import (
	"log/slog"

	"summitflow/terminal/internal/store"
)

// ReconcileStats summarizes one reconciliation pass. A pass over an already
// consistent system reports zeros everywhere but the totals.
type ReconcileStats struct {
	TotalDBSessions  int   `json:"total_db_sessions"`
	TotalMuxSessions int   `json:"total_tmux_sessions"`
	MarkedAlive      int   `json:"marked_alive"`
	MarkedDead       int   `json:"marked_dead"`
	Purged           int64 `json:"purged"`
	OrphansKilled    int   `json:"orphans_killed"`
}

// Reconciler syncs store rows with the mux session list at startup and
// removes whatever neither side can use anymore.
type Reconciler struct {
	store          *store.Store
	mux            Mux
	purgeAfterDays int
	log            *slog.Logger
}

func NewReconciler(st *store.Store, mux Mux, purgeAfterDays int, log *slog.Logger) *Reconciler {
	if purgeAfterDays <= 0 {
		purgeAfterDays = 7
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: st, mux: mux, purgeAfterDays: purgeAfterDays, log: log.With("module", "reconcile")}
}

// Run flips is_alive to match the mux, purges stale dead rows, then kills
// mux sessions no remaining row references. Purge runs before the orphan
// sweep so orphan detection sees the post-purge store.
func (r *Reconciler) Run() (ReconcileStats, error) {
	var stats ReconcileStats

	rows, err := r.store.ListSessions(true)
	if err != nil {
		return stats, err
	}
	muxIDs, err := r.mux.ListPrefixed()
	if err != nil {
		return stats, err
	}
	muxSet := make(map[string]bool, len(muxIDs))
	for _, id := range muxIDs {
		muxSet[id] = true
	}
	stats.TotalDBSessions = len(rows)
	stats.TotalMuxSessions = len(muxIDs)

	for _, row := range rows {
		switch {
		case muxSet[row.ID] && !row.IsAlive:
			if err := r.store.MarkAlive(row.ID); err != nil {
				return stats, err
			}
			stats.MarkedAlive++
		case !muxSet[row.ID] && row.IsAlive:
			if err := r.store.MarkDead(row.ID); err != nil {
				return stats, err
			}
			stats.MarkedDead++
		}
	}

	purged, err := r.store.PurgeDead(r.purgeAfterDays)
	if err != nil {
		return stats, err
	}
	stats.Purged = purged

	remaining, err := r.store.ListSessions(true)
	if err != nil {
		return stats, err
	}
	known := make(map[string]bool, len(remaining))
	for _, row := range remaining {
		known[row.ID] = true
	}
	for _, id := range muxIDs {
		if known[id] {
			continue
		}
		if _, err := r.mux.Kill(id, true); err != nil {
			r.log.Warn("orphan kill failed", "session_id", id, "error", err)
			continue
		}
		stats.OrphansKilled++
	}

	r.log.Info("reconciliation complete",
		"db_sessions", stats.TotalDBSessions,
		"mux_sessions", stats.TotalMuxSessions,
		"marked_alive", stats.MarkedAlive,
		"marked_dead", stats.MarkedDead,
		"purged", stats.Purged,
		"orphans_killed", stats.OrphansKilled,
	)
	return stats, nil
}
