package session

import (
	"errors"
	"testing"

	"summitflow/terminal/internal/store"
)

func newTestBatch(t *testing.T) (*Batch, *Core, *store.Store, *fakeMux) {
	t.Helper()
	st := newTestStore(t)
	mux := newFakeMux()
	core := NewCore(st, mux, discardLogger())
	return NewBatch(core, st, discardLogger()), core, st, mux
}

func TestReset_PreservesIdentityFields(t *testing.T) {
	batch, core, st, _ := newTestBatch(t)

	id, err := core.Create(CreateParams{Name: "web", ProjectID: "p1", WorkingDir: "/srv", UserID: "u1", Mode: store.ModeShell})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newID, err := batch.Reset(id)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if newID == "" {
		t.Fatal("expected a new id")
	}
	if _, err := st.GetSession(id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old row should be gone, got %v", err)
	}
	row, err := st.GetSession(newID)
	if err != nil {
		t.Fatalf("get new row: %v", err)
	}
	if row.Name != "web" || row.ProjectID != "p1" || row.WorkingDir != "/srv" || row.UserID != "u1" || row.Mode != store.ModeShell {
		t.Fatalf("identity fields not preserved: %+v", row)
	}
	if !row.IsAlive {
		t.Fatal("reset row must be alive")
	}
}

func TestReset_UnknownSession(t *testing.T) {
	batch, _, _, _ := newTestBatch(t)
	if _, err := batch.Reset("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetProject_DeletesAllLiveAndCreatesTwo(t *testing.T) {
	batch, core, st, mux := newTestBatch(t)

	// Two shell rows (a duplicate) plus one auxiliary.
	ids := make([]string, 0, 3)
	for _, p := range []CreateParams{
		{Name: "web", ProjectID: "p1", WorkingDir: "/srv", Mode: store.ModeShell},
		{Name: "web-aux", ProjectID: "p1", WorkingDir: "/srv", Mode: store.ModeAuxiliary},
	} {
		id, err := core.Create(p)
		if err != nil {
			t.Fatalf("seed create: %v", err)
		}
		ids = append(ids, id)
	}
	dup := store.Session{ID: "dup-shell", Name: "web-dup", ProjectID: "p1", Mode: store.ModeShell}
	if err := st.CreateSession(&dup); err != nil {
		t.Fatalf("seed duplicate: %v", err)
	}
	ids = append(ids, dup.ID)

	created, err := batch.ResetProject("p1", "")
	if err != nil {
		t.Fatalf("reset project: %v", err)
	}
	if len(created) != 2 || created[store.ModeShell] == "" || created[store.ModeAuxiliary] == "" {
		t.Fatalf("expected one new id per mode, got %v", created)
	}

	live, err := st.GetAllProjectSessions("p1")
	if err != nil {
		t.Fatalf("list live: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("expected exactly two live sessions, got %d", len(live))
	}
	for _, row := range live {
		if row.SessionNumber != 1 {
			t.Fatalf("numbering must restart at 1 after project reset, got %+v", row)
		}
		if row.WorkingDir != "/srv" {
			t.Fatalf("working dir should carry over, got %q", row.WorkingDir)
		}
		if !mux.has(row.ID) {
			t.Fatalf("mux session missing for %s", row.ID)
		}
	}
	for _, old := range ids {
		for _, row := range live {
			if row.ID == old {
				t.Fatalf("old session %s should not survive", old)
			}
		}
	}
}

func TestResetProject_OverridesWorkingDir(t *testing.T) {
	batch, core, st, _ := newTestBatch(t)

	if _, err := core.Create(CreateParams{Name: "web", ProjectID: "p1", WorkingDir: "/old", Mode: store.ModeShell}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	created, err := batch.ResetProject("p1", "/new")
	if err != nil {
		t.Fatalf("reset project: %v", err)
	}
	row, err := st.GetSession(created[store.ModeShell])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.WorkingDir != "/new" {
		t.Fatalf("expected overridden working dir, got %q", row.WorkingDir)
	}
}

func TestResetAll_CountsSessions(t *testing.T) {
	batch, core, _, _ := newTestBatch(t)

	for _, name := range []string{"one", "two"} {
		if _, err := core.Create(CreateParams{Name: name}); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	n, err := batch.ResetAll()
	if err != nil {
		t.Fatalf("reset all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 resets, got %d", n)
	}
}

func TestDisableProject_RemovesSessionsAndDisablesSettings(t *testing.T) {
	batch, core, st, mux := newTestBatch(t)

	id, err := core.Create(CreateParams{Name: "web", ProjectID: "p1", Mode: store.ModeShell})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.UpsertProjectSettings(&store.ProjectSettings{ProjectID: "p1", Enabled: true, DisplayOrder: 3}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	if err := batch.DisableProject("p1"); err != nil {
		t.Fatalf("disable: %v", err)
	}

	live, err := st.GetAllProjectSessions("p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("expected no live sessions, got %v", live)
	}
	if mux.has(id) {
		t.Fatal("mux session should be killed")
	}
	ps, err := st.GetProjectSettings("p1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if ps.Enabled {
		t.Fatal("settings should be disabled")
	}
	if ps.DisplayOrder != 3 {
		t.Fatalf("display order should be preserved, got %d", ps.DisplayOrder)
	}
}

func TestDisableProject_CreatesSettingsRowWhenMissing(t *testing.T) {
	batch, _, st, _ := newTestBatch(t)

	if err := batch.DisableProject("ghost"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	ps, err := st.GetProjectSettings("ghost")
	if err != nil {
		t.Fatalf("settings row should exist: %v", err)
	}
	if ps.Enabled {
		t.Fatal("settings should be disabled")
	}
}
