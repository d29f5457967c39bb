package store

import (
	"errors"
	"testing"
)

func TestUpsertProjectSettings_InsertThenUpdate(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertProjectSettings(&ProjectSettings{ProjectID: "p1", Enabled: true, DisplayOrder: 2}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := s.GetProjectSettings("p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Enabled || got.ActiveMode != ModeShell || got.DisplayOrder != 2 {
		t.Fatalf("unexpected settings: %+v", got)
	}

	if err := s.UpsertProjectSettings(&ProjectSettings{ProjectID: "p1", Enabled: false, ActiveMode: ModeAuxiliary, DisplayOrder: 1}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = s.GetProjectSettings("p1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Enabled || got.ActiveMode != ModeAuxiliary || got.DisplayOrder != 1 {
		t.Fatalf("upsert did not replace fields: %+v", got)
	}
}

func TestGetProjectSettings_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetProjectSettings("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProjectSettings_OrderedByDisplayOrder(t *testing.T) {
	s := newTestStore(t)
	for _, ps := range []ProjectSettings{
		{ProjectID: "zeta", DisplayOrder: 1},
		{ProjectID: "alpha", DisplayOrder: 0},
	} {
		row := ps
		if err := s.UpsertProjectSettings(&row); err != nil {
			t.Fatalf("upsert %s: %v", ps.ProjectID, err)
		}
	}

	list, err := s.ListProjectSettings()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ProjectID != "alpha" || list[1].ProjectID != "zeta" {
		t.Fatalf("unexpected order: %v", list)
	}
}
