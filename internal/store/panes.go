package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type PaneOrderUpdate struct {
	PaneID    string
	PaneOrder int
}

// PaneLayoutUpdate carries a partial layout change. Nil fields keep the
// stored value.
type PaneLayoutUpdate struct {
	PaneID        string
	WidthPercent  *float64
	HeightPercent *float64
	GridRow       *int
	GridCol       *int
}

// CreatePaneWithSessions inserts the pane and its sessions in one
// transaction. A negative pane.PaneOrder means "append": the next order is
// computed as MAX+1. Sessions are stamped with the pane's id and project so
// the pane/session consistency invariant holds by construction.
func (s *Store) CreatePaneWithSessions(pane *Pane, sessions []*Session) error {
	if pane.ID == "" {
		return errors.New("pane id is required")
	}
	if pane.PaneType == "" {
		pane.PaneType = PaneTypeAdhoc
	}
	if pane.ActiveMode == "" {
		pane.ActiveMode = ModeShell
	}
	if pane.CreatedAt <= 0 {
		pane.CreatedAt = nowUnix()
	}
	return s.gdb.Transaction(func(tx *gorm.DB) error {
		if pane.PaneOrder < 0 {
			var next int
			err := tx.Raw(`SELECT COALESCE(MAX(pane_order), -1) + 1 FROM panes`).Scan(&next).Error
			if err != nil {
				return err
			}
			pane.PaneOrder = next
		}
		if err := tx.Create(pane).Error; err != nil {
			return err
		}
		for _, sess := range sessions {
			sess.PaneID = pane.ID
			sess.ProjectID = pane.ProjectID
			if err := insertSession(tx, sess); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetPane(id string) (Pane, error) {
	var pane Pane
	err := s.gdb.Where("id = ?", id).First(&pane).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Pane{}, ErrNotFound
	}
	if err != nil {
		return Pane{}, err
	}
	return pane, nil
}

func (s *Store) ListPanes() ([]Pane, error) {
	panes := make([]Pane, 0)
	err := s.gdb.Order("pane_order ASC, created_at ASC").Find(&panes).Error
	if err != nil {
		return nil, err
	}
	return panes, nil
}

func (s *Store) CountPanes() (int64, error) {
	var n int64
	if err := s.gdb.Model(&Pane{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) UpdatePane(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	tx := s.gdb.Model(&Pane{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePaneCascade removes the pane and every session row bound to it in one
// transaction. Mux-side cleanup is the caller's job.
func (s *Store) DeletePaneCascade(id string) error {
	return s.gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pane_id = ?", id).Delete(&Session{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Pane{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SwapPaneOrders exchanges the display positions of two panes atomically.
func (s *Store) SwapPaneOrders(a, b string) error {
	return s.gdb.Transaction(func(tx *gorm.DB) error {
		var panes []Pane
		if err := tx.Where("id IN ?", []string{a, b}).Find(&panes).Error; err != nil {
			return err
		}
		if len(panes) != 2 {
			return fmt.Errorf("%w: one or both panes not found", ErrNotFound)
		}
		first, second := panes[0], panes[1]
		if err := tx.Model(&Pane{}).Where("id = ?", first.ID).Update("pane_order", second.PaneOrder).Error; err != nil {
			return err
		}
		return tx.Model(&Pane{}).Where("id = ?", second.ID).Update("pane_order", first.PaneOrder).Error
	})
}

// UpdatePaneOrders applies explicit orders row by row. Missing panes are
// skipped; storage errors abort.
func (s *Store) UpdatePaneOrders(items []PaneOrderUpdate) error {
	for _, it := range items {
		if it.PaneID == "" {
			continue
		}
		err := s.gdb.Model(&Pane{}).Where("id = ?", it.PaneID).Update("pane_order", it.PaneOrder).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdatePaneLayouts applies partial layout updates, one statement per row.
// COALESCE keeps the stored value for fields the item leaves nil.
func (s *Store) UpdatePaneLayouts(items []PaneLayoutUpdate) error {
	for _, it := range items {
		if it.PaneID == "" {
			continue
		}
		err := s.gdb.Exec(
			`UPDATE panes
			 SET width_percent = COALESCE(?, width_percent),
			     height_percent = COALESCE(?, height_percent),
			     grid_row = COALESCE(?, grid_row),
			     grid_col = COALESCE(?, grid_col)
			 WHERE id = ?`,
			it.WidthPercent, it.HeightPercent, it.GridRow, it.GridCol, it.PaneID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}
