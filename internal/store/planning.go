package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/atelierboard/atelierboard/internal/reorder"
	"github.com/atelierboard/atelierboard/pkg/errors"
	"github.com/atelierboard/atelierboard/pkg/models"
)

const planningColumns = `id, priority, client_name, quantity, designation, note, unit_price, deadline, status, responsible, position, created_at, updated_at`

func scanPlanningItem(row interface{ Scan(...any) error }) (models.PlanningItem, error) {
	var (
		item     models.PlanningItem
		priority string
		status   string
		deadline sql.NullInt64
		created  int64
		updated  int64
	)
	err := row.Scan(&item.ID, &priority, &item.ClientName, &item.Quantity,
		&item.Designation, &item.Note, &item.UnitPrice, &deadline,
		&status, &item.Responsible, &item.Position, &created, &updated)
	if err != nil {
		return models.PlanningItem{}, err
	}
	item.Priority = models.Priority(priority)
	item.Status = models.PlanningStatus(status)
	if deadline.Valid {
		t := fromMillis(deadline.Int64)
		item.Deadline = &t
	}
	item.CreatedAt = fromMillis(created)
	item.UpdatedAt = fromMillis(updated)
	return item, nil
}

// ListPlanning returns all planning rows sorted by position with id as
// the tie-break. Planning is a single global list.
func (s *Store) ListPlanning(ctx context.Context) ([]models.PlanningItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+planningColumns+` FROM planning_items`)
	if err != nil {
		return nil, errors.NewStoreError("list planning items", err)
	}
	defer rows.Close()

	items := []models.PlanningItem{}
	for rows.Next() {
		item, err := scanPlanningItem(rows)
		if err != nil {
			return nil, errors.NewStoreError("scan planning item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list planning items", err)
	}

	reorder.Sort(items,
		func(i models.PlanningItem) int { return i.Position },
		func(i models.PlanningItem) string { return i.ID })
	return items, nil
}

// GetPlanningItem returns a single planning row by id.
func (s *Store) GetPlanningItem(ctx context.Context, id string) (models.PlanningItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+planningColumns+` FROM planning_items WHERE id = ?`, id)
	item, err := scanPlanningItem(row)
	if err == sql.ErrNoRows {
		return models.PlanningItem{}, errors.NewNotFoundError("planning item", id)
	}
	if err != nil {
		return models.PlanningItem{}, errors.NewStoreError("get planning item", err)
	}
	return item, nil
}

// PlanningDraft holds the caller-supplied fields of a new planning row.
type PlanningDraft struct {
	Priority    models.Priority
	ClientName  string
	Quantity    int
	Designation string
	Note        string
	UnitPrice   float64
	Deadline    *time.Time
	Status      models.PlanningStatus
	Responsible string
}

func (d *PlanningDraft) validate() error {
	if d.Priority == "" {
		d.Priority = models.PriorityMedium
	}
	if !d.Priority.Valid() {
		return errors.NewValidationError("priority", d.Priority, "unknown priority")
	}
	if d.Status == "" {
		d.Status = models.StatusToQuote
	}
	if !d.Status.Valid() {
		return errors.NewValidationError("status", d.Status, "unknown planning status")
	}
	if d.Quantity <= 0 {
		d.Quantity = 1
	}
	return nil
}

// CreatePlanningItem appends a new row to the end of the planning list.
func (s *Store) CreatePlanningItem(ctx context.Context, draft PlanningDraft) (models.PlanningItem, error) {
	if err := draft.validate(); err != nil {
		return models.PlanningItem{}, err
	}

	now := time.Now().UTC()
	item := models.PlanningItem{
		ID:          newID("pl"),
		Priority:    draft.Priority,
		ClientName:  draft.ClientName,
		Quantity:    draft.Quantity,
		Designation: draft.Designation,
		Note:        draft.Note,
		UnitPrice:   draft.UnitPrice,
		Deadline:    draft.Deadline,
		Status:      draft.Status,
		Responsible: draft.Responsible,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var max sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(position) FROM planning_items`).Scan(&max); err != nil {
			return err
		}
		current := -1
		if max.Valid {
			current = int(max.Int64)
		}
		item.Position = reorder.NextPosition(current)

		var deadline any
		if item.Deadline != nil {
			deadline = toMillis(*item.Deadline)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO planning_items (`+planningColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, string(item.Priority), item.ClientName, item.Quantity,
			item.Designation, item.Note, item.UnitPrice, deadline,
			string(item.Status), item.Responsible, item.Position,
			toMillis(now), toMillis(now))
		return err
	})
	if err != nil {
		return models.PlanningItem{}, errors.NewStoreError("create planning item", err)
	}
	return item, nil
}

// PlanningPatch is a partial update; nil fields are left unchanged.
// ClearDeadline removes the deadline regardless of the Deadline field.
type PlanningPatch struct {
	Priority      *models.Priority
	ClientName    *string
	Quantity      *int
	Designation   *string
	Note          *string
	UnitPrice     *float64
	Deadline      *time.Time
	ClearDeadline bool
	Status        *models.PlanningStatus
	Responsible   *string
	Position      *int
}

// UpdatePlanningItem applies a partial update and returns the new row.
func (s *Store) UpdatePlanningItem(ctx context.Context, id string, patch PlanningPatch) (models.PlanningItem, error) {
	sets := []string{"updated_at = ?"}
	args := []any{toMillis(time.Now())}

	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return models.PlanningItem{}, errors.NewValidationError("priority", *patch.Priority, "unknown priority")
		}
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if patch.ClientName != nil {
		sets = append(sets, "client_name = ?")
		args = append(args, *patch.ClientName)
	}
	if patch.Quantity != nil {
		if *patch.Quantity <= 0 {
			return models.PlanningItem{}, errors.NewValidationError("quantity", *patch.Quantity, "must be positive")
		}
		sets = append(sets, "quantity = ?")
		args = append(args, *patch.Quantity)
	}
	if patch.Designation != nil {
		sets = append(sets, "designation = ?")
		args = append(args, *patch.Designation)
	}
	if patch.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *patch.Note)
	}
	if patch.UnitPrice != nil {
		sets = append(sets, "unit_price = ?")
		args = append(args, *patch.UnitPrice)
	}
	if patch.ClearDeadline {
		sets = append(sets, "deadline = NULL")
	} else if patch.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, toMillis(*patch.Deadline))
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return models.PlanningItem{}, errors.NewValidationError("status", *patch.Status, "unknown planning status")
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Responsible != nil {
		sets = append(sets, "responsible = ?")
		args = append(args, *patch.Responsible)
	}
	if patch.Position != nil {
		if *patch.Position < 0 {
			return models.PlanningItem{}, errors.NewValidationError("position", *patch.Position, "must not be negative")
		}
		sets = append(sets, "position = ?")
		args = append(args, *patch.Position)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE planning_items SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return models.PlanningItem{}, errors.NewStoreError("update planning item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.PlanningItem{}, errors.NewNotFoundError("planning item", id)
	}
	return s.GetPlanningItem(ctx, id)
}

// DeletePlanningItem removes a planning row.
func (s *Store) DeletePlanningItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM planning_items WHERE id = ?`, id)
	if err != nil {
		return errors.NewStoreError("delete planning item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("planning item", id)
	}
	return nil
}

// ReorderPlanning rewrites positions 0..n-1 for the global planning
// list in a single transaction, following the order of ids. Unknown ids
// are skipped.
func (s *Store) ReorderPlanning(ctx context.Context, ids []string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current := make(map[string]int)
		rows, err := tx.QueryContext(ctx, `SELECT id, position FROM planning_items`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var pos int
			if err := rows.Scan(&id, &pos); err != nil {
				return err
			}
			current[id] = pos
		}
		if err := rows.Err(); err != nil {
			return err
		}

		now := toMillis(time.Now())
		for _, update := range reorder.Changed(current, ids) {
			if _, ok := current[update.ID]; !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE planning_items SET position = ?, updated_at = ? WHERE id = ?`,
				update.Position, now, update.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.NewStoreError("reorder planning items", err)
	}
	return nil
}
