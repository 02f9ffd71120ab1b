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

const workflowColumns = `id, content, type, position, done, created_at, updated_at`

func scanWorkflowItem(row interface{ Scan(...any) error }) (models.WorkflowItem, error) {
	var (
		item     models.WorkflowItem
		done     int
		created  int64
		updated  int64
		itemType string
	)
	if err := row.Scan(&item.ID, &item.Content, &itemType, &item.Position, &done, &created, &updated); err != nil {
		return models.WorkflowItem{}, err
	}
	item.Type = models.WorkflowType(itemType)
	item.Done = done != 0
	item.CreatedAt = fromMillis(created)
	item.UpdatedAt = fromMillis(updated)
	return item, nil
}

// ListWorkflow returns all workflow items grouped by type, each list
// sorted by position with id as the tie-break.
func (s *Store) ListWorkflow(ctx context.Context) (map[models.WorkflowType][]models.WorkflowItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workflowColumns+` FROM workflow_items`)
	if err != nil {
		return nil, errors.NewStoreError("list workflow items", err)
	}
	defer rows.Close()

	grouped := make(map[models.WorkflowType][]models.WorkflowItem, len(models.WorkflowTypes))
	for _, t := range models.WorkflowTypes {
		grouped[t] = []models.WorkflowItem{}
	}
	for rows.Next() {
		item, err := scanWorkflowItem(rows)
		if err != nil {
			return nil, errors.NewStoreError("scan workflow item", err)
		}
		grouped[item.Type] = append(grouped[item.Type], item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list workflow items", err)
	}

	for t := range grouped {
		reorder.Sort(grouped[t],
			func(i models.WorkflowItem) int { return i.Position },
			func(i models.WorkflowItem) string { return i.ID })
	}
	return grouped, nil
}

// GetWorkflowItem returns a single workflow item by id.
func (s *Store) GetWorkflowItem(ctx context.Context, id string) (models.WorkflowItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflow_items WHERE id = ?`, id)
	item, err := scanWorkflowItem(row)
	if err == sql.ErrNoRows {
		return models.WorkflowItem{}, errors.NewNotFoundError("workflow item", id)
	}
	if err != nil {
		return models.WorkflowItem{}, errors.NewStoreError("get workflow item", err)
	}
	return item, nil
}

// CreateWorkflowItem appends a new item to the end of its type's list.
// The position is assigned inside the insert transaction so concurrent
// creates never collide.
func (s *Store) CreateWorkflowItem(ctx context.Context, content string, itemType models.WorkflowType) (models.WorkflowItem, error) {
	if strings.TrimSpace(content) == "" {
		return models.WorkflowItem{}, errors.NewValidationError("content", content, "must not be empty")
	}
	if !itemType.Valid() {
		return models.WorkflowItem{}, errors.NewValidationError("type", itemType, "unknown workflow type")
	}

	now := time.Now().UTC()
	item := models.WorkflowItem{
		ID:        newID("wf"),
		Content:   content,
		Type:      itemType,
		Done:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var max sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(position) FROM workflow_items WHERE type = ?`, string(itemType),
		).Scan(&max); err != nil {
			return err
		}
		current := -1
		if max.Valid {
			current = int(max.Int64)
		}
		item.Position = reorder.NextPosition(current)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO workflow_items (`+workflowColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Content, string(item.Type), item.Position, 0, toMillis(now), toMillis(now))
		return err
	})
	if err != nil {
		return models.WorkflowItem{}, errors.NewStoreError("create workflow item", err)
	}
	return item, nil
}

// WorkflowPatch is a partial update; nil fields are left unchanged.
type WorkflowPatch struct {
	Content  *string
	Done     *bool
	Position *int
}

// UpdateWorkflowItem applies a partial update and returns the new row.
func (s *Store) UpdateWorkflowItem(ctx context.Context, id string, patch WorkflowPatch) (models.WorkflowItem, error) {
	sets := []string{"updated_at = ?"}
	args := []any{toMillis(time.Now())}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return models.WorkflowItem{}, errors.NewValidationError("content", *patch.Content, "must not be empty")
		}
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Done != nil {
		sets = append(sets, "done = ?")
		args = append(args, boolToInt(*patch.Done))
	}
	if patch.Position != nil {
		if *patch.Position < 0 {
			return models.WorkflowItem{}, errors.NewValidationError("position", *patch.Position, "must not be negative")
		}
		sets = append(sets, "position = ?")
		args = append(args, *patch.Position)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE workflow_items SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return models.WorkflowItem{}, errors.NewStoreError("update workflow item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.WorkflowItem{}, errors.NewNotFoundError("workflow item", id)
	}
	return s.GetWorkflowItem(ctx, id)
}

// DeleteWorkflowItem removes an item. Remaining positions keep their
// values; lists tolerate gaps and close them on the next reorder.
func (s *Store) DeleteWorkflowItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflow_items WHERE id = ?`, id)
	if err != nil {
		return errors.NewStoreError("delete workflow item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("workflow item", id)
	}
	return nil
}

// ReorderWorkflow rewrites positions 0..n-1 for the given type's list,
// following the order of ids. Items of other types are never touched;
// ids belonging to a different type are ignored by the WHERE clause.
func (s *Store) ReorderWorkflow(ctx context.Context, itemType models.WorkflowType, ids []string) error {
	if !itemType.Valid() {
		return errors.NewValidationError("type", itemType, "unknown workflow type")
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current := make(map[string]int)
		rows, err := tx.QueryContext(ctx,
			`SELECT id, position FROM workflow_items WHERE type = ?`, string(itemType))
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
				`UPDATE workflow_items SET position = ?, updated_at = ? WHERE id = ? AND type = ?`,
				update.Position, now, update.ID, string(itemType)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.NewStoreError("reorder workflow items", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
