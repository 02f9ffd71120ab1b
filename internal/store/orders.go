package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/atelierboard/atelierboard/pkg/errors"
	"github.com/atelierboard/atelierboard/pkg/models"
)

const orderColumns = `id, order_number, customer_name, customer_email, customer_phone, status, payment_status, total, subtotal, shipping, tax, currency, notes, category, deadline, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (models.Order, error) {
	var (
		order    models.Order
		status   string
		payment  string
		deadline sql.NullInt64
		created  int64
		updated  int64
	)
	err := row.Scan(&order.ID, &order.OrderNumber, &order.CustomerName,
		&order.CustomerEmail, &order.CustomerPhone, &status, &payment,
		&order.Total, &order.Subtotal, &order.Shipping, &order.Tax,
		&order.Currency, &order.Notes, &order.Category, &deadline,
		&created, &updated)
	if err != nil {
		return models.Order{}, err
	}
	order.Status = models.OrderStatus(status)
	order.PaymentStatus = models.PaymentStatus(payment)
	if deadline.Valid {
		t := fromMillis(deadline.Int64)
		order.Deadline = &t
	}
	order.CreatedAt = fromMillis(created)
	order.UpdatedAt = fromMillis(updated)
	return order, nil
}

// CreateOrder persists a webhook-ingested order with its line items in
// one transaction.
func (s *Store) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	if strings.TrimSpace(order.OrderNumber) == "" {
		return models.Order{}, errors.NewValidationError("orderNumber", order.OrderNumber, "must not be empty")
	}
	if strings.TrimSpace(order.CustomerName) == "" {
		return models.Order{}, errors.NewValidationError("customerName", order.CustomerName, "must not be empty")
	}

	now := time.Now().UTC()
	order.ID = newID("ord")
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Status == "" {
		order.Status = models.OrderToProcess
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentPending
	}
	if order.Currency == "" {
		order.Currency = "EUR"
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var deadline any
		if order.Deadline != nil {
			deadline = toMillis(*order.Deadline)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID, order.OrderNumber, order.CustomerName,
			order.CustomerEmail, order.CustomerPhone, string(order.Status),
			string(order.PaymentStatus), order.Total, order.Subtotal,
			order.Shipping, order.Tax, order.Currency, order.Notes,
			order.Category, deadline, toMillis(now), toMillis(now))
		if err != nil {
			return err
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.ID = newID("itm")
			item.OrderID = order.ID
			if item.Quantity <= 0 {
				item.Quantity = 1
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (id, order_id, name, sku, quantity, price) VALUES (?, ?, ?, ?, ?, ?)`,
				item.ID, item.OrderID, item.Name, item.SKU, item.Quantity, item.Price)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The studio retries webhook deliveries; a replayed order
		// number must not read as a server fault.
		if strings.Contains(err.Error(), "UNIQUE constraint failed: orders.order_number") {
			return models.Order{}, errors.NewAlreadyExistsError("order", order.OrderNumber)
		}
		return models.Order{}, errors.NewStoreError("create order", err)
	}
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return order, nil
}

// GetOrder returns one order with its line items.
func (s *Store) GetOrder(ctx context.Context, id string) (models.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return models.Order{}, errors.NewNotFoundError("order", id)
	}
	if err != nil {
		return models.Order{}, errors.NewStoreError("get order", err)
	}
	items, err := s.orderItems(ctx, []string{order.ID})
	if err != nil {
		return models.Order{}, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return order, nil
}

// ListOrders returns orders newest first, with line items attached.
// limit <= 0 means no limit.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreError("list orders", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	ids := []string{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, errors.NewStoreError("scan order", err)
		}
		order.Items = []models.OrderItem{}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list orders", err)
	}

	items, err := s.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if list, ok := items[orders[i].ID]; ok {
			orders[i].Items = list
		}
	}
	return orders, nil
}

func (s *Store) orderItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	result := make(map[string][]models.OrderItem)
	if len(orderIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(orderIDs)), ",")
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, name, sku, quantity, price FROM order_items WHERE order_id IN (`+placeholders+`) ORDER BY id`,
		args...)
	if err != nil {
		return nil, errors.NewStoreError("list order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.Name, &item.SKU, &item.Quantity, &item.Price); err != nil {
			return nil, errors.NewStoreError("scan order item", err)
		}
		result[item.OrderID] = append(result[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list order items", err)
	}
	return result, nil
}

// OrderStats summarizes the orders table for the dashboard header.
// "Today" is computed in UTC.
func (s *Store) OrderStats(ctx context.Context) (models.OrderStats, error) {
	var stats models.OrderStats

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total), 0),
		       COALESCE(SUM(CASE WHEN payment_status = 'PENDING' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN payment_status = 'PAID' THEN 1 ELSE 0 END), 0)
		FROM orders`,
	).Scan(&stats.TotalOrders, &stats.TotalRevenue, &stats.PendingOrders, &stats.PaidOrders)
	if err != nil {
		return models.OrderStats{}, errors.NewStoreError("order stats", err)
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM orders WHERE created_at >= ?`, toMillis(dayStart),
	).Scan(&stats.TodayOrders, &stats.TodayRevenue)
	if err != nil {
		return models.OrderStats{}, errors.NewStoreError("order stats today", err)
	}
	return stats, nil
}
