package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/twelve20/pir-planet-new/internal/apperr"
	"github.com/twelve20/pir-planet-new/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	DB *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{DB: db}
}

const orderColumns = `id, order_number, customer_name, customer_phone, customer_email,
	customer_type, delivery_type, delivery_address, delivery_city, pickup_location,
	payment_method, access_token, status, subtotal, delivery_cost, total,
	manager_comment, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.CustomerType, &o.DeliveryType, &o.DeliveryAddress, &o.DeliveryCity, &o.PickupLocation,
		&o.PaymentMethod, &o.AccessToken, &o.Status, &o.Subtotal, &o.DeliveryCost, &o.Total,
		&o.ManagerComment, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// nextOrderNumberTx increments the global counter and returns the new
// value in one statement, so two concurrent checkouts can never get the
// same number.
func (r *OrderRepository) nextOrderNumberTx(ctx context.Context, tx pgx.Tx) (int64, error) {
	var n int64
	query := `UPDATE order_counter SET current_number = current_number + 1 WHERE id = 1 RETURNING current_number`
	if err := tx.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return n, nil
}

// Create persists the order, its items, the counter increment and the
// first history entry in one transaction. o.OrderNumber and the item
// ids are filled in on success.
func (r *OrderRepository) Create(ctx context.Context, o *model.Order, initialComment string) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	number, err := r.nextOrderNumberTx(ctx, tx)
	if err != nil {
		return err
	}
	o.OrderNumber = number

	query := `
		INSERT INTO orders (
			id, order_number, customer_name, customer_phone, customer_email,
			customer_type, delivery_type, delivery_address, delivery_city,
			pickup_location, payment_method, access_token, status, subtotal,
			delivery_cost, total
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		o.ID, o.OrderNumber, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.CustomerType, o.DeliveryType, o.DeliveryAddress, o.DeliveryCity,
		o.PickupLocation, o.PaymentMethod, o.AccessToken, o.Status, o.Subtotal,
		o.DeliveryCost, o.Total,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := insertItemTx(ctx, tx, it); err != nil {
			return err
		}
	}

	if err := addHistoryTx(ctx, tx, o.ID, o.Status, &initialComment); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertItemTx(ctx context.Context, tx pgx.Tx, it *model.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_name, product_sku, product_image, quantity, unit_price, total_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`
	if err := tx.QueryRow(ctx, query,
		it.OrderID, it.ProductName, it.ProductSKU, it.ProductImage,
		it.Quantity, it.UnitPrice, it.TotalPrice,
	).Scan(&it.ID); err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func addHistoryTx(ctx context.Context, tx pgx.Tx, orderID, status string, comment *string) error {
	query := `INSERT INTO order_status_history (order_id, status, comment) VALUES ($1,$2,$3)`
	if _, err := tx.Exec(ctx, query, orderID, status, comment); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// recalcTotalsTx rewrites subtotal and total from the current item rows
// plus the stored delivery cost. Runs inside the same transaction as
// the item mutation so the persisted totals can never come from a stale
// item snapshot.
func recalcTotalsTx(ctx context.Context, tx pgx.Tx, orderID string) error {
	query := `
		UPDATE orders SET
			subtotal = s.sum,
			total = s.sum + delivery_cost,
			updated_at = now()
		FROM (
			SELECT COALESCE(SUM(total_price), 0) AS sum
			FROM order_items WHERE order_id = $1
		) s
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, orderID); err != nil {
		return fmt.Errorf("recalculate totals: %w", err)
	}
	return nil
}

// GetByID returns the order with its items (insertion order) and
// history (newest first).
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}

	items, err := r.itemsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items

	history, err := r.historyByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	o.History = history

	return o, nil
}

// GetByNumber returns the bare order row for a human-readable number.
// Used by the payment webhook, which only knows the external reference.
func (r *OrderRepository) GetByNumber(ctx context.Context, number int64) (*model.Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number=$1`, number))
}

func (r *OrderRepository) itemsByOrder(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	query := `
		SELECT id, order_id, product_name, product_sku, product_image, quantity, unit_price, total_price
		FROM order_items WHERE order_id=$1 ORDER BY id
	`
	rows, err := r.DB.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductName, &it.ProductSKU, &it.ProductImage,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *OrderRepository) historyByOrder(ctx context.Context, orderID string) ([]model.StatusHistoryEntry, error) {
	query := `
		SELECT id, order_id, status, comment, created_at
		FROM order_status_history WHERE order_id=$1 ORDER BY created_at DESC, id DESC
	`
	rows, err := r.DB.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StatusHistoryEntry
	for rows.Next() {
		var h model.StatusHistoryEntry
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Comment, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// List returns order summaries, newest first. Items and history are not
// loaded.
func (r *OrderRepository) List(ctx context.Context, limit, offset int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateStatus sets the status and appends one history entry.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status string, comment *string) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE orders SET status=$1, updated_at=now() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	if err := addHistoryTx(ctx, tx, id, status, comment); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateDeliveryCost sets the delivery cost and recomputes the total.
// A non-nil comment appends a history entry repeating the current
// status.
func (r *OrderRepository) UpdateDeliveryCost(ctx context.Context, id string, cost float64, comment *string) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	query := `UPDATE orders SET delivery_cost=$1, total=subtotal+$1, updated_at=now() WHERE id=$2 RETURNING status`
	if err := tx.QueryRow(ctx, query, cost, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrNotFound
		}
		return err
	}

	if comment != nil {
		if err := addHistoryTx(ctx, tx, id, status, comment); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// SetManagerComment updates the free-text manager note. No history.
func (r *OrderRepository) SetManagerComment(ctx context.Context, id, comment string) error {
	tag, err := r.DB.Exec(ctx, `UPDATE orders SET manager_comment=$1, updated_at=now() WHERE id=$2`, comment, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ReplaceItems discards all items of the order and inserts the new set,
// then recomputes the totals. Full replace, not a merge.
func (r *OrderRepository) ReplaceItems(ctx context.Context, orderID string, items []model.OrderItem) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := orderExistsTx(ctx, tx, orderID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = orderID
		if err := insertItemTx(ctx, tx, &items[i]); err != nil {
			return err
		}
	}

	if err := recalcTotalsTx(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AddItem appends one item and recomputes the totals. Returns the new
// item id.
func (r *OrderRepository) AddItem(ctx context.Context, orderID string, item model.OrderItem) (int64, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := orderExistsTx(ctx, tx, orderID); err != nil {
		return 0, err
	}

	item.OrderID = orderID
	if err := insertItemTx(ctx, tx, &item); err != nil {
		return 0, err
	}
	if err := recalcTotalsTx(ctx, tx, orderID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return item.ID, nil
}

// UpdateItem rewrites one item row and recomputes the totals.
func (r *OrderRepository) UpdateItem(ctx context.Context, orderID string, itemID int64, item model.OrderItem) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE order_items
		SET product_name=$1, product_sku=$2, product_image=$3, quantity=$4, unit_price=$5, total_price=$6
		WHERE id=$7 AND order_id=$8
	`
	tag, err := tx.Exec(ctx, query,
		item.ProductName, item.ProductSKU, item.ProductImage,
		item.Quantity, item.UnitPrice, item.TotalPrice, itemID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	if err := recalcTotalsTx(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteItem removes one item and recomputes the totals. Removing the
// last remaining item is refused: an order always has at least one.
func (r *OrderRepository) DeleteItem(ctx context.Context, orderID string, itemID int64) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id=$1`, orderID).Scan(&count); err != nil {
		return err
	}
	if count <= 1 {
		return apperr.Validation("cannot delete the last item of an order")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM order_items WHERE id=$1 AND order_id=$2`, itemID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	if err := recalcTotalsTx(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes the order; items and history go with it via cascade.
// Reports whether a row was actually removed.
func (r *OrderRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Stats returns the total order count and a per-status breakdown.
func (r *OrderRepository) Stats(ctx context.Context) (*model.OrderStats, error) {
	stats := &model.OrderStats{ByStatus: map[string]int{}}

	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&stats.Total); err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
	}
	return stats, rows.Err()
}

func orderExistsTx(ctx context.Context, tx pgx.Tx, orderID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)`, orderID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return nil
}
