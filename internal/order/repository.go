// AngelaMos | 2026
// repository.go

package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/localmart/localmart/internal/core"
)

type Repository interface {
	Create(ctx context.Context, o *Order, items []LineItem) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Lines(ctx context.Context, orderIDs []string) ([]Line, error)
	UpdateStatus(ctx context.Context, id, status string, details types.JSONText) error
	SetPaymentStatus(ctx context.Context, intentID, status string) (string, error)
	SetDispatch(ctx context.Context, id, deliveryID, trackingURL string, details types.JSONText) error
	ListDispatched(ctx context.Context) ([]Order, error)
	Customer(ctx context.Context, userID string) (*Customer, error)
}

// ListFilter narrows List. Empty fields match every order.
type ListFilter struct {
	UserID  string
	StoreID string
	Limit   int
	Offset  int
}

const orderColumns = `
	id, user_id, status, payment_status, payment_method_id, stripe_payment_intent_id,
	subtotal_amount, tax_amount, delivery_fee, total_amount, delivery_address,
	customer_notes, scheduled_delivery_start, scheduled_delivery_end,
	uber_delivery_id, uber_tracking_url, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create inserts the order, its items and the initial status update in one
// transaction.
func (r *repository) Create(ctx context.Context, o *Order, items []LineItem) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO orders (
				id, user_id, status, payment_status, payment_method_id, stripe_payment_intent_id,
				subtotal_amount, tax_amount, delivery_fee, total_amount, delivery_address,
				customer_notes, scheduled_delivery_start, scheduled_delivery_end
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING created_at, updated_at`,
			o.ID,
			o.UserID,
			o.Status,
			o.PaymentStatus,
			o.PaymentMethodID,
			o.StripePaymentIntentID,
			o.Subtotal,
			o.Tax,
			o.DeliveryFee,
			o.Total,
			o.DeliveryAddress,
			o.CustomerNotes,
			o.ScheduledDeliveryStart,
			o.ScheduledDeliveryEnd,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return core.MapError("create order", err)
		}

		for i := range items {
			items[i].OrderID = o.ID
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO order_items (id, order_id, store_item_id, quantity, price_at_time, total_price)
				VALUES (:id, :order_id, :store_item_id, :quantity, :price_at_time, :total_price)`,
				items[i]); err != nil {
				return core.MapError("create order item", err)
			}
		}

		return insertStatus(ctx, tx, o.ID, o.Status, types.JSONText(`{"source":"checkout"}`))
	})
}

func insertStatus(ctx context.Context, tx *sqlx.Tx, orderID, status string, details types.JSONText) error {
	if len(details) == 0 {
		details = types.JSONText("{}")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_updates (id, order_id, status, timestamp, details)
		VALUES ($1, $2, $3, NOW(), $4)`,
		uuid.New().String(), orderID, status, details)
	return core.MapError("record status update", err)
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, core.MapError("get order", err)
	}
	return &o, nil
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE 1 = 1`
	var args []any

	if f.UserID != "" {
		args = append(args, f.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.StoreID != "" {
		args = append(args, f.StoreID)
		query += fmt.Sprintf(` AND id IN (
			SELECT oi.order_id FROM order_items oi
			JOIN store_items si ON si.id = oi.store_item_id
			WHERE si.store_id = $%d)`, len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var orders []Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, core.MapError("list orders", err)
	}
	return orders, nil
}

func (r *repository) Lines(ctx context.Context, orderIDs []string) ([]Line, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	var lines []Line
	err := r.db.SelectContext(ctx, &lines, `
		SELECT oi.id, oi.order_id, oi.store_item_id, si.name, oi.quantity, oi.price_at_time,
		       s.id AS store_id, s.name AS store_name,
		       s.latitude AS store_latitude, s.longitude AS store_longitude
		FROM order_items oi
		JOIN store_items si ON si.id = oi.store_item_id
		JOIN stores s ON s.id = si.store_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.created_at`, pq.Array(orderIDs))
	if err != nil {
		return nil, core.MapError("list order lines", err)
	}
	return lines, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id, status string, details types.JSONText) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
		if err != nil {
			return core.MapError("update order status", err)
		}
		if err := core.RequireRows("update order status", result); err != nil {
			return err
		}
		return insertStatus(ctx, tx, id, status, details)
	})
}

func (r *repository) SetPaymentStatus(ctx context.Context, intentID, status string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `
		UPDATE orders
		SET payment_status = $2, updated_at = NOW()
		WHERE id = (
			SELECT id FROM orders WHERE stripe_payment_intent_id = $1
			ORDER BY created_at LIMIT 1
		)
		RETURNING id`, intentID, status)
	if err != nil {
		return "", core.MapError("set payment status", err)
	}
	return id, nil
}

func (r *repository) SetDispatch(
	ctx context.Context,
	id, deliveryID, trackingURL string,
	details types.JSONText,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET uber_delivery_id = $2, uber_tracking_url = $3, status = $4, updated_at = NOW()
			WHERE id = $1`, id, deliveryID, trackingURL, StatusConfirmed)
		if err != nil {
			return core.MapError("dispatch order", err)
		}
		if err := core.RequireRows("dispatch order", result); err != nil {
			return err
		}
		return insertStatus(ctx, tx, id, StatusConfirmed, details)
	})
}

func (r *repository) ListDispatched(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT`+orderColumns+` FROM orders
		WHERE uber_delivery_id <> '' AND status NOT IN ($1, $2)
		ORDER BY created_at`, StatusDelivered, StatusCancelled)
	if err != nil {
		return nil, core.MapError("list dispatched orders", err)
	}
	return orders, nil
}

func (r *repository) Customer(ctx context.Context, userID string) (*Customer, error) {
	var c Customer
	err := r.db.GetContext(ctx, &c, `
		SELECT first_name, last_name, phone_number, latitude, longitude
		FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, core.MapError("get customer", err)
	}
	return &c, nil
}
