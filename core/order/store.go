package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("order not found")

func Create(ctx context.Context, db sqlx.ExtContext, o Order) error {
	const q = `
	INSERT INTO orders
		(order_id, user_id, course_id, provider, provider_id, price, status, created_at, updated_at)
	VALUES
		(:order_id, :user_id, :course_id, :provider, :provider_id, :price, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, o); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

// FetchByProviderIDForUpdate locks the order row bound to a gateway
// payment. The completion paths serialize on this lock, and the loser
// of a replayed webhook re-reads a success status.
func FetchByProviderIDForUpdate(ctx context.Context, tx sqlx.ExtContext, providerID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE provider_id = $1 FOR UPDATE`

	var o Order
	if err := sqlx.GetContext(ctx, tx, &o, q, providerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("locking order bound to payment[%s]: %w", providerID, err)
	}
	return o, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}
	return orders, nil
}

func UpdateStatus(ctx context.Context, db sqlx.ExtContext, o Order) error {
	const q = `UPDATE orders SET status = :status, updated_at = :updated_at WHERE order_id = :order_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, o); err != nil {
		return fmt.Errorf("updating status of order[%s]: %w", o.ID, err)
	}
	return nil
}
