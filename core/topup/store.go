package topup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("topup request not found")

	// ErrAlreadyResolved guards the terminal state: an approved or
	// rejected request cannot be resolved again.
	ErrAlreadyResolved = errors.New("topup request already resolved")
)

func Create(ctx context.Context, db sqlx.ExtContext, req Request) error {
	const q = `
	INSERT INTO topup_requests
		(request_id, user_id, amount, status, receipt_key, admin_notes, created_at, updated_at)
	VALUES
		(:request_id, :user_id, :amount, :status, :receipt_key, :admin_notes, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, req); err != nil {
		return fmt.Errorf("inserting topup request: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Request, error) {
	const q = `SELECT * FROM topup_requests WHERE request_id = $1`

	var req Request
	if err := sqlx.GetContext(ctx, db, &req, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("selecting topup request[%s]: %w", id, err)
	}
	return req, nil
}

// FetchForUpdate locks the request row. Two racing approvals serialize
// here: the loser re-reads a resolved status and fails the pending
// check.
func FetchForUpdate(ctx context.Context, tx sqlx.ExtContext, id string) (Request, error) {
	const q = `SELECT * FROM topup_requests WHERE request_id = $1 FOR UPDATE`

	var req Request
	if err := sqlx.GetContext(ctx, tx, &req, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("locking topup request[%s]: %w", id, err)
	}
	return req, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Request, error) {
	const q = `SELECT * FROM topup_requests WHERE user_id = $1 ORDER BY created_at DESC`

	reqs := []Request{}
	if err := sqlx.SelectContext(ctx, db, &reqs, q, userID); err != nil {
		return nil, fmt.Errorf("selecting topup requests of user[%s]: %w", userID, err)
	}
	return reqs, nil
}

func ListPending(ctx context.Context, db sqlx.ExtContext) ([]Request, error) {
	const q = `SELECT * FROM topup_requests WHERE status = 'pending' ORDER BY created_at ASC`

	reqs := []Request{}
	if err := sqlx.SelectContext(ctx, db, &reqs, q); err != nil {
		return nil, fmt.Errorf("selecting pending topup requests: %w", err)
	}
	return reqs, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, req Request) error {
	const q = `
	UPDATE topup_requests SET
		status = :status,
		admin_notes = :admin_notes,
		updated_at = :updated_at
	WHERE request_id = :request_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, req); err != nil {
		return fmt.Errorf("updating topup request[%s]: %w", req.ID, err)
	}
	return nil
}
