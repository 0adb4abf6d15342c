package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientFunds = errors.New("insufficient wallet balance")

	ErrUserNotFound = errors.New("wallet owner not found")
)

// LockUser takes the per-user wallet lock: the user row, selected FOR
// UPDATE. Every ledger append happens under this lock, which is what
// makes the balance-check-then-append sequence atomic and serializes
// concurrent purchases by the same user.
func LockUser(ctx context.Context, tx sqlx.ExtContext, userID string) error {
	const q = `SELECT user_id FROM users WHERE user_id = $1 FOR UPDATE`

	var id string
	if err := sqlx.GetContext(ctx, tx, &id, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("locking user[%s]: %w", userID, err)
	}
	return nil
}

// Balance reads the latest running total of a user's ledger. A user
// with no transactions has a balance of zero.
func Balance(ctx context.Context, db sqlx.ExtContext, userID string) (int, error) {
	const q = `
	SELECT balance_after FROM wallet_transactions
	WHERE user_id = $1
	ORDER BY seq DESC
	LIMIT 1`

	var balance int
	if err := sqlx.GetContext(ctx, db, &balance, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("selecting balance of user[%s]: %w", userID, err)
	}
	return balance, nil
}

func History(ctx context.Context, db sqlx.ExtContext, userID string, limit int) ([]Transaction, error) {
	const q = `
	SELECT * FROM wallet_transactions
	WHERE user_id = $1
	ORDER BY seq DESC
	LIMIT $2`

	txs := []Transaction{}
	if err := sqlx.SelectContext(ctx, db, &txs, q, userID, limit); err != nil {
		return nil, fmt.Errorf("selecting transactions of user[%s]: %w", userID, err)
	}
	return txs, nil
}

// Debit appends a negative ledger row. It must run inside a transaction
// that already holds the user lock: the balance is re-read under that
// lock, so a concurrent debit either sees this one's row or fails the
// funds check.
func Debit(ctx context.Context, tx sqlx.ExtContext, userID string, amount int, typ Type, desc string, meta map[string]string, now time.Time) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	balance, err := Balance(ctx, tx, userID)
	if err != nil {
		return Transaction{}, err
	}

	if amount > balance {
		return Transaction{}, ErrInsufficientFunds
	}

	return appendRow(ctx, tx, userID, -amount, balance-amount, typ, desc, meta, now)
}

// Credit appends a positive ledger row under the same locking rules as
// Debit. Top-up credits are restricted to admin callers at the handler
// layer.
func Credit(ctx context.Context, tx sqlx.ExtContext, userID string, amount int, typ Type, desc string, meta map[string]string, now time.Time) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	balance, err := Balance(ctx, tx, userID)
	if err != nil {
		return Transaction{}, err
	}

	return appendRow(ctx, tx, userID, amount, balance+amount, typ, desc, meta, now)
}

func appendRow(ctx context.Context, tx sqlx.ExtContext, userID string, amount, balanceAfter int, typ Type, desc string, meta map[string]string, now time.Time) (Transaction, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return Transaction{}, fmt.Errorf("marshaling transaction metadata: %w", err)
	}

	t := Transaction{
		ID:           validate.GenerateID(),
		UserID:       userID,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Description:  desc,
		Metadata:     raw,
		CreatedAt:    now,
	}

	const q = `
	INSERT INTO wallet_transactions
		(transaction_id, user_id, type, amount, balance_after, description, metadata, created_at)
	VALUES
		(:transaction_id, :user_id, :type, :amount, :balance_after, :description, :metadata, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, t); err != nil {
		return Transaction{}, fmt.Errorf("appending transaction for user[%s]: %w", userID, err)
	}
	return t, nil
}
