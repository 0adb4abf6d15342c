package token

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	ScopeActivation = "activation"
	ScopeRecovery   = "recovery"
)

var ErrNotFound = errors.New("token not found")

// Token is a single-use credential mailed to the user. Only its sha256
// hash is stored; the plaintext exists in the email alone.
type Token struct {
	Hash      string    `db:"token_hash"`
	UserID    string    `db:"user_id"`
	Scope     string    `db:"scope"`
	ExpiresAt time.Time `db:"expires_at"`
}

// Mailer sends account emails. Implementations must be safe for
// concurrent use: sending happens on background goroutines.
type Mailer interface {
	SendActivation(to, plaintext string) error
	SendRecovery(to, plaintext string) error
}

func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func Create(ctx context.Context, db sqlx.ExtContext, t Token) error {
	const q = `
	INSERT INTO tokens (token_hash, user_id, scope, expires_at)
	VALUES (:token_hash, :user_id, :scope, :expires_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, t); err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, hash, scope string) (Token, error) {
	const q = `SELECT * FROM tokens WHERE token_hash = $1 AND scope = $2`

	var t Token
	if err := sqlx.GetContext(ctx, db, &t, q, hash, scope); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Token{}, ErrNotFound
		}
		return Token{}, fmt.Errorf("selecting token: %w", err)
	}
	return t, nil
}

// DeleteByUser removes all of a user's tokens in a scope, consuming
// the one just used and invalidating any stale siblings.
func DeleteByUser(ctx context.Context, db sqlx.ExtContext, userID, scope string) error {
	const q = `DELETE FROM tokens WHERE user_id = $1 AND scope = $2`

	if _, err := db.ExecContext(ctx, q, userID, scope); err != nil {
		return fmt.Errorf("deleting tokens of user[%s]: %w", userID, err)
	}
	return nil
}
