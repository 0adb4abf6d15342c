package wallet

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type Type string

const (
	TypeTopup    Type = "topup"
	TypePurchase Type = "purchase"
	TypeRefund   Type = "refund"
	TypeBonus    Type = "bonus"
	TypePenalty  Type = "penalty"
)

// Transaction is one row of the append-only ledger. The wallet balance
// is the BalanceAfter of the latest row, never a summation: every
// balance mutation appends exactly one row carrying the new running
// total.
type Transaction struct {
	ID           string         `json:"id" db:"transaction_id"`
	Seq          int64          `json:"-" db:"seq"`
	UserID       string         `json:"userId" db:"user_id"`
	Type         Type           `json:"type" db:"type"`
	Amount       int            `json:"amount" db:"amount"`
	BalanceAfter int            `json:"balanceAfter" db:"balance_after"`
	Description  string         `json:"description" db:"description"`
	Metadata     types.JSONText `json:"metadata" db:"metadata"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
}

type PurchaseNew struct {
	CourseID string `json:"courseId" validate:"required"`
}
