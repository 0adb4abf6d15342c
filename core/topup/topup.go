package topup

import "time"

type Status string

const (
	Pending  Status = "pending"
	Approved Status = "approved"
	Rejected Status = "rejected"
)

// Request is a student-initiated wallet top-up, paid out-of-band and
// credited only after an admin approves it. Once resolved it is
// terminal: re-approving or re-rejecting is a conflict.
type Request struct {
	ID         string    `json:"id" db:"request_id"`
	UserID     string    `json:"userId" db:"user_id"`
	Amount     int       `json:"amount" db:"amount"`
	Status     Status    `json:"status" db:"status"`
	ReceiptKey string    `json:"receiptKey" db:"receipt_key"`
	AdminNotes string    `json:"adminNotes" db:"admin_notes"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

type RequestNew struct {
	Amount     int    `json:"amount" validate:"required,gt=0,lte=1000000"`
	ReceiptKey string `json:"receiptKey" validate:"required"`
}

type Resolution struct {
	AdminNotes string `json:"adminNotes"`
}
