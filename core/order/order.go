package order

import "time"

type Status string

const (
	Pending Status = "pending"
	Success Status = "success"
	Expired Status = "expired"
)

const (
	ProviderPaypal = "paypal"
	ProviderStripe = "stripe"
)

// Order binds one course purchase to one payment-gateway transaction.
// ProviderID is the gateway's id and is unique: the completion webhook
// is keyed on it, which is what makes replayed webhooks detectable.
type Order struct {
	ID         string    `json:"id" db:"order_id"`
	UserID     string    `json:"userId" db:"user_id"`
	CourseID   string    `json:"courseId" db:"course_id"`
	Provider   string    `json:"provider" db:"provider"`
	ProviderID string    `json:"providerId" db:"provider_id"`
	Price      int       `json:"price" db:"price"`
	Status     Status    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

type CheckoutNew struct {
	CourseID string `json:"courseId" validate:"required"`
}
