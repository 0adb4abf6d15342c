package enrollment

import (
	"fmt"
	"time"
)

type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// StaleAfter is how long a pending enrollment blocks a new purchase
// attempt. There is no background sweep: staleness is checked at the
// next attempt.
const StaleAfter = 15 * time.Minute

type Enrollment struct {
	ID        string    `json:"id" db:"enrollment_id"`
	UserID    string    `json:"userId" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	Status    Status    `json:"status" db:"status"`
	PaymentID string    `json:"paymentId" db:"payment_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ID builds the deterministic document key. One active enrollment per
// user and course falls out of the primary key, not out of a lookup.
func ID(userID, courseID string) string {
	return fmt.Sprintf("%s_%s", userID, courseID)
}

// Stale reports whether a pending enrollment is old enough to be
// replaced by a fresh purchase attempt.
func (e Enrollment) Stale(now time.Time) bool {
	return e.Status == Pending && now.Sub(e.UpdatedAt) > StaleAfter
}
