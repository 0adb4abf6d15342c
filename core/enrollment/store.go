package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound = errors.New("enrollment not found")

	// ErrAlreadyEnrolled is returned when a purchase attempt hits an
	// enrollment that already completed.
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")

	// ErrPurchaseInProgress is returned while a fresh pending
	// enrollment exists for the same user and course.
	ErrPurchaseInProgress = errors.New("a purchase for this course is already in progress")
)

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Enrollment, error) {
	const q = `SELECT * FROM enrollments WHERE enrollment_id = $1`

	var e Enrollment
	if err := sqlx.GetContext(ctx, db, &e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, fmt.Errorf("selecting enrollment[%s]: %w", id, err)
	}
	return e, nil
}

// FetchForUpdate locks the enrollment row so concurrent purchase
// attempts for the same user and course serialize on it.
func FetchForUpdate(ctx context.Context, tx sqlx.ExtContext, id string) (Enrollment, error) {
	const q = `SELECT * FROM enrollments WHERE enrollment_id = $1 FOR UPDATE`

	var e Enrollment
	if err := sqlx.GetContext(ctx, tx, &e, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, ErrNotFound
		}
		return Enrollment{}, fmt.Errorf("locking enrollment[%s]: %w", id, err)
	}
	return e, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Enrollment, error) {
	const q = `SELECT * FROM enrollments WHERE user_id = $1 ORDER BY updated_at DESC`

	enrollments := []Enrollment{}
	if err := sqlx.SelectContext(ctx, db, &enrollments, q, userID); err != nil {
		return nil, fmt.Errorf("selecting enrollments of user[%s]: %w", userID, err)
	}
	return enrollments, nil
}

// IsEnrolled reports whether the user holds a completed enrollment for
// the course. This is the check behind the playback gate.
func IsEnrolled(ctx context.Context, db sqlx.ExtContext, userID, courseID string) (bool, error) {
	e, err := Fetch(ctx, db, ID(userID, courseID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return e.Status == Completed, nil
}

// Begin claims the enrollment slot for a new purchase attempt. Inside
// the caller's transaction it locks the existing row (if any) and
// rejects the attempt when it already completed, or when a pending one
// is still fresh. A stale pending or failed enrollment is replaced.
func Begin(ctx context.Context, tx sqlx.ExtContext, userID, courseID, paymentID string, now time.Time) (Enrollment, error) {
	id := ID(userID, courseID)

	existing, err := FetchForUpdate(ctx, tx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		e := Enrollment{
			ID:        id,
			UserID:    userID,
			CourseID:  courseID,
			Status:    Pending,
			PaymentID: paymentID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		const q = `
		INSERT INTO enrollments
			(enrollment_id, user_id, course_id, status, payment_id, created_at, updated_at)
		VALUES
			(:enrollment_id, :user_id, :course_id, :status, :payment_id, :created_at, :updated_at)`

		if _, err := sqlx.NamedExecContext(ctx, tx, q, e); err != nil {
			return Enrollment{}, fmt.Errorf("inserting enrollment[%s]: %w", id, err)
		}
		return e, nil

	case err != nil:
		return Enrollment{}, err

	case existing.Status == Completed:
		return Enrollment{}, ErrAlreadyEnrolled

	case existing.Status == Pending && !existing.Stale(now):
		return Enrollment{}, ErrPurchaseInProgress
	}

	existing.Status = Pending
	existing.PaymentID = paymentID
	existing.UpdatedAt = now

	if err := save(ctx, tx, existing); err != nil {
		return Enrollment{}, err
	}
	return existing, nil
}

// Complete marks the enrollment paid. Completing an already-completed
// enrollment is the duplicate-payment race and is reported as such.
func Complete(ctx context.Context, tx sqlx.ExtContext, id string, now time.Time) (Enrollment, error) {
	e, err := FetchForUpdate(ctx, tx, id)
	if err != nil {
		return Enrollment{}, err
	}

	if e.Status == Completed {
		return Enrollment{}, ErrAlreadyEnrolled
	}

	e.Status = Completed
	e.UpdatedAt = now

	if err := save(ctx, tx, e); err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// Fail marks a pending enrollment failed after an aborted payment.
func Fail(ctx context.Context, tx sqlx.ExtContext, id string, now time.Time) error {
	e, err := FetchForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}

	if e.Status != Pending {
		return nil
	}

	e.Status = Failed
	e.UpdatedAt = now
	return save(ctx, tx, e)
}

func save(ctx context.Context, tx sqlx.ExtContext, e Enrollment) error {
	const q = `
	UPDATE enrollments SET
		status = :status,
		payment_id = :payment_id,
		updated_at = :updated_at
	WHERE enrollment_id = :enrollment_id`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, e); err != nil {
		return fmt.Errorf("updating enrollment[%s]: %w", e.ID, err)
	}
	return nil
}
