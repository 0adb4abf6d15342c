package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("course not found")

	// ErrVersionConflict signals that a concurrent writer updated the
	// course between our read and write. The caller should re-read and
	// retry instead of silently overwriting.
	ErrVersionConflict = errors.New("course was modified concurrently")
)

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, owner_id, name, description, image_url, price, status,
		approved, rejected, deleted, students_enrolled, version, created_at, updated_at)
	VALUES
		(:course_id, :owner_id, :name, :description, :image_url, :price, :status,
		:approved, :rejected, :deleted, :students_enrolled, :version, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1 AND NOT deleted`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

// FetchForUpdate locks the course row for the remainder of the
// transaction. The ordering engine serializes its whole-list rewrites
// through this lock combined with the version check on Update.
func FetchForUpdate(ctx context.Context, tx sqlx.ExtContext, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1 AND NOT deleted FOR UPDATE`

	var c Course
	if err := sqlx.GetContext(ctx, tx, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("locking course[%s]: %w", id, err)
	}
	return c, nil
}

// Update writes the course back guarded by its version: the write only
// lands if no one else updated the row since it was read.
func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		status = :status,
		approved = :approved,
		rejected = :rejected,
		deleted = :deleted,
		students_enrolled = :students_enrolled,
		version = version + 1,
		updated_at = :updated_at
	WHERE course_id = :course_id AND version = :version`

	res, err := sqlx.NamedExecContext(ctx, db, q, c)
	if err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of course[%s]: %w", c.ID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// List returns published, approved courses newest-first. A non-empty
// cursor resumes the listing after the given course id.
func List(ctx context.Context, db sqlx.ExtContext, cursor string, limit int) ([]Course, error) {
	const q = `
	SELECT * FROM courses
	WHERE status = 'published' AND approved AND NOT deleted
		AND ($1 = '' OR (updated_at, course_id) < (SELECT updated_at, course_id FROM courses WHERE course_id = $1))
	ORDER BY updated_at DESC, course_id DESC
	LIMIT $2`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q, cursor, limit); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return courses, nil
}

func ListOwned(ctx context.Context, db sqlx.ExtContext, ownerID string) ([]Course, error) {
	const q = `SELECT * FROM courses WHERE owner_id = $1 AND NOT deleted ORDER BY updated_at DESC`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q, ownerID); err != nil {
		return nil, fmt.Errorf("selecting courses of owner[%s]: %w", ownerID, err)
	}
	return courses, nil
}

// ListPendingReview returns courses waiting for an admin decision.
func ListPendingReview(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	const q = `
	SELECT * FROM courses
	WHERE status = 'draft' AND NOT approved AND NOT rejected AND NOT deleted
	ORDER BY created_at ASC`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q); err != nil {
		return nil, fmt.Errorf("selecting courses pending review: %w", err)
	}
	return courses, nil
}

func ListByIDs(ctx context.Context, db sqlx.ExtContext, ids []string) ([]Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = ANY($1) AND NOT deleted ORDER BY updated_at DESC`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("selecting courses by ids: %w", err)
	}
	return courses, nil
}

// Purge removes a soft-deleted course and, via cascade, its videos and
// files. Courses that are not soft-deleted first cannot be purged.
func Purge(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `DELETE FROM courses WHERE course_id = $1 AND deleted`

	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("purging course[%s]: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking purge of course[%s]: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FetchDeleted is used by the restore path; Fetch filters soft-deleted
// rows out.
func FetchDeleted(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1 AND deleted`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("selecting deleted course[%s]: %w", id, err)
	}
	return c, nil
}
