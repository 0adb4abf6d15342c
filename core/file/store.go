package file

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("file not found")

func Create(ctx context.Context, db sqlx.ExtContext, f File) error {
	const q = `
	INSERT INTO course_files
		(file_id, course_id, storage_key, original_name, size, order_num, related_video_id, created_at)
	VALUES
		(:file_id, :course_id, :storage_key, :original_name, :size, :order_num, :related_video_id, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, f); err != nil {
		return fmt.Errorf("inserting file[%s] of course[%s]: %w", f.ID, f.CourseID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, courseID, fileID string) (File, error) {
	const q = `SELECT * FROM course_files WHERE course_id = $1 AND file_id = $2`

	var f File
	if err := sqlx.GetContext(ctx, db, &f, q, courseID, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return File{}, ErrNotFound
		}
		return File{}, fmt.Errorf("selecting file[%s] of course[%s]: %w", fileID, courseID, err)
	}
	return f, nil
}

func ListByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]File, error) {
	const q = `SELECT * FROM course_files WHERE course_id = $1 ORDER BY order_num ASC`

	files := []File{}
	if err := sqlx.SelectContext(ctx, db, &files, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting files of course[%s]: %w", courseID, err)
	}
	return files, nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, courseID, fileID string) error {
	const q = `DELETE FROM course_files WHERE course_id = $1 AND file_id = $2`

	if _, err := db.ExecContext(ctx, q, courseID, fileID); err != nil {
		return fmt.Errorf("deleting file[%s] of course[%s]: %w", fileID, courseID, err)
	}
	return nil
}

// SaveOrders rewrites the order column for the whole list under the
// course row lock, mirroring the video store.
func SaveOrders(ctx context.Context, tx sqlx.ExtContext, files []File) error {
	const q = `UPDATE course_files SET order_num = $1 WHERE course_id = $2 AND file_id = $3`

	for _, f := range files {
		if _, err := tx.ExecContext(ctx, q, f.Order, f.CourseID, f.ID); err != nil {
			return fmt.Errorf("saving order of file[%s]: %w", f.ID, err)
		}
	}
	return nil
}
