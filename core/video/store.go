package video

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("video not found")

func Create(ctx context.Context, db sqlx.ExtContext, v Video) error {
	const q = `
	INSERT INTO videos
		(video_id, course_id, title, section, order_num, duration, visible,
		free_preview, asset_id, playback_id, created_at, updated_at)
	VALUES
		(:video_id, :course_id, :title, :section, :order_num, :duration, :visible,
		:free_preview, :asset_id, :playback_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, v); err != nil {
		return fmt.Errorf("inserting video[%s] of course[%s]: %w", v.ID, v.CourseID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, courseID, videoID string) (Video, error) {
	const q = `SELECT * FROM videos WHERE course_id = $1 AND video_id = $2`

	var v Video
	if err := sqlx.GetContext(ctx, db, &v, q, courseID, videoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Video{}, ErrNotFound
		}
		return Video{}, fmt.Errorf("selecting video[%s] of course[%s]: %w", videoID, courseID, err)
	}
	return v, nil
}

func ListByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Video, error) {
	const q = `SELECT * FROM videos WHERE course_id = $1 ORDER BY order_num ASC`

	videos := []Video{}
	if err := sqlx.SelectContext(ctx, db, &videos, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting videos of course[%s]: %w", courseID, err)
	}
	return videos, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, v Video) error {
	const q = `
	UPDATE videos SET
		title = :title,
		section = :section,
		order_num = :order_num,
		duration = :duration,
		visible = :visible,
		free_preview = :free_preview,
		playback_id = :playback_id,
		updated_at = :updated_at
	WHERE course_id = :course_id AND video_id = :video_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, v); err != nil {
		return fmt.Errorf("updating video[%s] of course[%s]: %w", v.ID, v.CourseID, err)
	}
	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, courseID, videoID string) error {
	const q = `DELETE FROM videos WHERE course_id = $1 AND video_id = $2`

	if _, err := db.ExecContext(ctx, q, courseID, videoID); err != nil {
		return fmt.Errorf("deleting video[%s] of course[%s]: %w", videoID, courseID, err)
	}
	return nil
}

// SaveOrders rewrites the order column for the whole list. It is always
// called inside the transaction that holds the course row lock, so two
// concurrent reorders cannot interleave their writes.
func SaveOrders(ctx context.Context, tx sqlx.ExtContext, videos []Video) error {
	const q = `UPDATE videos SET order_num = $1, updated_at = now() WHERE course_id = $2 AND video_id = $3`

	for _, v := range videos {
		if _, err := tx.ExecContext(ctx, q, v.Order, v.CourseID, v.ID); err != nil {
			return fmt.Errorf("saving order of video[%s]: %w", v.ID, err)
		}
	}
	return nil
}
