package video

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hanifm/coursery/api/background"
	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/core/claims"
	"github.com/hanifm/coursery/core/course"
	"github.com/hanifm/coursery/core/enrollment"
	"github.com/hanifm/coursery/core/ordering"
	"github.com/hanifm/coursery/database"
	"github.com/hanifm/coursery/validate"
	"github.com/hanifm/coursery/videohost"
	"github.com/jmoiron/sqlx"
)

// fetchOwned loads the course and checks the caller may manage its
// videos: the owner or an admin.
func fetchOwned(ctx context.Context, db sqlx.ExtContext, courseID string) (course.Course, error) {
	c, err := course.Fetch(ctx, db, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return course.Course{}, weberr.NotFound(err)
		}
		return course.Course{}, fmt.Errorf("fetching course[%s]: %w", courseID, err)
	}

	if !claims.IsUser(ctx, c.OwnerID) && !claims.IsAdmin(ctx) {
		return course.Course{}, weberr.Forbidden(errors.New("only the course owner can manage videos"))
	}

	return c, nil
}

// HandleUploadInit asks the video host for a direct upload URL. The
// browser uploads the raw file straight to the host; the API never
// proxies video bytes.
func HandleUploadInit(db *sqlx.DB, vh *videohost.Client, corsOrigin string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		up, err := vh.CreateDirectUpload(ctx, corsOrigin)
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("creating direct upload: %w", err))
		}

		return web.Respond(ctx, w, up, http.StatusCreated)
	}
}

// HandleUploadStatus reports the transcode state of an asset; the
// uploader polls it until the host reports ready.
func HandleUploadStatus(db *sqlx.DB, vh *videohost.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		asset, err := vh.Asset(ctx, web.Param(r, "asset_id"))
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("fetching asset: %w", err))
		}

		return web.Respond(ctx, w, asset, http.StatusOK)
	}
}

// HandleUploadComplete turns a batch of transcoded assets into video
// rows. Ids continue the per-course video_N sequence and the order
// column is renumbered to stay dense, optionally inserting the batch at
// a given position instead of appending.
func HandleUploadComplete(db *sqlx.DB, vh *videohost.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		var uc UploadComplete
		if err := web.Decode(w, r, &uc); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding upload completion: %w", err))
		}

		if err := validate.Check(uc); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		// Resolve playback ids before opening the transaction; the
		// host calls are slow and fallible.
		assets := make([]videohost.Asset, 0, len(uc.Videos))
		for _, vn := range uc.Videos {
			a, err := vh.Asset(ctx, vn.AssetID)
			if err != nil {
				return weberr.BadGateway(fmt.Errorf("fetching asset[%s]: %w", vn.AssetID, err))
			}
			if a.Status != videohost.StatusReady {
				err := fmt.Errorf("asset[%s] is %s, not ready", a.ID, a.Status)
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			assets = append(assets, a)
		}

		var created []Video

		terr := database.Transaction(db, func(tx sqlx.ExtContext) error {
			c, err := course.FetchForUpdate(ctx, tx, courseID)
			if err != nil {
				return err
			}

			existing, err := ListByCourse(ctx, tx, courseID)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(existing))
			for _, v := range existing {
				ids = append(ids, v.ID)
			}

			now := time.Now().UTC()
			incoming := make([]Video, 0, len(uc.Videos))
			for i, vn := range uc.Videos {
				id := ordering.NextID(ids, IDPrefix)
				ids = append(ids, id)

				// Some hosts report no duration until well after
				// the transcode; the uploader's value fills in.
				duration := assets[i].Duration
				if duration == 0 {
					duration = vn.Duration
				}

				incoming = append(incoming, Video{
					ID:          id,
					CourseID:    courseID,
					Title:       vn.Title,
					Section:     vn.Section,
					Duration:    duration,
					Visible:     true,
					FreePreview: vn.FreePreview,
					AssetID:     assets[i].ID,
					PlaybackID:  assets[i].PlaybackID,
					CreatedAt:   now,
					UpdatedAt:   now,
				})
			}

			var all []Video
			if uc.InsertAt > 0 {
				all = ordering.InsertBatch(existing, incoming, uc.InsertAt)
			} else {
				all = ordering.AppendBatch(existing, incoming)
			}

			isNew := make(map[string]bool, len(incoming))
			for _, v := range incoming {
				isNew[v.ID] = true
			}

			for _, v := range all {
				if isNew[v.ID] {
					if err := Create(ctx, tx, v); err != nil {
						return err
					}
					created = append(created, v)
				}
			}

			if err := SaveOrders(ctx, tx, all); err != nil {
				return err
			}

			c.UpdatedAt = now
			return course.Update(ctx, tx, c)
		})

		if terr != nil {
			if errors.Is(terr, course.ErrNotFound) {
				return weberr.NotFound(terr)
			}
			return fmt.Errorf("creating videos for course[%s]: %w", courseID, terr)
		}

		return web.Respond(ctx, w, created, http.StatusCreated)
	}
}

// HandleListByCourse lists a course's videos in order. Hidden videos
// and playback ids are stripped for viewers who are not the owner; the
// playback id of a gated video never leaves the API for an unentitled
// viewer.
func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := course.Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		videos, err := ListByCourse(ctx, db, courseID)
		if err != nil {
			return fmt.Errorf("listing videos of course[%s]: %w", courseID, err)
		}

		if claims.IsUser(ctx, c.OwnerID) || claims.IsAdmin(ctx) {
			return web.Respond(ctx, w, videos, http.StatusOK)
		}

		isEnrolled := false
		if clm, err := claims.Get(ctx); err == nil {
			if isEnrolled, err = enrollment.IsEnrolled(ctx, db, clm.UserID, courseID); err != nil {
				return fmt.Errorf("checking enrollment: %w", err)
			}
		}

		visible := make([]Video, 0, len(videos))
		for _, v := range videos {
			if !v.Visible {
				continue
			}
			if !CanAccess(v, c.Price, isEnrolled) {
				v.PlaybackID = ""
			}
			visible = append(visible, v)
		}

		return web.Respond(ctx, w, visible, http.StatusOK)
	}
}

// HandleShow returns a single video with its playback id, applying the
// access gate server-side. This is the security boundary: whatever the
// client decided, an unentitled request gets no playback information.
func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}
		videoID := web.Param(r, "id")

		c, err := course.Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		v, err := Fetch(ctx, db, courseID, videoID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching video[%s]: %w", videoID, err)
		}

		if claims.IsUser(ctx, c.OwnerID) || claims.IsAdmin(ctx) {
			return web.Respond(ctx, w, v, http.StatusOK)
		}

		isEnrolled := false
		if clm, err := claims.Get(ctx); err == nil {
			if isEnrolled, err = enrollment.IsEnrolled(ctx, db, clm.UserID, courseID); err != nil {
				return fmt.Errorf("checking enrollment: %w", err)
			}
		}

		if !CanAccess(v, c.Price, isEnrolled) {
			return weberr.Forbidden(errors.New("not entitled to play this video"))
		}

		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}
		videoID := web.Param(r, "id")

		var vu VideoUp
		if err := web.Decode(w, r, &vu); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding video update: %w", err))
		}

		if err := validate.Check(vu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		v, err := Fetch(ctx, db, courseID, videoID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching video[%s]: %w", videoID, err)
		}

		if vu.Title != nil {
			v.Title = *vu.Title
		}
		if vu.Section != nil {
			v.Section = *vu.Section
		}
		if vu.Duration != nil {
			v.Duration = *vu.Duration
		}
		if vu.Visible != nil {
			v.Visible = *vu.Visible
		}
		if vu.FreePreview != nil {
			v.FreePreview = *vu.FreePreview
		}
		v.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, v); err != nil {
			return fmt.Errorf("updating video[%s]: %w", videoID, err)
		}

		return web.Respond(ctx, w, v, http.StatusOK)
	}
}

// HandleDelete removes the video and renumbers the remainder. Deleting
// the hosted asset is best-effort and runs in the background: a host
// failure is logged, never rolled into the local removal.
func HandleDelete(db *sqlx.DB, vh *videohost.Client, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}
		videoID := web.Param(r, "id")

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		v, err := Fetch(ctx, db, courseID, videoID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching video[%s]: %w", videoID, err)
		}

		terr := database.Transaction(db, func(tx sqlx.ExtContext) error {
			c, err := course.FetchForUpdate(ctx, tx, courseID)
			if err != nil {
				return err
			}

			existing, err := ListByCourse(ctx, tx, courseID)
			if err != nil {
				return err
			}

			if err := Delete(ctx, tx, courseID, videoID); err != nil {
				return err
			}

			remaining := ordering.Remove(existing, videoID)
			if err := SaveOrders(ctx, tx, remaining); err != nil {
				return err
			}

			c.UpdatedAt = time.Now().UTC()
			return course.Update(ctx, tx, c)
		})

		if terr != nil {
			if errors.Is(terr, course.ErrNotFound) {
				return weberr.NotFound(terr)
			}
			return fmt.Errorf("deleting video[%s]: %w", videoID, terr)
		}

		if v.AssetID != "" {
			assetID := v.AssetID
			bg.Add("delete-video-asset", func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return vh.DeleteAsset(ctx, assetID)
			})
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleMove reorders a single video to a requested position. The whole
// list is renumbered inside one transaction holding the course lock, so
// two concurrent moves cannot interleave.
func HandleMove(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}
		videoID := web.Param(r, "id")

		var mv Move
		if err := web.Decode(w, r, &mv); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding move: %w", err))
		}

		if err := validate.Check(mv); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		var moved []Video

		terr := database.Transaction(db, func(tx sqlx.ExtContext) error {
			c, err := course.FetchForUpdate(ctx, tx, courseID)
			if err != nil {
				return err
			}

			existing, err := ListByCourse(ctx, tx, courseID)
			if err != nil {
				return err
			}

			moved, err = ordering.MoveTo(existing, videoID, mv.Order)
			if err != nil {
				return ErrNotFound
			}

			if err := SaveOrders(ctx, tx, moved); err != nil {
				return err
			}

			c.UpdatedAt = time.Now().UTC()
			return course.Update(ctx, tx, c)
		})

		if terr != nil {
			if errors.Is(terr, ErrNotFound) || errors.Is(terr, course.ErrNotFound) {
				return weberr.NotFound(terr)
			}
			return fmt.Errorf("moving video[%s]: %w", videoID, terr)
		}

		return web.Respond(ctx, w, moved, http.StatusOK)
	}
}
