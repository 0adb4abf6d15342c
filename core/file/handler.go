package file

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
	"github.com/hanifm/coursery/storage"
	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
)

func fetchOwned(ctx context.Context, db sqlx.ExtContext, courseID string) (course.Course, error) {
	c, err := course.Fetch(ctx, db, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return course.Course{}, weberr.NotFound(err)
		}
		return course.Course{}, fmt.Errorf("fetching course[%s]: %w", courseID, err)
	}

	if !claims.IsUser(ctx, c.OwnerID) && !claims.IsAdmin(ctx) {
		return course.Course{}, weberr.Forbidden(errors.New("only the course owner can manage files"))
	}

	return c, nil
}

// HandleUploadInit generates a fresh storage key scoped to the course
// and a presigned PUT URL for it.
func HandleUploadInit(db *sqlx.DB, store *storage.Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		var ui UploadInit
		if err := web.Decode(w, r, &ui); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding upload init: %w", err))
		}

		if err := validate.Check(ui); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		key := storage.NewKey(courseID, ui.OriginalName)
		url, err := store.UploadURL(ctx, key)
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("presigning upload: %w", err))
		}

		resp := struct {
			StorageKey string `json:"storageKey"`
			UploadURL  string `json:"uploadUrl"`
		}{key, url}

		return web.Respond(ctx, w, resp, http.StatusCreated)
	}
}

// HandleUploadComplete registers uploaded objects as course files,
// continuing the file_N id sequence and keeping the order dense.
func HandleUploadComplete(db *sqlx.DB) web.Handler {
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

		for _, fn := range uc.Files {
			if err := storage.CheckKey(fn.StorageKey); err != nil {
				return weberr.BadRequest(fmt.Errorf("key[%s]: %w", fn.StorageKey, err))
			}
		}

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		var created []File

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
			for _, f := range existing {
				ids = append(ids, f.ID)
			}

			now := time.Now().UTC()
			incoming := make([]File, 0, len(uc.Files))
			for _, fn := range uc.Files {
				id := ordering.NextID(ids, IDPrefix)
				ids = append(ids, id)

				incoming = append(incoming, File{
					ID:             id,
					CourseID:       courseID,
					StorageKey:     fn.StorageKey,
					OriginalName:   fn.OriginalName,
					Size:           fn.Size,
					RelatedVideoID: fn.RelatedVideoID,
					CreatedAt:      now,
				})
			}

			var all []File
			if uc.InsertAt > 0 {
				all = ordering.InsertBatch(existing, incoming, uc.InsertAt)
			} else {
				all = ordering.AppendBatch(existing, incoming)
			}

			isNew := make(map[string]bool, len(incoming))
			for _, f := range incoming {
				isNew[f.ID] = true
			}

			for _, f := range all {
				if isNew[f.ID] {
					if err := Create(ctx, tx, f); err != nil {
						return err
					}
					created = append(created, f)
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
			return fmt.Errorf("creating files for course[%s]: %w", courseID, terr)
		}

		return web.Respond(ctx, w, created, http.StatusCreated)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		if _, err := course.Fetch(ctx, db, courseID); err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		files, err := ListByCourse(ctx, db, courseID)
		if err != nil {
			return fmt.Errorf("listing files of course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, files, http.StatusOK)
	}
}

// HandleDownload hands out a presigned GET URL for an attachment. Like
// video playback, it is gated server-side: owner, admin, enrolled
// students, and anyone on a wholly free course.
func HandleDownload(db *sqlx.DB, store *storage.Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}
		fileID := web.Param(r, "id")

		c, err := course.Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		f, err := Fetch(ctx, db, courseID, fileID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching file[%s]: %w", fileID, err)
		}

		allowed := claims.IsUser(ctx, c.OwnerID) || claims.IsAdmin(ctx) || c.Price == 0
		if !allowed {
			clm, err := claims.Get(ctx)
			if err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			if allowed, err = enrollment.IsEnrolled(ctx, db, clm.UserID, courseID); err != nil {
				return fmt.Errorf("checking enrollment: %w", err)
			}
		}
		if !allowed {
			return weberr.Forbidden(errors.New("not entitled to download this file"))
		}

		url, err := store.DownloadURL(ctx, f.StorageKey)
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("presigning download: %w", err))
		}

		resp := struct {
			DownloadURL string `json:"downloadUrl"`
		}{url}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleDelete removes the file row and renumbers the remainder; the
// stored object is deleted best-effort in the background.
func HandleDelete(db *sqlx.DB, store *storage.Store, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}
		fileID := web.Param(r, "id")

		if _, err := fetchOwned(ctx, db, courseID); err != nil {
			return err
		}

		f, err := Fetch(ctx, db, courseID, fileID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching file[%s]: %w", fileID, err)
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

			if err := Delete(ctx, tx, courseID, fileID); err != nil {
				return err
			}

			remaining := ordering.Remove(existing, fileID)
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
			return fmt.Errorf("deleting file[%s]: %w", fileID, terr)
		}

		key := f.StorageKey
		bg.Add("delete-file-object", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return store.Delete(ctx, key)
		})

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleMove(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}
		fileID := web.Param(r, "id")

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

		var moved []File

		terr := database.Transaction(db, func(tx sqlx.ExtContext) error {
			c, err := course.FetchForUpdate(ctx, tx, courseID)
			if err != nil {
				return err
			}

			existing, err := ListByCourse(ctx, tx, courseID)
			if err != nil {
				return err
			}

			moved, err = ordering.MoveTo(existing, fileID, mv.Order)
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
			return fmt.Errorf("moving file[%s]: %w", fileID, terr)
		}

		return web.Respond(ctx, w, moved, http.StatusOK)
	}
}
