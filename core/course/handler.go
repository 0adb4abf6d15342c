package course

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/core/claims"
	"github.com/hanifm/coursery/database"
	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
)

const defaultPageSize = 20

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding course: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		c := Course{
			ID:          validate.GenerateID(),
			OwnerID:     clm.UserID,
			Name:        cn.Name,
			Description: cn.Description,
			ImageURL:    cn.ImageURL,
			Price:       cn.Price,
			Status:      Draft,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, c); err != nil {
			return fmt.Errorf("creating course: %w", err)
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding course update: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		if !claims.IsUser(ctx, c.OwnerID) && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("only the course owner can edit it"))
		}

		if cu.Name != nil {
			c.Name = *cu.Name
		}
		if cu.Description != nil {
			c.Description = *cu.Description
		}
		if cu.Price != nil {
			c.Price = *cu.Price
		}
		if cu.ImageURL != nil {
			c.ImageURL = *cu.ImageURL
		}
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return weberr.Conflict(err, "the course was modified, reload and retry")
			}
			return fmt.Errorf("updating course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		// Unpublished courses are only visible to their owner and admins.
		if c.Status != Published && !claims.IsUser(ctx, c.OwnerID) && !claims.IsAdmin(ctx) {
			return weberr.NotFound(errors.New("course is not published"))
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cursor := r.URL.Query().Get("after")
		if cursor != "" {
			if err := validate.CheckID(cursor); err != nil {
				return weberr.BadRequest(err)
			}
		}

		limit := defaultPageSize
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 100 {
				return weberr.BadRequest(errors.New("limit must be a number between 1 and 100"))
			}
			limit = n
		}

		courses, err := List(ctx, db, cursor, limit)
		if err != nil {
			return fmt.Errorf("listing courses: %w", err)
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courses, err := ListOwned(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing owned courses: %w", err)
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}

func HandleListPendingReview(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courses, err := ListPendingReview(ctx, db)
		if err != nil {
			return fmt.Errorf("listing courses pending review: %w", err)
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}

// HandleReview records the admin decision on a submitted course:
// approval publishes it, rejection sends it back to the owner.
func HandleReview(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		var d Decision
		if err := web.Decode(w, r, &d); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding decision: %w", err))
		}

		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			c, err := FetchForUpdate(ctx, tx, courseID)
			if err != nil {
				return err
			}

			c.Approved = d.Approved
			c.Rejected = !d.Approved
			if d.Approved {
				c.Status = Published
			}
			c.UpdatedAt = time.Now().UTC()

			return Update(ctx, tx, c)
		})

		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("reviewing course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleSubmit puts a draft back into the review queue after the owner
// has reworked it. Rejection is not final: clearing the flag makes the
// course show up again in the admin listing.
func HandleSubmit(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		if !claims.IsUser(ctx, c.OwnerID) && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("only the course owner can submit it for review"))
		}

		if c.Status != Draft {
			err := errors.New("only drafts can be submitted for review")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c.Approved = false
		c.Rejected = false
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return weberr.Conflict(err, "the course was modified, reload and retry")
			}
			return fmt.Errorf("submitting course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

// HandleDelete soft-deletes: the flag is set, the payload is retained
// and can be restored until an admin purges it.
func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := Fetch(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", courseID, err)
		}

		if !claims.IsUser(ctx, c.OwnerID) && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("only the course owner can delete it"))
		}

		c.Deleted = true
		c.Status = Archived
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return fmt.Errorf("soft-deleting course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleRestore(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := FetchDeleted(ctx, db, courseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching deleted course[%s]: %w", courseID, err)
		}

		c.Deleted = false
		c.Status = Draft
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return fmt.Errorf("restoring course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandlePurge(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.BadRequest(err)
		}

		if err := Purge(ctx, db, courseID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("purging course[%s]: %w", courseID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
