package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/core/claims"
	"github.com/hanifm/coursery/core/course"
	"github.com/hanifm/coursery/core/enrollment"
	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
)

func HandleShowCurrent(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		u, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		userID := web.Param(r, "id")
		if err := validate.CheckID(userID); err != nil {
			return weberr.BadRequest(err)
		}

		if !claims.IsUser(ctx, userID) && !claims.IsAdmin(ctx) {
			return weberr.Forbidden(errors.New("cannot view other users"))
		}

		u, err := Fetch(ctx, db, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching user[%s]: %w", userID, err)
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

type dashboard struct {
	Enrollments []enrollment.Enrollment `json:"enrollments"`
	Enrolled    []course.Course         `json:"enrolledCourses"`
	Owned       []course.Course         `json:"ownedCourses"`
}

// HandleDashboard assembles the student/instructor landing data. The
// enrollment list and the owned-course list are fetched concurrently;
// this is the only parallel fan-out in the API.
func HandleDashboard(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var d dashboard
		var enrErr, ownErr error
		done := make(chan struct{}, 2)

		go func() {
			d.Enrollments, enrErr = enrollment.ListByUser(ctx, db, clm.UserID)
			done <- struct{}{}
		}()
		go func() {
			d.Owned, ownErr = course.ListOwned(ctx, db, clm.UserID)
			done <- struct{}{}
		}()
		<-done
		<-done

		if enrErr != nil {
			return fmt.Errorf("listing enrollments: %w", enrErr)
		}
		if ownErr != nil {
			return fmt.Errorf("listing owned courses: %w", ownErr)
		}

		ids := make([]string, 0, len(d.Enrollments))
		for _, e := range d.Enrollments {
			if e.Status == enrollment.Completed {
				ids = append(ids, e.CourseID)
			}
		}

		if len(ids) > 0 {
			if d.Enrolled, err = course.ListByIDs(ctx, db, ids); err != nil {
				return fmt.Errorf("listing enrolled courses: %w", err)
			}
		} else {
			d.Enrolled = []course.Course{}
		}

		return web.Respond(ctx, w, d, http.StatusOK)
	}
}
