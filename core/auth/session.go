package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/core/claims"
)

const (
	sessionUserID = "userID"
	sessionRole   = "role"
)

// LoadAndSave adapts the scs middleware to the web.Handler chain and,
// when a session is present, materializes its claims into the context
// so optional-auth handlers can look them up without forcing a login.
func LoadAndSave(s *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			var err error
			sh := s.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := r.Context()

				if userID := s.GetString(ctx, sessionUserID); userID != "" {
					ctx = claims.Set(ctx, claims.Claims{
						UserID: userID,
						Role:   s.GetString(ctx, sessionRole),
					})
				}

				err = handler(ctx, w, r)
			}))
			sh.ServeHTTP(w, r)

			return err
		}
		return h
	}
	return m
}

// Authenticate rejects requests without a logged-in session.
func Authenticate(s *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Admin rejects requests whose session does not carry the admin role.
// The role is read from the server-side session, never from anything
// the client asserts.
func Admin(s *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			if !claims.IsAdmin(ctx) {
				return weberr.Forbidden(errors.New("admin role required"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Instructor allows instructors and admins through.
func Instructor(s *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			if !claims.IsInstructor(ctx) && !claims.IsAdmin(ctx) {
				return weberr.Forbidden(errors.New("instructor role required"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func login(ctx context.Context, s *scs.SessionManager, userID, role string) error {
	// Renew the token on privilege change to prevent session fixation.
	if err := s.RenewToken(ctx); err != nil {
		return err
	}

	s.Put(ctx, sessionUserID, userID)
	s.Put(ctx, sessionRole, role)
	return nil
}

func logout(ctx context.Context, s *scs.SessionManager) error {
	return s.Destroy(ctx)
}
