package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/hanifm/coursery/api/background"
	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/core/user"
	"github.com/hanifm/coursery/database"
	"github.com/hanifm/coursery/random"
	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

type TokenNew struct {
	Email string `json:"email" validate:"required,email"`
	Scope string `json:"scope" validate:"required,oneof=activation recovery"`
}

type Activation struct {
	Token string `json:"token" validate:"required"`
}

type Recovery struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// HandleToken issues a fresh activation or recovery token and mails it.
// The response is 202 regardless of whether the email exists, so the
// endpoint cannot be used to probe accounts.
func HandleToken(db *sqlx.DB, mailer Mailer, timeout time.Duration, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var tn TokenNew
		if err := web.Decode(w, r, &tn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding token request: %w", err))
		}

		if err := validate.Check(tn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		u, err := user.FetchByEmail(ctx, db, tn.Email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return web.Respond(ctx, w, nil, http.StatusAccepted)
			}
			return fmt.Errorf("fetching user by email: %w", err)
		}

		plaintext, err := random.StringSecure(26)
		if err != nil {
			return fmt.Errorf("generating token: %w", err)
		}

		t := Token{
			Hash:      Hash(plaintext),
			UserID:    u.ID,
			Scope:     tn.Scope,
			ExpiresAt: time.Now().UTC().Add(timeout),
		}

		if err := Create(ctx, db, t); err != nil {
			return fmt.Errorf("storing token: %w", err)
		}

		scope, email := tn.Scope, u.Email
		bg.Add("send-"+scope+"-email", func() error {
			if scope == ScopeActivation {
				return mailer.SendActivation(email, plaintext)
			}
			return mailer.SendRecovery(email, plaintext)
		})

		return web.Respond(ctx, w, nil, http.StatusAccepted)
	}
}

func HandleActivation(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var act Activation
		if err := web.Decode(w, r, &act); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding activation: %w", err))
		}

		if err := validate.Check(act); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var u user.User

		terr := database.Transaction(db, func(tx sqlx.ExtContext) error {
			t, err := Fetch(ctx, tx, Hash(act.Token), ScopeActivation)
			if err != nil {
				return err
			}

			if time.Now().UTC().After(t.ExpiresAt) {
				return ErrNotFound
			}

			if u, err = user.Fetch(ctx, tx, t.UserID); err != nil {
				return err
			}

			u.Active = true
			u.UpdatedAt = time.Now().UTC()
			if err := user.Update(ctx, tx, u); err != nil {
				return err
			}

			return DeleteByUser(ctx, tx, u.ID, ScopeActivation)
		})

		if terr != nil {
			if errors.Is(terr, ErrNotFound) || errors.Is(terr, user.ErrNotFound) {
				return weberr.NewError(terr, "invalid or expired token", http.StatusUnprocessableEntity)
			}
			return fmt.Errorf("activating account: %w", terr)
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

func HandleRecovery(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var rec Recovery
		if err := web.Decode(w, r, &rec); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding recovery: %w", err))
		}

		if err := validate.Check(rec); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(rec.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		terr := database.Transaction(db, func(tx sqlx.ExtContext) error {
			t, err := Fetch(ctx, tx, Hash(rec.Token), ScopeRecovery)
			if err != nil {
				return err
			}

			if time.Now().UTC().After(t.ExpiresAt) {
				return ErrNotFound
			}

			u, err := user.Fetch(ctx, tx, t.UserID)
			if err != nil {
				return err
			}

			u.PasswordHash = string(hash)
			u.UpdatedAt = time.Now().UTC()
			if err := user.Update(ctx, tx, u); err != nil {
				return err
			}

			return DeleteByUser(ctx, tx, u.ID, ScopeRecovery)
		})

		if terr != nil {
			if errors.Is(terr, ErrNotFound) || errors.Is(terr, user.ErrNotFound) {
				return weberr.NewError(terr, "invalid or expired token", http.StatusUnprocessableEntity)
			}
			return fmt.Errorf("recovering account: %w", terr)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
