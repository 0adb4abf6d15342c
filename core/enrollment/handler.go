package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/core/claims"
	"github.com/jmoiron/sqlx"
)

func HandleListMine(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		enrollments, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing enrollments: %w", err)
		}

		return web.Respond(ctx, w, enrollments, http.StatusOK)
	}
}
