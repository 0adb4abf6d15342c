package topup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/core/claims"
	"github.com/hanifm/coursery/core/wallet"
	"github.com/hanifm/coursery/database"
	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var rn RequestNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding topup request: %w", err))
		}

		if err := validate.Check(rn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		req := Request{
			ID:         validate.GenerateID(),
			UserID:     clm.UserID,
			Amount:     rn.Amount,
			Status:     Pending,
			ReceiptKey: rn.ReceiptKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := Create(ctx, db, req); err != nil {
			return fmt.Errorf("creating topup request: %w", err)
		}

		return web.Respond(ctx, w, req, http.StatusCreated)
	}
}

func HandleListMine(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		reqs, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing topup requests: %w", err)
		}

		return web.Respond(ctx, w, reqs, http.StatusOK)
	}
}

func HandleListPending(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		reqs, err := ListPending(ctx, db)
		if err != nil {
			return fmt.Errorf("listing pending topup requests: %w", err)
		}

		return web.Respond(ctx, w, reqs, http.StatusOK)
	}
}

// HandleApprove flips a pending request to approved and credits the
// wallet in one transaction. A crash between the two is impossible by
// construction; a second approval loses the row lock race and gets a
// conflict.
func HandleApprove(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		requestID := web.Param(r, "id")
		if err := validate.CheckID(requestID); err != nil {
			return weberr.BadRequest(err)
		}

		var res Resolution
		if err := web.Decode(w, r, &res); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding resolution: %w", err))
		}

		var req Request
		var tx wallet.Transaction

		terr := database.Transaction(db, func(dbtx sqlx.ExtContext) error {
			now := time.Now().UTC()

			var err error
			if req, err = FetchForUpdate(ctx, dbtx, requestID); err != nil {
				return err
			}

			if req.Status != Pending {
				return ErrAlreadyResolved
			}

			if err := wallet.LockUser(ctx, dbtx, req.UserID); err != nil {
				return err
			}

			meta := map[string]string{"topupRequestId": req.ID, "receiptKey": req.ReceiptKey}
			tx, err = wallet.Credit(ctx, dbtx, req.UserID, req.Amount, wallet.TypeTopup, "wallet top-up", meta, now)
			if err != nil {
				return err
			}

			req.Status = Approved
			req.AdminNotes = res.AdminNotes
			req.UpdatedAt = now
			return Update(ctx, dbtx, req)
		})

		if terr != nil {
			switch {
			case errors.Is(terr, ErrNotFound):
				return weberr.NotFound(terr)
			case errors.Is(terr, ErrAlreadyResolved):
				return weberr.Conflict(terr, "topup request already resolved")
			default:
				return fmt.Errorf("approving topup request[%s]: %w", requestID, terr)
			}
		}

		resp := struct {
			Request     Request            `json:"request"`
			Transaction wallet.Transaction `json:"transaction"`
		}{req, tx}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

func HandleReject(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		requestID := web.Param(r, "id")
		if err := validate.CheckID(requestID); err != nil {
			return weberr.BadRequest(err)
		}

		var res Resolution
		if err := web.Decode(w, r, &res); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding resolution: %w", err))
		}

		var req Request

		terr := database.Transaction(db, func(dbtx sqlx.ExtContext) error {
			var err error
			if req, err = FetchForUpdate(ctx, dbtx, requestID); err != nil {
				return err
			}

			if req.Status != Pending {
				return ErrAlreadyResolved
			}

			req.Status = Rejected
			req.AdminNotes = res.AdminNotes
			req.UpdatedAt = time.Now().UTC()
			return Update(ctx, dbtx, req)
		})

		if terr != nil {
			switch {
			case errors.Is(terr, ErrNotFound):
				return weberr.NotFound(terr)
			case errors.Is(terr, ErrAlreadyResolved):
				return weberr.Conflict(terr, "topup request already resolved")
			default:
				return fmt.Errorf("rejecting topup request[%s]: %w", requestID, terr)
			}
		}

		return web.Respond(ctx, w, req, http.StatusOK)
	}
}
