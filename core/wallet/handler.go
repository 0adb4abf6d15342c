package wallet

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
	"github.com/hanifm/coursery/core/course"
	"github.com/hanifm/coursery/core/enrollment"
	"github.com/hanifm/coursery/database"
	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
)

const defaultHistorySize = 50

func HandleBalance(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		balance, err := Balance(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching balance: %w", err)
		}

		resp := struct {
			Balance int `json:"balance"`
		}{balance}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

func HandleHistory(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		limit := defaultHistorySize
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 200 {
				return weberr.BadRequest(errors.New("limit must be a number between 1 and 200"))
			}
			limit = n
		}

		txs, err := History(ctx, db, clm.UserID, limit)
		if err != nil {
			return fmt.Errorf("fetching transaction history: %w", err)
		}

		return web.Respond(ctx, w, txs, http.StatusOK)
	}
}

// HandlePurchase buys a course with the wallet balance. The funds
// check, the ledger append and the enrollment all land in one database
// transaction under the user lock, so two concurrent purchases cannot
// both succeed and an overdraft cannot slip through between check and
// write.
func HandlePurchase(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var pn PurchaseNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding purchase: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		if err := validate.CheckID(pn.CourseID); err != nil {
			return weberr.BadRequest(err)
		}

		var tx Transaction
		var enr enrollment.Enrollment
		var price int

		terr := database.Transaction(db, func(dbtx sqlx.ExtContext) error {
			now := time.Now().UTC()

			// Lock order is user, enrollment, course everywhere a
			// purchase-shaped transaction runs.
			if err := LockUser(ctx, dbtx, clm.UserID); err != nil {
				return err
			}

			c, err := course.Fetch(ctx, dbtx, pn.CourseID)
			if err != nil {
				return err
			}
			if c.Status != course.Published || !c.Approved {
				return course.ErrNotFound
			}
			if c.OwnerID == clm.UserID {
				return errors.New("instructors cannot purchase their own course")
			}
			price = c.Price

			paymentID := "wallet_" + validate.GenerateID()
			if enr, err = enrollment.Begin(ctx, dbtx, clm.UserID, pn.CourseID, paymentID, now); err != nil {
				return err
			}

			if c.Price > 0 {
				meta := map[string]string{"courseId": c.ID, "paymentId": paymentID}
				tx, err = Debit(ctx, dbtx, clm.UserID, c.Price, TypePurchase, "purchase of "+c.Name, meta, now)
				if err != nil {
					return err
				}
			}

			if enr, err = enrollment.Complete(ctx, dbtx, enr.ID, now); err != nil {
				return err
			}

			locked, err := course.FetchForUpdate(ctx, dbtx, c.ID)
			if err != nil {
				return err
			}
			locked.StudentsEnrolled++
			locked.UpdatedAt = now
			return course.Update(ctx, dbtx, locked)
		})

		if terr != nil {
			switch {
			case errors.Is(terr, ErrInsufficientFunds):
				return weberr.PaymentRequired(terr, "insufficient wallet balance")
			case errors.Is(terr, enrollment.ErrAlreadyEnrolled):
				return weberr.Conflict(terr, "already enrolled in this course")
			case errors.Is(terr, enrollment.ErrPurchaseInProgress):
				return weberr.Conflict(terr, "a purchase for this course is already in progress")
			case errors.Is(terr, course.ErrNotFound):
				return weberr.NotFound(terr)
			default:
				return fmt.Errorf("purchasing course[%s]: %w", pn.CourseID, terr)
			}
		}

		newBalance := tx.BalanceAfter
		if price == 0 {
			if newBalance, err = Balance(ctx, db, clm.UserID); err != nil {
				return fmt.Errorf("fetching balance: %w", err)
			}
		}

		resp := struct {
			Enrollment enrollment.Enrollment `json:"enrollment"`
			NewBalance int                   `json:"newBalance"`
		}{enr, newBalance}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
