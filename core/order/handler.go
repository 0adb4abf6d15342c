package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/config"
	"github.com/hanifm/coursery/core/claims"
	"github.com/hanifm/coursery/core/course"
	"github.com/hanifm/coursery/core/enrollment"
	"github.com/hanifm/coursery/core/wallet"
	"github.com/hanifm/coursery/database"
	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/plutov/paypal/v4"
)

// checkout validates that the course can be bought by this user through
// a payment gateway. Free and unlisted courses never reach a gateway.
func checkout(ctx context.Context, db *sqlx.DB, userID string, courseID string) (course.Course, error) {
	c, err := course.Fetch(ctx, db, courseID)
	if err != nil {
		return course.Course{}, err
	}

	if c.Status != course.Published || !c.Approved {
		return course.Course{}, course.ErrNotFound
	}

	if c.OwnerID == userID {
		err := errors.New("instructors cannot purchase their own course")
		return course.Course{}, weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
	}

	if c.Price == 0 {
		err := errors.New("free courses are enrolled directly, not checked out")
		return course.Course{}, weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
	}

	enrolled, err := enrollment.IsEnrolled(ctx, db, userID, courseID)
	if err != nil {
		return course.Course{}, fmt.Errorf("checking enrollment: %w", err)
	}
	if enrolled {
		return course.Course{}, weberr.Conflict(enrollment.ErrAlreadyEnrolled, enrollment.ErrAlreadyEnrolled.Error())
	}

	return c, nil
}

// prepare records the pending order and claims the enrollment slot in
// one transaction, so a concurrent wallet purchase or second checkout
// for the same course is turned away while the gateway payment runs.
func prepare(ctx context.Context, db *sqlx.DB, userID, provider, providerID string, c course.Course) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		now := time.Now().UTC()

		if err := wallet.LockUser(ctx, tx, userID); err != nil {
			return err
		}

		if _, err := enrollment.Begin(ctx, tx, userID, c.ID, providerID, now); err != nil {
			return err
		}

		ord := Order{
			ID:         validate.GenerateID(),
			UserID:     userID,
			CourseID:   c.ID,
			Provider:   provider,
			ProviderID: providerID,
			Price:      c.Price,
			Status:     Pending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		return Create(ctx, tx, ord)
	})

	if err != nil {
		switch {
		case errors.Is(err, enrollment.ErrAlreadyEnrolled):
			return weberr.Conflict(err, "already enrolled in this course")
		case errors.Is(err, enrollment.ErrPurchaseInProgress):
			return weberr.Conflict(err, "a purchase for this course is already in progress")
		}
		return fmt.Errorf("creating the order bound to payment[%s] for user[%s]: %w", providerID, userID, err)
	}
	return nil
}

// fulfill completes the enrollment backing the gateway payment. It is
// safe to call more than once for the same payment: replays find the
// order already in success and return without touching anything.
func fulfill(ctx context.Context, db *sqlx.DB, providerID string) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		ord, err := FetchByProviderIDForUpdate(ctx, tx, providerID)
		if err != nil {
			return err
		}

		if ord.Status == Success {
			return nil
		}

		now := time.Now().UTC()
		ord.Status = Success
		ord.UpdatedAt = now
		if err := UpdateStatus(ctx, tx, ord); err != nil {
			return err
		}

		if _, err := enrollment.Complete(ctx, tx, enrollment.ID(ord.UserID, ord.CourseID), now); err != nil {
			// The slot may have been reclaimed by a later attempt
			// that already completed through another payment.
			if errors.Is(err, enrollment.ErrAlreadyEnrolled) {
				return nil
			}
			return err
		}

		c, err := course.FetchForUpdate(ctx, tx, ord.CourseID)
		if err != nil {
			return err
		}
		c.StudentsEnrolled++
		c.UpdatedAt = now
		return course.Update(ctx, tx, c)
	})

	if err != nil {
		return fmt.Errorf("fulfilling the order bound to payment[%s]: %w", providerID, err)
	}
	return nil
}

func HandleListMine(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orders, err := ListByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing orders of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

func HandlePaypalCheckout(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn CheckoutNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding checkout: %w", err))
		}

		if err := validate.CheckID(cn.CourseID); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := checkout(ctx, db, clm.UserID, cn.CourseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		units := []paypal.PurchaseUnitRequest{{
			Items: []paypal.Item{{
				Quantity:    "1",
				Name:        c.Name,
				Description: c.Description,

				UnitAmount: &paypal.Money{
					Currency: "USD",
					Value:    strconv.Itoa(c.Price),
				},
			}},

			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    strconv.Itoa(c.Price),

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
					Currency: "USD",
					Value:    strconv.Itoa(c.Price),
				}},
			},
		}}

		ord, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("creating paypal order: %w", err))
		}

		if err := prepare(ctx, db, clm.UserID, ProviderPaypal, ord.ID, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("capturing paypal order[%s]: %w", providerID, err))
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		if err := fulfill(ctx, db, providerID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleStripeCheckout(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn CheckoutNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding checkout: %w", err))
		}

		if err := validate.CheckID(cn.CourseID); err != nil {
			return weberr.BadRequest(err)
		}

		c, err := checkout(ctx, db, clm.UserID, cn.CourseID)
		if err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		params := &stripe.CheckoutSessionParams{
			SuccessURL: stripe.String(cfg.SuccessURL),
			CancelURL:  stripe.String(cfg.CancelURL),
			Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),

			LineItems: []*stripe.CheckoutSessionLineItemParams{{
				Quantity: stripe.Int64(1),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String("usd"),
					TaxBehavior: stripe.String("inclusive"),
					UnitAmount:  stripe.Int64(int64(c.Price) * 100),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(c.Name),
						Description: stripe.String(c.Description),
					},
				},
			}},
		}

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("creating stripe session: %w", err))
		}

		if err := prepare(ctx, db, clm.UserID, ProviderStripe, s.ID, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func HandleStripeCapture(db *sqlx.DB, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := fulfill(ctx, db, session.ID); err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
