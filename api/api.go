package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/hanifm/coursery/api/background"
	"github.com/hanifm/coursery/api/middleware"
	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/config"
	"github.com/hanifm/coursery/core/auth"
	"github.com/hanifm/coursery/core/course"
	"github.com/hanifm/coursery/core/enrollment"
	"github.com/hanifm/coursery/core/file"
	"github.com/hanifm/coursery/core/order"
	"github.com/hanifm/coursery/core/token"
	"github.com/hanifm/coursery/core/topup"
	"github.com/hanifm/coursery/core/user"
	"github.com/hanifm/coursery/core/video"
	"github.com/hanifm/coursery/core/wallet"
	"github.com/hanifm/coursery/rate"
	"github.com/hanifm/coursery/storage"
	"github.com/hanifm/coursery/videohost"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin         string
	Log                logrus.FieldLogger
	DB                 *sqlx.DB
	Session            *scs.SessionManager
	Mailer             token.Mailer
	TokenTimeout       time.Duration
	Background         *background.Background
	Paypal             *paypal.Client
	Stripe             *stripecl.API
	StripeCfg          config.Stripe
	Storage            *storage.Store
	VideoHost          *videohost.Client
	Limiter            *rate.Limiter
	Providers          map[string]auth.Provider
	LoginRedirectURL   string
	ActivationRequired bool
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	instructor := auth.Instructor(cfg.Session)
	limited := middleware.RateLimit(cfg.Limiter)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session, cfg.ActivationRequired), limited)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodPost, "/tokens", token.HandleToken(cfg.DB, cfg.Mailer, cfg.TokenTimeout, cfg.Background), limited)
	a.Handle(http.MethodPost, "/tokens/activate", token.HandleActivation(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/tokens/recover", token.HandleRecovery(cfg.DB))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/dashboard", user.HandleDashboard(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/{id}", user.HandleShow(cfg.DB), authen)

	a.Handle(http.MethodGet, "/courses/owned", course.HandleListOwned(cfg.DB), instructor)
	a.Handle(http.MethodGet, "/courses/review", course.HandleListPendingReview(cfg.DB), admin)
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(cfg.DB), instructor)
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(cfg.DB), instructor)
	a.Handle(http.MethodDelete, "/courses/{id}", course.HandleDelete(cfg.DB), instructor)
	a.Handle(http.MethodPost, "/courses/{id}/submit", course.HandleSubmit(cfg.DB), instructor)
	a.Handle(http.MethodPost, "/courses/{id}/review", course.HandleReview(cfg.DB), admin)
	a.Handle(http.MethodPost, "/courses/{id}/restore", course.HandleRestore(cfg.DB), admin)
	a.Handle(http.MethodDelete, "/courses/{id}/purge", course.HandlePurge(cfg.DB), admin)

	a.Handle(http.MethodPost, "/courses/{course_id}/videos/upload", video.HandleUploadInit(cfg.DB, cfg.VideoHost, cfg.CorsOrigin), instructor)
	a.Handle(http.MethodGet, "/courses/{course_id}/videos/upload/{asset_id}", video.HandleUploadStatus(cfg.DB, cfg.VideoHost), instructor)
	a.Handle(http.MethodPost, "/courses/{course_id}/videos", video.HandleUploadComplete(cfg.DB, cfg.VideoHost), instructor)
	a.Handle(http.MethodGet, "/courses/{course_id}/videos", video.HandleListByCourse(cfg.DB))
	a.Handle(http.MethodGet, "/courses/{course_id}/videos/{id}", video.HandleShow(cfg.DB))
	a.Handle(http.MethodPut, "/courses/{course_id}/videos/{id}/move", video.HandleMove(cfg.DB), instructor)
	a.Handle(http.MethodPut, "/courses/{course_id}/videos/{id}", video.HandleUpdate(cfg.DB), instructor)
	a.Handle(http.MethodDelete, "/courses/{course_id}/videos/{id}", video.HandleDelete(cfg.DB, cfg.VideoHost, cfg.Background), instructor)

	a.Handle(http.MethodPost, "/courses/{course_id}/files/upload", file.HandleUploadInit(cfg.DB, cfg.Storage), instructor)
	a.Handle(http.MethodPost, "/courses/{course_id}/files", file.HandleUploadComplete(cfg.DB), instructor)
	a.Handle(http.MethodGet, "/courses/{course_id}/files", file.HandleListByCourse(cfg.DB))
	a.Handle(http.MethodGet, "/courses/{course_id}/files/{id}/download", file.HandleDownload(cfg.DB, cfg.Storage), authen)
	a.Handle(http.MethodPut, "/courses/{course_id}/files/{id}/move", file.HandleMove(cfg.DB), instructor)
	a.Handle(http.MethodDelete, "/courses/{course_id}/files/{id}", file.HandleDelete(cfg.DB, cfg.Storage, cfg.Background), instructor)

	a.Handle(http.MethodGet, "/enrollments", enrollment.HandleListMine(cfg.DB), authen)

	a.Handle(http.MethodGet, "/wallet", wallet.HandleBalance(cfg.DB), authen)
	a.Handle(http.MethodGet, "/wallet/history", wallet.HandleHistory(cfg.DB), authen)
	a.Handle(http.MethodPost, "/wallet/purchase", wallet.HandlePurchase(cfg.DB), authen, limited)

	a.Handle(http.MethodPost, "/topups", topup.HandleCreate(cfg.DB), authen)
	a.Handle(http.MethodGet, "/topups", topup.HandleListMine(cfg.DB), authen)
	a.Handle(http.MethodGet, "/topups/pending", topup.HandleListPending(cfg.DB), admin)
	a.Handle(http.MethodPost, "/topups/{id}/approve", topup.HandleApprove(cfg.DB), admin)
	a.Handle(http.MethodPost, "/topups/{id}/reject", topup.HandleReject(cfg.DB), admin)

	a.Handle(http.MethodGet, "/orders", order.HandleListMine(cfg.DB), authen)
	a.Handle(http.MethodPost, "/orders/paypal", order.HandlePaypalCheckout(cfg.DB, cfg.Paypal), authen, limited)
	a.Handle(http.MethodPost, "/orders/paypal/{id}/capture", order.HandlePaypalCapture(cfg.DB, cfg.Paypal), authen)
	a.Handle(http.MethodPost, "/orders/stripe", order.HandleStripeCheckout(cfg.DB, cfg.Stripe, cfg.StripeCfg), authen, limited)
	a.Handle(http.MethodPost, "/orders/stripe/capture", order.HandleStripeCapture(cfg.DB, cfg.StripeCfg))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
