package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/rate"
)

// RateLimit throttles requests per client IP using the shared limiter.
// Applied to the auth and purchase endpoints only.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !lim.Check(ip) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, "too many requests", http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
