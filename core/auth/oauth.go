package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/api/weberr"
	"github.com/hanifm/coursery/core/claims"
	"github.com/hanifm/coursery/core/user"
	"github.com/hanifm/coursery/random"
	"github.com/hanifm/coursery/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

const sessionOauthState = "oauthState"

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

type Provider struct {
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// MakeProviders discovers the OIDC endpoints of the configured
// providers. Discovery happens once at startup; a provider that cannot
// be discovered fails the boot.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))

	for _, cfg := range cfgs {
		if cfg.Client == "" {
			continue
		}

		p, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider[%s]: %w", cfg.Name, err)
		}

		provs[cfg.Name] = Provider{
			config: oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				RedirectURL:  cfg.RedirectURL,
				Endpoint:     p.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			verifier: p.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}

	return provs, nil
}

func HandleOauthLogin(session *scs.SessionManager, providers map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := providers[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state := random.String(32)
		session.Put(ctx, sessionOauthState, state)

		http.Redirect(w, r, prov.config.AuthCodeURL(state), http.StatusTemporaryRedirect)
		return nil
	}
}

func HandleOauthCallback(db *sqlx.DB, session *scs.SessionManager, providers map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := providers[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state := session.PopString(ctx, sessionOauthState)
		if state == "" || state != r.URL.Query().Get("state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		tok, err := prov.config.Exchange(ctx, r.URL.Query().Get("code"))
		if err != nil {
			return weberr.BadGateway(fmt.Errorf("exchanging oauth code: %w", err))
		}

		rawID, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.BadGateway(errors.New("oauth token response is missing the id token"))
		}

		idTok, err := prov.verifier.Verify(ctx, rawID)
		if err != nil {
			return weberr.NotAuthorized(fmt.Errorf("verifying id token: %w", err))
		}

		var profile struct {
			Email    string `json:"email"`
			Verified bool   `json:"email_verified"`
			Name     string `json:"name"`
		}
		if err := idTok.Claims(&profile); err != nil {
			return fmt.Errorf("decoding id token claims: %w", err)
		}

		if !profile.Verified {
			return weberr.NotAuthorized(errors.New("oauth email is not verified"))
		}

		u, err := user.FetchByEmail(ctx, db, profile.Email)
		if errors.Is(err, user.ErrNotFound) {
			now := time.Now().UTC()
			u = user.User{
				ID:        validate.GenerateID(),
				Name:      profile.Name,
				Email:     profile.Email,
				Role:      claims.RoleStudent,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := user.Create(ctx, db, u); err != nil {
				return fmt.Errorf("creating oauth user: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("fetching user by email: %w", err)
		}

		if err := login(ctx, session, u.ID, u.Role); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}

		http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
		return nil
	}
}
