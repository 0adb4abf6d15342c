package test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/hanifm/coursery/api/web"
	"github.com/hanifm/coursery/core/course"
	"github.com/hanifm/coursery/videohost"
	"github.com/plutov/paypal/v4"
	mock "github.com/stripe/stripe-mock/param"
)

type mockPaypal struct {
	expectedCourse course.Course
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		web.Respond(context.Background(), w, tok, 200)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units) != 1 || len(pu.Units[0].Items) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if pu.Units[0].Amount.Value != strconv.Itoa(m.expectedCourse.Price) {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if pu.Units[0].Items[0].Name != m.expectedCourse.Name {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		randID := fmt.Sprintf("paypal-%d", rand.Intn(300))
		ord := paypal.Order{ID: randID}
		web.Respond(context.Background(), w, ord, 200)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ord := paypal.Order{Status: "COMPLETED"}
		web.Respond(context.Background(), w, ord, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}

type mockStripe struct {
	expectedCourse course.Course
}

func (m *mockStripe) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)
		lines := params["line_items"].(map[string]any)

		if len(lines) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		for _, li := range lines {
			it := li.(map[string]any)

			if it["quantity"] != "1" {
				web.Respond(context.Background(), w, nil, 400)
				return
			}

			pd := it["price_data"].(map[string]any)
			s := pd["unit_amount"].(string)
			amount, err := strconv.ParseInt(s, 10, 0)
			if err != nil {
				web.Respond(context.Background(), w, err, 400)
				return
			}

			if int(amount/100) != m.expectedCourse.Price {
				web.Respond(context.Background(), w, nil, 400)
				return
			}
		}

		randID := fmt.Sprintf("stripe-%d", rand.Intn(300))
		sess := map[string]any{
			"id":  randID,
			"url": "https://checkout.test/pay/" + randID,
		}
		web.Respond(context.Background(), w, sess, 201)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	return r
}

// mockVideoHost plays the part of the external video host: every
// created upload immediately owns a ready asset with a playback id.
type mockVideoHost struct {
	mu           sync.Mutex
	uploads      map[string]videohost.DirectUpload
	assets       map[string]videohost.Asset
	deleted      []string
	omitDuration bool
}

func newMockVideoHost() *mockVideoHost {
	return &mockVideoHost{
		uploads: make(map[string]videohost.DirectUpload),
		assets:  make(map[string]videohost.Asset),
	}
}

// OmitDurations makes newly created assets report a zero duration, as
// some hosts do until the transcode settles.
func (m *mockVideoHost) OmitDurations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omitDuration = true
}

func (m *mockVideoHost) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func (m *mockVideoHost) handle() http.Handler {
	createUpload := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		n := len(m.uploads) + 1
		up := videohost.DirectUpload{
			ID:      fmt.Sprintf("upload-%d", n),
			URL:     fmt.Sprintf("https://uploads.test/%d", n),
			AssetID: fmt.Sprintf("asset-%d", n),
		}
		m.uploads[up.ID] = up

		duration := 60 * n
		if m.omitDuration {
			duration = 0
		}
		m.assets[up.AssetID] = videohost.Asset{
			ID:         up.AssetID,
			Status:     videohost.StatusReady,
			Duration:   duration,
			PlaybackID: fmt.Sprintf("playback-%d", n),
		}

		web.Respond(context.Background(), w, up, 201)
	})

	showUpload := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		up, ok := m.uploads[mux.Vars(r)["id"]]
		if !ok {
			web.Respond(context.Background(), w, nil, 404)
			return
		}
		web.Respond(context.Background(), w, up, 200)
	})

	showAsset := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		a, ok := m.assets[mux.Vars(r)["id"]]
		if !ok {
			web.Respond(context.Background(), w, nil, 404)
			return
		}
		web.Respond(context.Background(), w, a, 200)
	})

	deleteAsset := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		id := mux.Vars(r)["id"]
		delete(m.assets, id)
		m.deleted = append(m.deleted, id)
		web.Respond(context.Background(), w, nil, 204)
	})

	r := mux.NewRouter()
	r.Handle("/v1/uploads", createUpload).Methods("POST")
	r.Handle("/v1/uploads/{id}", showUpload).Methods("GET")
	r.Handle("/v1/assets/{id}", showAsset).Methods("GET")
	r.Handle("/v1/assets/{id}", deleteAsset).Methods("DELETE")
	return r
}
