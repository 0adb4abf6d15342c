// Package videohost integrates the external video hosting service the
// courses stream from: direct browser uploads, transcode status and
// playback ids, and asset deletion.
package videohost

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/hanifm/coursery/config"
)

const (
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusErrored   = "errored"
)

type Client struct {
	http *resty.Client
}

func New(cfg config.VideoHost) *Client {
	c := resty.New().
		SetBaseURL(cfg.URL).
		SetBasicAuth(cfg.TokenID, cfg.TokenSecret).
		SetTimeout(cfg.Timeout)

	return &Client{http: c}
}

// DirectUpload is a one-time URL the browser uploads the raw video to.
// The asset id becomes available as soon as the upload is created.
type DirectUpload struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	AssetID string `json:"asset_id"`
}

type Asset struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Duration   int    `json:"duration"`
	PlaybackID string `json:"playback_id"`
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) CreateDirectUpload(ctx context.Context, origin string) (DirectUpload, error) {
	var up DirectUpload
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"cors_origin": origin}).
		SetResult(&up).
		SetError(&apiErr).
		Post("/v1/uploads")

	if err != nil {
		return DirectUpload{}, fmt.Errorf("creating direct upload: %w", err)
	}
	if resp.IsError() {
		return DirectUpload{}, fmt.Errorf("creating direct upload: status %d: %s", resp.StatusCode(), apiErr.Message)
	}

	return up, nil
}

// Upload returns the state of a direct upload, including the asset id
// once the raw bytes have landed.
func (c *Client) Upload(ctx context.Context, uploadID string) (DirectUpload, error) {
	var up DirectUpload
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&up).
		SetError(&apiErr).
		Get("/v1/uploads/" + uploadID)

	if err != nil {
		return DirectUpload{}, fmt.Errorf("fetching upload[%s]: %w", uploadID, err)
	}
	if resp.IsError() {
		return DirectUpload{}, fmt.Errorf("fetching upload[%s]: status %d: %s", uploadID, resp.StatusCode(), apiErr.Message)
	}

	return up, nil
}

func (c *Client) Asset(ctx context.Context, assetID string) (Asset, error) {
	var a Asset
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&a).
		SetError(&apiErr).
		Get("/v1/assets/" + assetID)

	if err != nil {
		return Asset{}, fmt.Errorf("fetching asset[%s]: %w", assetID, err)
	}
	if resp.IsError() {
		return Asset{}, fmt.Errorf("fetching asset[%s]: status %d: %s", assetID, resp.StatusCode(), apiErr.Message)
	}

	return a, nil
}

func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&apiErr).
		Delete("/v1/assets/" + assetID)

	if err != nil {
		return fmt.Errorf("deleting asset[%s]: %w", assetID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("deleting asset[%s]: status %d: %s", assetID, resp.StatusCode(), apiErr.Message)
	}

	return nil
}
