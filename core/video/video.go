package video

import "time"

// IDPrefix is the prefix of the per-course video id sequence
// (video_1, video_2, ...).
const IDPrefix = "video"

type Video struct {
	ID          string    `json:"id" db:"video_id"`
	CourseID    string    `json:"courseId" db:"course_id"`
	Title       string    `json:"title" db:"title"`
	Section     string    `json:"section" db:"section"`
	Order       int       `json:"order" db:"order_num"`
	Duration    int       `json:"duration" db:"duration"`
	Visible     bool      `json:"isVisible" db:"visible"`
	FreePreview bool      `json:"isFreePreview" db:"free_preview"`
	AssetID     string    `json:"-" db:"asset_id"`
	PlaybackID  string    `json:"playbackId,omitempty" db:"playback_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

func (v Video) ItemID() string { return v.ID }

func (v Video) ItemOrder() int { return v.Order }

func (v Video) WithOrder(n int) Video {
	v.Order = n
	return v
}

type VideoNew struct {
	Title       string `json:"title" validate:"required"`
	Section     string `json:"section"`
	AssetID     string `json:"assetId" validate:"required"`
	Duration    int    `json:"duration" validate:"gte=0"`
	FreePreview bool   `json:"isFreePreview"`
}

// UploadComplete is posted by the uploader once the video host reports
// the batch of assets ready. InsertAt of 0 appends after the last video.
type UploadComplete struct {
	Videos   []VideoNew `json:"videos" validate:"required,min=1,dive"`
	InsertAt int        `json:"insertAt" validate:"gte=0"`
}

type VideoUp struct {
	Title       *string `json:"title"`
	Section     *string `json:"section"`
	Duration    *int    `json:"duration" validate:"omitempty,gte=0"`
	Visible     *bool   `json:"isVisible"`
	FreePreview *bool   `json:"isFreePreview"`
}

type Move struct {
	Order int `json:"order" validate:"required"`
}
