package file

import "time"

// IDPrefix is the prefix of the per-course file id sequence
// (file_1, file_2, ...), an independent sequence from videos.
const IDPrefix = "file"

// File is a downloadable course attachment. RelatedVideoID is a weak
// reference used for lookup only: deleting the video leaves it
// dangling, which is tolerated.
type File struct {
	ID             string    `json:"id" db:"file_id"`
	CourseID       string    `json:"courseId" db:"course_id"`
	StorageKey     string    `json:"-" db:"storage_key"`
	OriginalName   string    `json:"originalName" db:"original_name"`
	Size           int64     `json:"size" db:"size"`
	Order          int       `json:"order" db:"order_num"`
	RelatedVideoID *string   `json:"relatedVideoId,omitempty" db:"related_video_id"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

func (f File) ItemID() string { return f.ID }

func (f File) ItemOrder() int { return f.Order }

func (f File) WithOrder(n int) File {
	f.Order = n
	return f
}

type UploadInit struct {
	OriginalName string `json:"originalName" validate:"required"`
}

type FileNew struct {
	StorageKey     string  `json:"storageKey" validate:"required"`
	OriginalName   string  `json:"originalName" validate:"required"`
	Size           int64   `json:"size" validate:"gte=0"`
	RelatedVideoID *string `json:"relatedVideoId"`
}

// UploadComplete registers a batch of uploaded objects as course files.
type UploadComplete struct {
	Files    []FileNew `json:"files" validate:"required,min=1,dive"`
	InsertAt int       `json:"insertAt" validate:"gte=0"`
}

type Move struct {
	Order int `json:"order" validate:"required"`
}
