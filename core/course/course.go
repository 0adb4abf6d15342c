package course

import "time"

type Status string

const (
	Draft     Status = "draft"
	Published Status = "published"
	Archived  Status = "archived"
)

type Course struct {
	ID               string    `json:"id" db:"course_id"`
	OwnerID          string    `json:"ownerId" db:"owner_id"`
	Name             string    `json:"name" db:"name"`
	Description      string    `json:"description" db:"description"`
	ImageURL         string    `json:"imageUrl" db:"image_url"`
	Price            int       `json:"price" db:"price"`
	Status           Status    `json:"status" db:"status"`
	Approved         bool      `json:"isApproved" db:"approved"`
	Rejected         bool      `json:"isRejected" db:"rejected"`
	Deleted          bool      `json:"-" db:"deleted"`
	StudentsEnrolled int       `json:"studentsEnrolled" db:"students_enrolled"`
	Version          int       `json:"-" db:"version"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

type CourseNew struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Price       int    `json:"price" validate:"gte=0,lte=100000"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
}

type CourseUp struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *int    `json:"price" validate:"omitempty,gte=0,lte=100000"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
}

type Decision struct {
	Approved bool `json:"approved"`
}
