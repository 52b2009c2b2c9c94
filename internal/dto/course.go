package dto

import "github.com/noah-isme/course-swap-api/internal/models"

// CourseQuery mirrors catalog listing filters.
type CourseQuery struct {
	Filter     string
	Department string
	Semester   string
	Page       int
	PageSize   int
}

// CreateCourseRequest is the admin payload for adding a catalog entry.
type CreateCourseRequest struct {
	Code        string                `json:"code" validate:"required"`
	Name        string                `json:"name" validate:"required"`
	Teacher     string                `json:"teacher" validate:"required"`
	Description string                `json:"description"`
	Location    string                `json:"location"`
	Credits     int                   `json:"credits" validate:"gte=0"`
	Department  string                `json:"department"`
	Semester    string                `json:"semester"`
	Schedule    models.WeeklySchedule `json:"schedule" validate:"required,min=1"`
	Capacity    int                   `json:"capacity" validate:"required,gt=0"`
	Enrolled    int                   `json:"enrolled" validate:"gte=0,ltefield=Capacity"`
	IsSwapable  bool                  `json:"isSwapable"`
}

// CourseItem is a course with its derived seat count.
type CourseItem struct {
	models.Course
	RemainingSeats int `json:"remainingSeats"`
}

// NewCourseItem wraps a course for responses.
func NewCourseItem(course models.Course) CourseItem {
	return CourseItem{Course: course, RemainingSeats: course.RemainingSeats()}
}

// CourseList is a cacheable page of catalog entries.
type CourseList struct {
	Items      []CourseItem       `json:"items"`
	Pagination *models.Pagination `json:"pagination"`
}
