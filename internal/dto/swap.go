package dto

import "github.com/noah-isme/course-swap-api/internal/models"

// SubmitSwapRequest is the student's swap request payload.
type SubmitSwapRequest struct {
	OriginalCourseID string `json:"originalCourseId" validate:"required"`
	TargetCourseID   string `json:"targetCourseId" validate:"required,nefield=OriginalCourseID"`
	Reason           string `json:"reason"`
}

// ResolveSwapRequest carries the administrator's decision for one request.
type ResolveSwapRequest struct {
	Decision models.SwapDecision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Comment  string              `json:"comment"`
}

// BatchResolveSwapRequest applies one decision and comment to many requests.
type BatchResolveSwapRequest struct {
	IDs      []string            `json:"ids" validate:"required,min=1,dive,required"`
	Decision models.SwapDecision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Comment  string              `json:"comment"`
}

// SwapRequestQuery mirrors supported listing filters.
type SwapRequestQuery struct {
	Status    string
	StudentID string
	Page      int
	PageSize  int
}

// SwapSubmission is returned after a successful submit. The schedule
// conflict report is advisory.
type SwapSubmission struct {
	Request              *models.SwapRequest `json:"request"`
	ScheduleConflict     bool                `json:"scheduleConflict"`
	ConflictingCourseIDs []string            `json:"conflictingCourseIds,omitempty"`
}

// SwapRequestDetail expands a request with its courses for review.
type SwapRequestDetail struct {
	Request              *models.SwapRequest `json:"request"`
	OriginalCourse       *CourseItem         `json:"originalCourse,omitempty"`
	TargetCourse         *CourseItem         `json:"targetCourse,omitempty"`
	ScheduleConflict     bool                `json:"scheduleConflict"`
	ConflictingCourseIDs []string            `json:"conflictingCourseIds,omitempty"`
}

// BatchResolveResult reports the outcome of a batch resolution.
type BatchResolveResult struct {
	Transitioned int                `json:"transitioned"`
	Skipped      int                `json:"skipped"`
	Failed       int                `json:"failed"`
	Failures     []BatchItemFailure `json:"failures,omitempty"`
}

// BatchItemFailure describes why one id in a batch could not be resolved.
type BatchItemFailure struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}
