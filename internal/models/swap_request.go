package models

import (
	"fmt"
	"strings"
	"time"
)

// SwapStatus captures the lifecycle state of a swap request.
type SwapStatus string

const (
	SwapStatusPending  SwapStatus = "PENDING"
	SwapStatusApproved SwapStatus = "APPROVED"
	SwapStatusRejected SwapStatus = "REJECTED"
)

// swapTransitions lists the states reachable from each state. Terminal
// states have no entry.
var swapTransitions = map[SwapStatus][]SwapStatus{
	SwapStatusPending: {SwapStatusApproved, SwapStatusRejected},
}

// ParseSwapStatus validates a status received from clients or storage.
func ParseSwapStatus(raw string) (SwapStatus, error) {
	status := SwapStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case SwapStatusPending, SwapStatusApproved, SwapStatusRejected:
		return status, nil
	}
	return "", fmt.Errorf("unknown swap status %q", raw)
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s SwapStatus) CanTransitionTo(next SwapStatus) bool {
	for _, allowed := range swapTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s SwapStatus) IsTerminal() bool {
	return len(swapTransitions[s]) == 0
}

// SwapDecision is the administrator's verdict on a pending request.
type SwapDecision string

const (
	SwapDecisionApprove SwapDecision = "APPROVE"
	SwapDecisionReject  SwapDecision = "REJECT"
)

// ParseSwapDecision validates a decision received from clients.
func ParseSwapDecision(raw string) (SwapDecision, error) {
	decision := SwapDecision(strings.ToUpper(strings.TrimSpace(raw)))
	switch decision {
	case SwapDecisionApprove, SwapDecisionReject:
		return decision, nil
	}
	return "", fmt.Errorf("unknown swap decision %q", raw)
}

// TargetStatus maps a decision onto the terminal status it produces.
func (d SwapDecision) TargetStatus() SwapStatus {
	if d == SwapDecisionApprove {
		return SwapStatusApproved
	}
	return SwapStatusRejected
}

// SwapRequest is a student's request to exchange an enrolled course for another.
type SwapRequest struct {
	ID               string     `db:"id" json:"id"`
	StudentID        string     `db:"student_id" json:"studentId"`
	StudentName      string     `db:"student_name" json:"studentName"`
	OriginalCourseID string     `db:"original_course_id" json:"originalCourseId"`
	TargetCourseID   string     `db:"target_course_id" json:"targetCourseId"`
	Reason           string     `db:"reason" json:"reason"`
	Status           SwapStatus `db:"status" json:"status"`
	AdminComment     *string    `db:"admin_comment" json:"adminComment,omitempty"`
	ResolverID       *string    `db:"resolver_id" json:"resolverId,omitempty"`
	ResolvedAt       *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

// SwapRequestFilter constrains listing queries. Page is 1-indexed.
type SwapRequestFilter struct {
	Status    *SwapStatus
	StudentID string
	Page      int
	PageSize  int
}
