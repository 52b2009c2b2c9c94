package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-swap-api/internal/models"
)

// Storage sentinels shared by the SQL and in-memory backends. Services map
// them onto typed application errors.
var (
	ErrDuplicatePending  = errors.New("pending swap request already exists for this course pair")
	ErrNotPending        = errors.New("swap request is not pending")
	ErrNotOwner          = errors.New("swap request belongs to another student")
	ErrCapacityExceeded  = errors.New("course capacity exceeded")
	ErrUnderflow         = errors.New("course enrollment below zero")
	ErrNotEnrolled       = errors.New("user not enrolled in course")
	ErrAlreadyEnrolled   = errors.New("user already enrolled in course")
	ErrCourseNotFound    = errors.New("course not found")
	ErrDuplicateCode     = errors.New("course code already exists")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrInvalidTransition = errors.New("invalid swap status transition")
	ErrInvalidDelta      = errors.New("enrollment delta must be +1 or -1")
)

const uniqueViolation = "23505"

// executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// TransitionSwapParams groups the fields written when a request is resolved.
type TransitionSwapParams struct {
	ID         string
	Status     models.SwapStatus
	ResolverID string
	Comment    *string
	ResolvedAt time.Time
}

// SwapWriter is the write set of an approval. Every call made through one
// writer commits or rolls back together.
type SwapWriter interface {
	AdjustEnrollment(ctx context.Context, courseID string, delta int) error
	SwapEnrollment(ctx context.Context, userID, fromCourseID, toCourseID string) error
	TransitionSwapRequest(ctx context.Context, params TransitionSwapParams) (*models.SwapRequest, error)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func statementBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func pageBounds(page, pageSize int) (uint64, uint64) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return uint64(pageSize), uint64((page - 1) * pageSize)
}
