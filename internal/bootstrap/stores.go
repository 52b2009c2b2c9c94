// Package bootstrap builds the storage backends, services and router from config.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
	"github.com/noah-isme/course-swap-api/internal/repository/memory"
	"github.com/noah-isme/course-swap-api/internal/seed"
	"github.com/noah-isme/course-swap-api/pkg/config"
	"github.com/noah-isme/course-swap-api/pkg/database"
)

// CourseStore is the course registry as both backends implement it.
type CourseStore interface {
	GetByID(ctx context.Context, id string) (*models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
}

// UserStore is the user registry plus the audit sink.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	ListEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error)
	Enroll(ctx context.Context, userID, courseID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SwapRequestStore persists swap requests.
type SwapRequestStore interface {
	Create(ctx context.Context, request *models.SwapRequest) error
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
	List(ctx context.Context, filter models.SwapRequestFilter) ([]models.SwapRequest, int, error)
	Transition(ctx context.Context, params repository.TransitionSwapParams) (*models.SwapRequest, error)
	Cancel(ctx context.Context, id, studentID string) error
}

// UnitOfWork scopes an approval's writes.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, w repository.SwapWriter) error) error
}

// Stores groups one backend's repositories. DB is nil for the memory driver.
type Stores struct {
	Driver     string
	DB         *sqlx.DB
	Courses    CourseStore
	Users      UserStore
	Requests   SwapRequestStore
	UnitOfWork UnitOfWork
}

// Ping reports backend health; the memory driver is always ready.
func (s *Stores) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.PingContext(ctx)
}

// Close releases the database pool when there is one.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStores connects the configured backend, applying migrations and demo
// data when enabled.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stores *Stores
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		stores = NewMemoryStores()
	default:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Storage.AutoMigrate {
			applied, err := database.Migrate(ctx, db, logger)
			if err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations complete", zap.Int("applied", applied))
		}
		stores = NewPostgresStores(db)
	}

	if cfg.Storage.SeedDemo || stores.Driver == config.StorageDriverMemory {
		report, err := seed.New(stores.Courses, stores.Users, logger).Run(ctx)
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		logger.Info("demo data seeded",
			zap.Int("courses_created", report.CoursesCreated),
			zap.Int("users_created", report.UsersCreated),
			zap.Int("enrollments", report.Enrollments),
		)
	}
	return stores, nil
}

// NewPostgresStores wires the SQL repositories over db.
func NewPostgresStores(db *sqlx.DB) *Stores {
	return &Stores{
		Driver:     config.StorageDriverPostgres,
		DB:         db,
		Courses:    repository.NewCourseRepository(db),
		Users:      repository.NewUserRepository(db),
		Requests:   repository.NewSwapRequestRepository(db),
		UnitOfWork: repository.NewUnitOfWork(db),
	}
}

// NewMemoryStores wires a fresh process-local backend.
func NewMemoryStores() *Stores {
	db := memory.New()
	return &Stores{
		Driver:     config.StorageDriverMemory,
		Courses:    memory.NewCourseRepository(db),
		Users:      memory.NewUserRepository(db),
		Requests:   memory.NewSwapRequestRepository(db),
		UnitOfWork: memory.NewUnitOfWork(db),
	}
}
