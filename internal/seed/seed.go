// Package seed loads the demo catalog and accounts used in development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
	"github.com/noah-isme/course-swap-api/internal/service"
)

// CourseStore persists catalog entries.
type CourseStore interface {
	Create(ctx context.Context, course *models.Course) error
}

// UserStore persists accounts and their enrolled courses.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	Enroll(ctx context.Context, userID, courseID string) error
}

// Account is a demo login.
type Account struct {
	Email         string
	Password      string
	FullName      string
	Role          models.UserRole
	StudentNumber string
	Department    string
	Courses       []string
}

// Report counts what a run inserted; existing rows are skipped.
type Report struct {
	CoursesCreated int
	CoursesSkipped int
	UsersCreated   int
	UsersSkipped   int
	Enrollments    int
}

var namespace = uuid.MustParse("8f4b3c1e-5d2a-4f6b-9c7e-1a2b3c4d5e6f")

// CourseID returns the stable id assigned to a seeded course code.
func CourseID(code string) string {
	return uuid.NewSHA1(namespace, []byte("course:"+code)).String()
}

// UserID returns the stable id assigned to a seeded email.
func UserID(email string) string {
	return uuid.NewSHA1(namespace, []byte("user:"+email)).String()
}

func block(day time.Weekday, startH, startM, endH, endM int) models.ScheduleBlock {
	return models.ScheduleBlock{DayOfWeek: day, StartMinute: startH*60 + startM, EndMinute: endH*60 + endM}
}

// Courses is the demo catalog.
func Courses() []models.Course {
	const semester = "2023-2024-2"
	return []models.Course{
		{
			Code:        "AP-MATH201",
			Name:        "AP Calculus BC",
			Teacher:     "Mr. Smith",
			Credits:     4,
			Description: "Limits, derivatives, integrals and series at the Calculus BC level.",
			Location:    "Math Building 101",
			Department:  "Mathematics",
			Semester:    semester,
			Schedule:    models.WeeklySchedule{block(time.Monday, 8, 0, 9, 40), block(time.Wednesday, 8, 0, 9, 40)},
			Capacity:    30,
			Enrolled:    25,
			IsSwapable:  true,
		},
		{
			Code:        "AP-PHYS101",
			Name:        "AP Physics C: Mechanics",
			Teacher:     "Ms. Johnson",
			Credits:     4,
			Description: "Calculus-based mechanics with weekly labs.",
			Location:    "Science Building 202",
			Department:  "Physics",
			Semester:    semester,
			Schedule:    models.WeeklySchedule{block(time.Tuesday, 10, 0, 11, 40), block(time.Thursday, 10, 0, 11, 40)},
			Capacity:    35,
			Enrolled:    30,
			IsSwapable:  true,
		},
		{
			Code:        "AP-CHEM110",
			Name:        "AP Chemistry",
			Teacher:     "Dr. Lee",
			Credits:     4,
			Description: "Atomic structure, bonding, kinetics and equilibrium.",
			Location:    "Science Building 105",
			Department:  "Chemistry",
			Semester:    semester,
			Schedule:    models.WeeklySchedule{block(time.Tuesday, 10, 30, 12, 10), block(time.Friday, 13, 0, 14, 40)},
			Capacity:    28,
			Enrolled:    20,
			IsSwapable:  true,
		},
		{
			Code:        "HON-LIT120",
			Name:        "Honors World Literature",
			Teacher:     "Mrs. Garcia",
			Credits:     3,
			Description: "Close reading of novels and drama in translation.",
			Location:    "Humanities 12",
			Department:  "English",
			Semester:    semester,
			Schedule:    models.WeeklySchedule{block(time.Monday, 13, 0, 14, 30)},
			Capacity:    20,
			Enrolled:    20,
			IsSwapable:  true,
		},
		{
			Code:        "AP-CS210",
			Name:        "AP Computer Science A",
			Teacher:     "Mr. Patel",
			Credits:     3,
			Description: "Object-oriented programming in Java.",
			Location:    "Lab 3",
			Department:  "Computer Science",
			Semester:    semester,
			Schedule:    models.WeeklySchedule{block(time.Wednesday, 14, 0, 15, 40)},
			Capacity:    24,
			Enrolled:    18,
			IsSwapable:  false,
		},
	}
}

// Accounts returns the demo logins.
func Accounts() []Account {
	return []Account{
		{Email: "admin@example.com", Password: "admin123", FullName: "System Admin", Role: models.RoleAdmin},
		{
			Email:         "student@example.com",
			Password:      "student123",
			FullName:      "Test Student",
			Role:          models.RoleStudent,
			StudentNumber: "2024001",
			Department:    "Mathematics",
			Courses:       []string{"AP-MATH201", "AP-CHEM110"},
		},
		{
			Email:         "student2@example.com",
			Password:      "student123",
			FullName:      "Second Student",
			Role:          models.RoleStudent,
			StudentNumber: "2024002",
			Department:    "Physics",
			Courses:       []string{"AP-PHYS101"},
		},
	}
}

// Seeder inserts the demo data set.
type Seeder struct {
	courses CourseStore
	users   UserStore
	logger  *zap.Logger
}

// New constructs a Seeder.
func New(courses CourseStore, users UserStore, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{courses: courses, users: users, logger: logger}
}

// Run inserts Courses and Accounts, skipping codes and emails already present.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	for _, course := range Courses() {
		course := course
		course.ID = CourseID(course.Code)
		err := s.courses.Create(ctx, &course)
		switch {
		case errors.Is(err, repository.ErrDuplicateCode):
			report.CoursesSkipped++
			s.logger.Info("course already seeded", zap.String("code", course.Code))
		case err != nil:
			return report, fmt.Errorf("seed course %s: %w", course.Code, err)
		default:
			report.CoursesCreated++
		}
	}

	for _, account := range Accounts() {
		userID, created, err := s.createAccount(ctx, account)
		if err != nil {
			return report, err
		}
		if !created {
			report.UsersSkipped++
			s.logger.Info("user already seeded", zap.String("email", account.Email))
			continue
		}
		report.UsersCreated++
		for _, code := range account.Courses {
			if err := s.users.Enroll(ctx, userID, CourseID(code)); err != nil {
				return report, fmt.Errorf("enroll %s in %s: %w", account.Email, code, err)
			}
			report.Enrollments++
		}
	}
	return report, nil
}

// CreateAccount hashes the password and stores a single account.
func (s *Seeder) CreateAccount(ctx context.Context, account Account) (string, error) {
	id, created, err := s.createAccount(ctx, account)
	if err != nil {
		return "", err
	}
	if !created {
		return "", repository.ErrDuplicateEmail
	}
	return id, nil
}

func (s *Seeder) createAccount(ctx context.Context, account Account) (string, bool, error) {
	hash, err := service.HashPassword(account.Password)
	if err != nil {
		return "", false, fmt.Errorf("hash password for %s: %w", account.Email, err)
	}
	user := &models.User{
		ID:           UserID(account.Email),
		Email:        account.Email,
		PasswordHash: hash,
		FullName:     account.FullName,
		Role:         account.Role,
		Active:       true,
	}
	if account.StudentNumber != "" {
		number := account.StudentNumber
		user.StudentNumber = &number
	}
	if account.Department != "" {
		dept := account.Department
		user.Department = &dept
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return user.ID, false, nil
		}
		return "", false, fmt.Errorf("seed user %s: %w", account.Email, err)
	}
	return user.ID, true, nil
}
