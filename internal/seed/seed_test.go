package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
	"github.com/noah-isme/course-swap-api/internal/repository/memory"
)

func TestSeederRunIsIdempotent(t *testing.T) {
	db := memory.New()
	courses := memory.NewCourseRepository(db)
	users := memory.NewUserRepository(db)
	seeder := New(courses, users, nil)
	ctx := context.Background()

	report, err := seeder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Courses()), report.CoursesCreated)
	assert.Equal(t, len(Accounts()), report.UsersCreated)
	assert.Equal(t, 3, report.Enrollments)

	report, err = seeder.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.CoursesCreated)
	assert.Equal(t, len(Courses()), report.CoursesSkipped)
	assert.Equal(t, len(Accounts()), report.UsersSkipped)
	assert.Zero(t, report.Enrollments)

	student, err := users.FindByEmail(ctx, "student@example.com")
	require.NoError(t, err)
	assert.Equal(t, UserID("student@example.com"), student.ID)
	assert.Equal(t, models.RoleStudent, student.Role)
	require.NotNil(t, student.StudentNumber)
	assert.Equal(t, "2024001", *student.StudentNumber)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte("student123")))

	enrolled, err := users.IsEnrolled(ctx, student.ID, CourseID("AP-MATH201"))
	require.NoError(t, err)
	assert.True(t, enrolled)

	math, err := courses.GetByID(ctx, CourseID("AP-MATH201"))
	require.NoError(t, err)
	assert.Equal(t, 25, math.Enrolled)
	assert.Len(t, math.Schedule, 2)
}

func TestCreateAccountRejectsDuplicate(t *testing.T) {
	db := memory.New()
	seeder := New(memory.NewCourseRepository(db), memory.NewUserRepository(db), nil)
	account := Account{Email: "ops@example.com", Password: "s3cret-pass", FullName: "Ops", Role: models.RoleAdmin}

	id, err := seeder.CreateAccount(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, UserID("ops@example.com"), id)

	_, err = seeder.CreateAccount(context.Background(), account)
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestStableIDs(t *testing.T) {
	assert.Equal(t, CourseID("AP-MATH201"), CourseID("AP-MATH201"))
	assert.NotEqual(t, CourseID("AP-MATH201"), CourseID("AP-PHYS101"))
	assert.NotEqual(t, CourseID("x"), UserID("x"))
}
