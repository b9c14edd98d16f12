package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

func TestStudentRepositoryFindRecord(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id AS student_id, year_of_study")).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "year_of_study", "degree_id"}).AddRow("student-1", 3, "bsc-cs"))

	record, err := repo.FindRecord(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, 3, record.YearOfStudy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryActiveScheduleSlots(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN course_schedules cs ON cs.course_id = c.id")).
		WithArgs("student-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "course_name", "day_of_week", "start_time", "end_time"}).
			AddRow("course-1", "Algorithms", "Monday", "09:00", "10:30"))

	slots, err := repo.ActiveScheduleSlots(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "Algorithms", slots[0].CourseName)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryScheduleSummaryWithoutSlots(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN course_schedules cs ON cs.course_id = c.id")).
		WithArgs("student-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "course_name", "credits", "instructor_name", "department_name", "day_of_week", "start_time", "end_time"}).
			AddRow("course-1", "Independent Study", 2, "", "", nil, nil, nil))

	entries, err := repo.ScheduleSummary(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].Day)
	assert.Equal(t, 2, entries[0].Credits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryScheduleSummaryOrdersByWeekday(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)ORDER BY CASE lower\(trim\(cs\.day_of_week\)\)\s+WHEN 'monday' THEN 1 .* WHEN 'friday' THEN 5 .* ELSE 8 END, cs\.start_time`).
		WithArgs("student-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "course_name", "credits", "day_of_week", "start_time", "end_time"}).
			AddRow("course-2", "Databases", 3, "Monday", "09:00", "10:00").
			AddRow("course-1", "Algorithms", 3, "Friday", "09:00", "10:00"))

	entries, err := repo.ScheduleSummary(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Monday", *entries[0].Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryContactAndAdvisorMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users u WHERE u.id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users a ON a.id = s.advisor_id")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	contact, err := repo.FindContact(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, contact)

	advisor, err := repo.FindAdvisor(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, advisor)
	assert.NoError(t, mock.ExpectationsWereMet())
}
