package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/export"
)

type rosterCourses map[string]*models.Course

func (c rosterCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := c[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

// pagedLedger answers List one page at a time and records the filters it saw.
type pagedLedger struct {
	rows    []models.EnrollmentDetail
	filters []models.EnrollmentFilter
}

func (l *pagedLedger) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	l.filters = append(l.filters, filter)
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(l.rows) {
		return nil, len(l.rows), nil
	}
	end := start + filter.PageSize
	if end > len(l.rows) {
		end = len(l.rows)
	}
	return l.rows[start:end], len(l.rows), nil
}

func rosterFixture(students int) (*RosterService, *pagedLedger) {
	ledger := &pagedLedger{}
	enrolled := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < students; i++ {
		ledger.rows = append(ledger.rows, models.EnrollmentDetail{
			Enrollment: models.Enrollment{
				ID:         fmt.Sprintf("enr-%d", i),
				StudentID:  fmt.Sprintf("S%03d", i),
				CourseID:   "X",
				Status:     models.EnrollmentStatusActive,
				MarkStatus: models.MarkStatusInProgress,
				EnrolledAt: enrolled,
			},
			StudentName:  fmt.Sprintf("Student %03d", i),
			StudentEmail: fmt.Sprintf("s%03d@uni.test", i),
		})
	}
	courses := rosterCourses{"X": {ID: "X", Code: "CS 101", Name: "Algorithms", Capacity: 250, InstructorID: "prof-1"}}
	svc := NewRosterService(courses, ledger, zap.NewNop())
	svc.now = func() time.Time { return enrolled }
	return svc, ledger
}

func TestRosterServiceInstructorSeesActiveStudents(t *testing.T) {
	svc, ledger := rosterFixture(2)

	roster, err := svc.Roster(context.Background(), "X", &models.JWTClaims{UserID: "prof-1", Role: models.RoleFaculty})
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", roster.CourseName)
	assert.Empty(t, roster.Message)
	require.Len(t, roster.Students, 2)
	assert.Equal(t, "Student 000", roster.Students[0].Name)
	assert.Equal(t, "s000@uni.test", roster.Students[0].Email)
	assert.Equal(t, models.MarkStatusInProgress, roster.Students[0].MarkStatus)

	require.Len(t, ledger.filters, 1)
	assert.Equal(t, "X", ledger.filters[0].CourseID)
	assert.Equal(t, models.EnrollmentStatusActive, ledger.filters[0].Status)
	assert.Empty(t, ledger.filters[0].StudentID)
}

func TestRosterServiceReadsEveryPage(t *testing.T) {
	svc, ledger := rosterFixture(rosterPageSize + 30)

	roster, err := svc.Roster(context.Background(), "X", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, roster.Students, rosterPageSize+30)
	assert.Len(t, ledger.filters, 2)
	assert.Equal(t, 2, ledger.filters[1].Page)
}

func TestRosterServiceAccess(t *testing.T) {
	svc, _ := rosterFixture(1)
	ctx := context.Background()

	_, err := svc.Roster(ctx, "X", &models.JWTClaims{UserID: "prof-2", Role: models.RoleFaculty})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Roster(ctx, "X", &models.JWTClaims{UserID: "S000", Role: models.RoleStudent})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Roster(ctx, "missing", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceEmptyCourse(t *testing.T) {
	svc, _ := rosterFixture(0)
	viewer := &models.JWTClaims{UserID: "prof-1", Role: models.RoleFaculty}

	roster, err := svc.Roster(context.Background(), "X", viewer)
	require.NoError(t, err)
	assert.Empty(t, roster.Students)
	assert.NotNil(t, roster.Students)
	assert.Equal(t, "No students enrolled yet", roster.Message)

	_, err = svc.ExportRoster(context.Background(), "X", viewer, export.FormatCSV)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceExportCSV(t *testing.T) {
	svc, _ := rosterFixture(2)

	file, err := svc.ExportRoster(context.Background(), "X", &models.JWTClaims{UserID: "prof-1", Role: models.RoleFaculty}, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "cs_101-roster-20240902.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	content := string(bytes.TrimPrefix(file.Content, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "student_id,name,email,enrollment_status,mark_status,enrolled_at", lines[0])
	assert.Equal(t, "S000,Student 000,s000@uni.test,Active,In Progress,2024-09-02", lines[1])

	_, err = svc.ExportRoster(context.Background(), "X", nil, export.FormatJSON)
	assert.Equal(t, appErrors.ErrUnsupportedFormat.Code, appErrors.FromError(err).Code)
}
