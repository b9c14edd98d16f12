package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/export"
)

const rosterPageSize = 100

var rosterHeaders = []string{"student_id", "name", "email", "enrollment_status", "mark_status", "enrolled_at"}

type rosterLedger interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// RosterService serves class rosters to a course's instructor and to admins.
type RosterService struct {
	courses courseReader
	ledger  rosterLedger
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
	now     func() time.Time
}

// NewRosterService constructs RosterService.
func NewRosterService(courses courseReader, ledger rosterLedger, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		courses: courses,
		ledger:  ledger,
		csv:     export.NewCSVExporter(export.WithExcelBOM()),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Roster returns the Active students of a course ordered by name. Faculty may only read
// the rosters of courses they teach; a nil viewer is left to the route policy.
func (s *RosterService) Roster(ctx context.Context, courseID string, viewer *models.JWTClaims) (*models.ClassRoster, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load course")
	}
	if !canReadRoster(viewer, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor may view this roster")
	}

	rows, err := s.activeEnrollments(ctx, courseID)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load roster")
	}

	roster := &models.ClassRoster{
		CourseID:     course.ID,
		CourseCode:   course.Code,
		CourseName:   course.Name,
		InstructorID: course.InstructorID,
		Capacity:     course.Capacity,
		Students:     make([]models.RosterStudent, 0, len(rows)),
	}
	for _, row := range rows {
		roster.Students = append(roster.Students, models.RosterStudent{
			StudentID:        row.StudentID,
			Name:             row.StudentName,
			Email:            row.StudentEmail,
			EnrollmentID:     row.ID,
			EnrollmentStatus: row.Status,
			MarkStatus:       row.MarkStatus,
			EnrolledAt:       row.EnrolledAt,
		})
	}
	if len(roster.Students) == 0 {
		roster.Message = "No students enrolled yet"
	}
	return roster, nil
}

// ExportRoster renders the roster as CSV or PDF.
func (s *RosterService) ExportRoster(ctx context.Context, courseID string, viewer *models.JWTClaims, format export.Format) (*models.ReportFile, error) {
	if format != export.FormatCSV && format != export.FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported roster format %q", format))
	}
	roster, err := s.Roster(ctx, courseID, viewer)
	if err != nil {
		return nil, err
	}
	if len(roster.Students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no students enrolled yet")
	}

	generatedAt := s.now()
	data := rosterDataset(roster, generatedAt)
	file := &models.ReportFile{
		Filename:    export.Filename(rosterSlug(roster)+"-roster", format, generatedAt),
		ContentType: format.ContentType(),
	}
	if format == export.FormatCSV {
		file.Content, err = s.csv.Render(data)
	} else {
		file.Content, err = s.pdf.Render(data)
	}
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to render roster")
	}
	s.logger.Info("class roster exported",
		zap.String("course_id", roster.CourseID),
		zap.String("format", string(format)),
		zap.Int("students", len(roster.Students)),
	)
	return file, nil
}

func (s *RosterService) activeEnrollments(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	filter := models.EnrollmentFilter{
		CourseID:  courseID,
		Status:    models.EnrollmentStatusActive,
		SortBy:    "student_name",
		SortOrder: "ASC",
		PageSize:  rosterPageSize,
	}
	var all []models.EnrollmentDetail
	for filter.Page = 1; ; filter.Page++ {
		rows, total, err := s.ledger.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) < rosterPageSize || len(all) >= total {
			return all, nil
		}
	}
}

func canReadRoster(viewer *models.JWTClaims, course *models.Course) bool {
	if viewer == nil {
		return true
	}
	switch viewer.Role {
	case models.RoleAdmin:
		return true
	case models.RoleFaculty:
		return viewer.UserID == course.InstructorID
	}
	return false
}

func rosterSlug(roster *models.ClassRoster) string {
	name := roster.CourseCode
	if name == "" {
		name = roster.CourseID
	}
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

func rosterDataset(roster *models.ClassRoster, generatedAt time.Time) export.Dataset {
	data := export.Dataset{
		Title:       roster.CourseName + " Roster",
		Headers:     rosterHeaders,
		GeneratedAt: generatedAt,
	}
	for _, student := range roster.Students {
		data.Rows = append(data.Rows, map[string]string{
			"student_id":        student.StudentID,
			"name":              student.Name,
			"email":             student.Email,
			"enrollment_status": string(student.EnrollmentStatus),
			"mark_status":       string(student.MarkStatus),
			"enrolled_at":       student.EnrolledAt.UTC().Format("2006-01-02"),
		})
	}
	return data
}
