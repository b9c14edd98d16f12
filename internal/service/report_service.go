package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/export"
)

var statisticsHeaders = []string{"course_id", "course_name", "capacity", "available_seats", "enrolled_count", "enrollment_percentage"}

// ReportService builds enrollment statistics reports.
type ReportService struct {
	stats   courseStatisticsReader
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportService constructs ReportService.
func NewReportService(stats courseStatisticsReader, enabled bool, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		stats:   stats,
		csv:     export.NewCSVExporter(export.WithTotals("capacity", "available_seats", "enrolled_count")),
		pdf:     export.NewPDFExporter(),
		enabled: enabled,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnrollmentStatistics returns seat usage per course. An empty courseID covers the catalog.
func (s *ReportService) EnrollmentStatistics(ctx context.Context, courseID string) ([]models.CourseEnrollmentStatistics, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "reports are disabled")
	}
	rows, err := s.stats.Statistics(ctx, courseID)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to load enrollment statistics")
	}
	if courseID != "" && len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if rows == nil {
		rows = []models.CourseEnrollmentStatistics{}
	}
	return rows, nil
}

// ExportEnrollmentStatistics renders the statistics in the requested format.
func (s *ReportService) ExportEnrollmentStatistics(ctx context.Context, courseID string, format export.Format) (*models.ReportFile, error) {
	rows, err := s.EnrollmentStatistics(ctx, courseID)
	if err != nil {
		return nil, err
	}
	generatedAt := s.now()
	file := &models.ReportFile{
		Filename:    export.Filename("enrollment-statistics", format, generatedAt),
		ContentType: format.ContentType(),
	}

	switch format {
	case export.FormatJSON:
		file.Content, err = json.Marshal(rows)
	case export.FormatCSV:
		file.Content, err = s.csv.Render(statisticsDataset(rows, generatedAt))
	case export.FormatPDF:
		file.Content, err = s.pdf.Render(statisticsDataset(rows, generatedAt))
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to render report")
	}
	s.logger.Info("enrollment statistics exported", zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return file, nil
}

func statisticsDataset(rows []models.CourseEnrollmentStatistics, generatedAt time.Time) export.Dataset {
	data := export.Dataset{
		Title:   "Enrollment Statistics",
		Headers: statisticsHeaders,
		Numeric: map[string]bool{
			"capacity":              true,
			"available_seats":       true,
			"enrolled_count":        true,
			"enrollment_percentage": true,
		},
		GeneratedAt: generatedAt,
	}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"course_id":             row.CourseID,
			"course_name":           row.CourseName,
			"capacity":              strconv.Itoa(row.Capacity),
			"available_seats":       strconv.Itoa(row.AvailableSeats),
			"enrolled_count":        strconv.Itoa(row.EnrolledCount),
			"enrollment_percentage": strconv.FormatFloat(row.EnrollmentPercentage, 'f', 2, 64),
		})
	}
	return data
}
