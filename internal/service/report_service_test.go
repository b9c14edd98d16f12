package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/export"
)

func newTestReportService(stats courseStatisticsReader, enabled bool) *ReportService {
	svc := NewReportService(stats, enabled, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC) }
	return svc
}

func sampleStatistics() stubStatistics {
	return stubStatistics{rows: []models.CourseEnrollmentStatistics{
		{CourseID: "X", CourseName: "Algorithms", Capacity: 30, AvailableSeats: 5, EnrolledCount: 25, EnrollmentPercentage: 83.33},
		{CourseID: "Y", CourseName: "Databases", Capacity: 20, AvailableSeats: 20, EnrolledCount: 0, EnrollmentPercentage: 0},
	}}
}

func TestReportServiceDisabled(t *testing.T) {
	svc := newTestReportService(sampleStatistics(), false)

	_, err := svc.EnrollmentStatistics(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrServiceDisabled.Code, appErrors.FromError(err).Code)
}

func TestReportServiceUnknownCourse(t *testing.T) {
	svc := newTestReportService(stubStatistics{}, true)

	_, err := svc.EnrollmentStatistics(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	rows, err := svc.EnrollmentStatistics(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestReportServiceStoreFailure(t *testing.T) {
	svc := newTestReportService(stubStatistics{err: errors.New("timeout")}, true)

	_, err := svc.EnrollmentStatistics(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestReportServiceExportFormats(t *testing.T) {
	svc := newTestReportService(sampleStatistics(), true)
	ctx := context.Background()

	file, err := svc.ExportEnrollmentStatistics(ctx, "", export.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "enrollment-statistics-20240902.json", file.Filename)
	var decoded []models.CourseEnrollmentStatistics
	require.NoError(t, json.Unmarshal(file.Content, &decoded))
	assert.Len(t, decoded, 2)

	file, err = svc.ExportEnrollmentStatistics(ctx, "", export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	lines := bytes.Split(bytes.TrimSpace(file.Content), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Equal(t, "course_id,course_name,capacity,available_seats,enrolled_count,enrollment_percentage", string(lines[0]))
	assert.Equal(t, "X,Algorithms,30,5,25,83.33", string(lines[1]))
	assert.Equal(t, "TOTAL,,50,25,25,", string(lines[3]))

	file, err = svc.ExportEnrollmentStatistics(ctx, "", export.FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))

	_, err = svc.ExportEnrollmentStatistics(ctx, "", export.Format("xlsx"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnsupportedFormat))
}
