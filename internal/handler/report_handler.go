package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/export"
	"github.com/noah-isme/uni-enrollment-api/pkg/response"
)

type reportService interface {
	EnrollmentStatistics(ctx context.Context, courseID string) ([]models.CourseEnrollmentStatistics, error)
	ExportEnrollmentStatistics(ctx context.Context, courseID string, format export.Format) (*models.ReportFile, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// EnrollmentStatistics godoc
// @Summary Enrollment statistics per course
// @Description JSON is wrapped in the response envelope; csv and pdf are returned as downloads.
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param course_id query string false "Restrict to one course"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /reports/enrollment-statistics [get]
func (h *ReportHandler) EnrollmentStatistics(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.WrapAs(appErrors.ErrUnsupportedFormat, err, err.Error()))
		return
	}
	courseID := c.Query("course_id")

	if format == export.FormatJSON {
		stats, err := h.reports.EnrollmentStatistics(c.Request.Context(), courseID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, stats, nil)
		return
	}

	file, err := h.reports.ExportEnrollmentStatistics(c.Request.Context(), courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Download(c, file.Filename, file.ContentType, file.Content)
}
