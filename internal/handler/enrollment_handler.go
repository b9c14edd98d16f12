package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-enrollment-api/internal/middleware"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/response"
)

type enrollmentService interface {
	Validate(ctx context.Context, req service.EnrollRequest) (*models.ValidationReport, error)
	Enroll(ctx context.Context, req service.EnrollRequest) (*models.EnrollmentResult, error)
	Drop(ctx context.Context, enrollmentID string) (*models.EnrollmentResult, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	ScheduleSummary(ctx context.Context, studentID string) (*models.ScheduleSummary, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Enroll a student in a course
// @Description Business rule failures are returned with HTTP 200 and status "Error".
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	req, ok := bindEnrollRequest(c)
	if !ok {
		return
	}
	result, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditOutcomeKey, outcome(result))
	response.JSON(c, http.StatusOK, result, nil)
}

// Validate godoc
// @Summary Check enrollment eligibility without committing
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/validate [post]
func (h *EnrollmentHandler) Validate(c *gin.Context) {
	req, ok := bindEnrollRequest(c)
	if !ok {
		return
	}
	report, err := h.enrollments.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	detail, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !canAccessStudent(c, detail.StudentID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Drop godoc
// @Summary Drop an enrollment
// @Description Business rule failures are returned with HTTP 200 and status "Error".
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/drop [post]
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	id := c.Param("id")
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		detail, err := h.enrollments.Get(c.Request.Context(), id)
		switch {
		case err == nil && detail.StudentID != claims.UserID:
			response.Error(c, appErrors.ErrForbidden)
			return
		case err != nil && !appErrors.HasCode(err, appErrors.ErrNotFound):
			response.Error(c, err)
			return
		}
	}

	result, err := h.enrollments.Drop(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.AuditOutcomeKey, outcome(result))
	response.JSON(c, http.StatusOK, result, nil)
}

// StudentEnrollments godoc
// @Summary List a student's enrollments
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param status query string false "Active or Dropped"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/enrollments [get]
func (h *EnrollmentHandler) StudentEnrollments(c *gin.Context) {
	var filter models.EnrollmentFilter
	switch status := c.Query("status"); status {
	case "":
	case string(models.EnrollmentStatusActive), string(models.EnrollmentStatusDropped):
		filter.Status = models.EnrollmentStatus(status)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be Active or Dropped"))
		return
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, pagination, err := h.enrollments.ListByStudent(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Schedule godoc
// @Summary Student timetable with credit totals
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/schedule [get]
func (h *EnrollmentHandler) Schedule(c *gin.Context) {
	summary, err := h.enrollments.ScheduleSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

func bindEnrollRequest(c *gin.Context) (service.EnrollRequest, bool) {
	var req service.EnrollRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return req, false
	}
	if !canAccessStudent(c, req.StudentID) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only enroll themselves"))
		return req, false
	}
	return req, true
}

func outcome(result *models.EnrollmentResult) string {
	if result.OK() {
		return result.Status
	}
	return string(result.Reason)
}
