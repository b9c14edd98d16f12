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

type rosterService interface {
	Roster(ctx context.Context, courseID string, viewer *models.JWTClaims) (*models.ClassRoster, error)
	ExportRoster(ctx context.Context, courseID string, viewer *models.JWTClaims, format export.Format) (*models.ReportFile, error)
}

// RosterHandler serves class rosters.
type RosterHandler struct {
	rosters rosterService
}

// NewRosterHandler constructs RosterHandler.
func NewRosterHandler(rosters rosterService) *RosterHandler {
	return &RosterHandler{rosters: rosters}
}

// Roster godoc
// @Summary Class roster of Active students
// @Description Faculty may read the rosters of courses they teach; admins may read any.
// @Tags Courses
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/roster [get]
func (h *RosterHandler) Roster(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.WrapAs(appErrors.ErrUnsupportedFormat, err, err.Error()))
		return
	}
	ctx, courseID, viewer := c.Request.Context(), c.Param("id"), claimsFromContext(c)

	if format == export.FormatJSON {
		roster, err := h.rosters.Roster(ctx, courseID, viewer)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, roster, nil)
		return
	}

	file, err := h.rosters.ExportRoster(ctx, courseID, viewer, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Download(c, file.Filename, file.ContentType, file.Content)
}
