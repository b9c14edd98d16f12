package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	"github.com/noah-isme/uni-enrollment-api/pkg/response"
)

type notificationService interface {
	Attach(category string) error
	Detach(category string) error
	AttachAll()
	Observers() []string
	Statistics() models.NotificationStatistics
}

// NotificationHandler manages observer attachment and exposes notifier statistics.
type NotificationHandler struct {
	notifier notificationService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifier notificationService) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// Statistics godoc
// @Summary Notification statistics
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/statistics [get]
func (h *NotificationHandler) Statistics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.notifier.Statistics(), nil)
}

// Attach godoc
// @Summary Attach an observer category
// @Tags Notifications
// @Produce json
// @Param category path string true "student, advisor, admin or broadcast"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/observers/{category}/attach [post]
func (h *NotificationHandler) Attach(c *gin.Context) {
	if err := h.notifier.Attach(c.Param("category")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"observers": h.notifier.Observers()}, nil)
}

// Detach godoc
// @Summary Detach an observer category
// @Tags Notifications
// @Produce json
// @Param category path string true "student, advisor, admin or broadcast"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/observers/{category}/detach [post]
func (h *NotificationHandler) Detach(c *gin.Context) {
	if err := h.notifier.Detach(c.Param("category")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"observers": h.notifier.Observers()}, nil)
}

// AttachAll godoc
// @Summary Attach every registered observer
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/observers/attach-all [post]
func (h *NotificationHandler) AttachAll(c *gin.Context) {
	h.notifier.AttachAll()
	response.JSON(c, http.StatusOK, gin.H{"observers": h.notifier.Observers()}, nil)
}
