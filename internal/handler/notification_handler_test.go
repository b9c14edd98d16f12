package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

type notificationServiceMock struct {
	known    map[string]bool
	attached []string
}

func (m *notificationServiceMock) Attach(category string) error {
	if !m.known[category] {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown observer")
	}
	m.attached = append(m.attached, category)
	return nil
}

func (m *notificationServiceMock) Detach(category string) error {
	if !m.known[category] {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown observer")
	}
	kept := m.attached[:0]
	for _, name := range m.attached {
		if name != category {
			kept = append(kept, name)
		}
	}
	m.attached = kept
	return nil
}

func (m *notificationServiceMock) AttachAll() {
	m.attached = []string{"student", "advisor", "admin"}
}

func (m *notificationServiceMock) Observers() []string { return m.attached }

func (m *notificationServiceMock) Statistics() models.NotificationStatistics {
	return models.NotificationStatistics{ObserversCount: len(m.attached), Observers: m.attached, TotalNotifications: 7}
}

func newNotificationMock() *notificationServiceMock {
	return &notificationServiceMock{known: map[string]bool{"student": true, "advisor": true, "admin": true}}
}

func TestNotificationHandlerAttachDetach(t *testing.T) {
	mockSvc := newNotificationMock()
	h := NewNotificationHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/notifications/observers/student/attach", nil)
	c.Params = gin.Params{{Key: "category", Value: "student"}}
	h.Attach(c)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Observers []string `json:"observers"`
	}
	decode(t, w, &body)
	assert.Equal(t, []string{"student"}, body.Observers)

	c, w = newGinContext(http.MethodPost, "/notifications/observers/student/detach", nil)
	c.Params = gin.Params{{Key: "category", Value: "student"}}
	h.Detach(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mockSvc.attached)

	c, w = newGinContext(http.MethodPost, "/notifications/observers/pager/attach", nil)
	c.Params = gin.Params{{Key: "category", Value: "pager"}}
	h.Attach(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandlerAttachAllAndStatistics(t *testing.T) {
	mockSvc := newNotificationMock()
	h := NewNotificationHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/notifications/observers/attach-all", nil)
	h.AttachAll(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/notifications/statistics", nil)
	h.Statistics(c)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.NotificationStatistics
	decode(t, w, &stats)
	assert.Equal(t, 3, stats.ObserversCount)
	assert.Equal(t, 7, stats.TotalNotifications)
}
