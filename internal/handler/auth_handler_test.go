package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
)

type authServiceMock struct {
	lastLogin models.LoginRequest
	loginResp *models.LoginResponse
	loginErr  error
	me        *models.UserInfo
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.lastLogin = req
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	if m.me == nil || m.me.ID != userID {
		return nil, appErrors.ErrNotFound
	}
	return m.me, nil
}

func TestAuthHandlerLoginCapturesClient(t *testing.T) {
	mockSvc := &authServiceMock{loginResp: &models.LoginResponse{AccessToken: "token", ExpiresIn: 3600}}
	h := NewAuthHandler(mockSvc)

	payload, _ := json.Marshal(map[string]string{"email": "ana@uni.test", "password": "secret123"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)
	c.Request.Header.Set("User-Agent", "enrollment-test")
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@uni.test", mockSvc.lastLogin.Email)
	assert.Equal(t, "enrollment-test", mockSvc.lastLogin.UserAgent)
	var resp models.LoginResponse
	decode(t, w, &resp)
	assert.Equal(t, "token", resp.AccessToken)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})

	payload, _ := json.Marshal(map[string]string{"email": "ana@uni.test", "password": "wrong"})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{me: &models.UserInfo{ID: "S", Email: "ana@uni.test", Role: models.RoleStudent}})

	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	withUser(c, "S", models.RoleStudent)
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	var info models.UserInfo
	decode(t, w, &info)
	assert.Equal(t, models.RoleStudent, info.Role)
}
