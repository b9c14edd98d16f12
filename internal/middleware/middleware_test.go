package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/logger"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return s.err
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func perform(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var testTokens = tokenStub{
	"student": {UserID: "S", Role: models.RoleStudent},
	"faculty": {UserID: "F", Role: models.RoleFaculty},
	"admin":   {UserID: "A", Role: models.RoleAdmin},
}

func TestJWTMiddleware(t *testing.T) {
	r := newTestEngine()
	r.GET("/me", JWT(testTokens), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/me", "forged").Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token student")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, `Bearer realm="enrollment"`, w.Header().Get("WWW-Authenticate"))

	w = perform(r, http.MethodGet, "/me", "student")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S", w.Body.String())
}

func TestJWTPublishesClaimsOnRequestContext(t *testing.T) {
	r := newTestEngine()
	var fromCtx *models.JWTClaims
	var actor string
	r.GET("/me", JWT(testTokens), func(c *gin.Context) {
		fromCtx = ClaimsFromContext(c.Request.Context())
		actor = c.GetString(logger.ActorKey)
		c.Status(http.StatusNoContent)
	})

	perform(r, http.MethodGet, "/me", "faculty")
	require.NotNil(t, fromCtx)
	assert.Equal(t, models.RoleFaculty, fromCtx.Role)
	assert.Equal(t, "F", actor)
	assert.Nil(t, ClaimsFromContext(context.Background()))
}

func TestPolicyPermits(t *testing.T) {
	policy := Allow(models.RoleAdmin).OrSelf("id")
	params := gin.Params{{Key: "id", Value: "S"}}

	assert.True(t, policy.Permits(&models.JWTClaims{UserID: "A", Role: models.RoleAdmin}, params))
	assert.True(t, policy.Permits(&models.JWTClaims{UserID: "S", Role: models.RoleStudent}, params))
	assert.False(t, policy.Permits(&models.JWTClaims{UserID: "F", Role: models.RoleFaculty}, params))
	assert.False(t, policy.Permits(&models.JWTClaims{UserID: "", Role: models.RoleStudent}, nil))
	assert.False(t, Allow(models.RoleAdmin).Permits(&models.JWTClaims{UserID: "S", Role: models.RoleStudent}, params))
	assert.False(t, policy.Permits(nil, params))
}

func TestRBACAllowsRolesAndSelf(t *testing.T) {
	r := newTestEngine()
	r.GET("/students/:id/schedule", JWT(testTokens), Allow(models.RoleAdmin, models.RoleFaculty).OrSelf("id").Handler(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/reports", JWT(testTokens), Allow(models.RoleAdmin).Handler(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/students/S/schedule", "student").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/students/other/schedule", "student").Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/students/other/schedule", "faculty").Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/reports", "admin").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/reports", "faculty").Code)
}

func TestRBACWithoutClaims(t *testing.T) {
	r := newTestEngine()
	r.GET("/reports", Allow(models.RoleAdmin).Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/reports", "").Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &auditStub{}
	r := newTestEngine()
	r.POST("/enrollments/:id/drop", JWT(testTokens), Audit(recorder, zap.NewNop(), models.AuditActionDrop, "enrollments"), func(c *gin.Context) {
		c.Set(AuditOutcomeKey, string(models.ReasonNotActive))
		c.Status(http.StatusOK)
	})
	r.POST("/enrollments/:id/fail", JWT(testTokens), Audit(recorder, zap.NewNop(), models.AuditActionDrop, "enrollments"), func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	require.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/enrollments/e1/drop", "student").Code)
	require.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/enrollments/e2/fail", "student").Code)

	require.Len(t, recorder.logs, 1)
	entry := recorder.logs[0]
	assert.Equal(t, models.AuditActionDrop, entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "S", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "e1", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), string(models.ReasonNotActive))
}

func TestAuditRecorderFailureDoesNotAffectResponse(t *testing.T) {
	r := newTestEngine()
	r.POST("/enrollments", Audit(&auditStub{err: errors.New("db down")}, nil, models.AuditActionEnroll, "enrollments"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/enrollments", "").Code)
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	r := newTestEngine()
	var meta map[string]interface{}
	r.GET("/courses", WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/courses", "")
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestResponseMetaAbsentWithoutMiddleware(t *testing.T) {
	r := newTestEngine()
	var meta map[string]interface{}
	r.GET("/courses", func(c *gin.Context) {
		SetCacheHit(c, false)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodGet, "/courses", "")
	assert.Nil(t, meta)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
}
