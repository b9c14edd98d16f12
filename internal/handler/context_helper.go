package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-enrollment-api/internal/middleware"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// canAccessStudent reports whether the caller may act on the given student's records.
// Only students are restricted; unauthenticated contexts are left to the route middleware.
func canAccessStudent(c *gin.Context, studentID string) bool {
	claims := claimsFromContext(c)
	return claims == nil || claims.ActsFor(studentID)
}

// bindJSON decodes the body into dst and answers 400 with field details on failure.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.WrapAs(appErrors.ErrValidation, err, message))
		return false
	}
	return true
}
