package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/uni-enrollment-api/pkg/errors"
	"github.com/noah-isme/uni-enrollment-api/pkg/response"
)

// Policy is a route access rule: a set of roles, optionally widened to callers whose
// user id equals a path parameter.
type Policy struct {
	roles     map[models.UserRole]bool
	selfParam string
}

// Allow builds a policy admitting the given roles.
func Allow(roles ...models.UserRole) *Policy {
	p := &Policy{roles: make(map[models.UserRole]bool, len(roles))}
	for _, r := range roles {
		p.roles[r] = true
	}
	return p
}

// OrSelf also admits any caller whose user id equals the named path parameter.
func (p *Policy) OrSelf(param string) *Policy {
	p.selfParam = param
	return p
}

// Permits reports whether claims satisfy the policy for the given path parameters.
func (p *Policy) Permits(claims *models.JWTClaims, params gin.Params) bool {
	if claims == nil {
		return false
	}
	if p.roles[claims.Role] {
		return true
	}
	if p.selfParam == "" {
		return false
	}
	target, ok := params.Get(p.selfParam)
	return ok && target != "" && target == claims.UserID
}

// Handler enforces the policy: 401 without claims, 403 when they do not qualify.
func (p *Policy) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		switch {
		case claims == nil:
			response.Error(c, appErrors.ErrUnauthorized)
		case !p.Permits(claims, c.Params):
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not access this resource"))
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}
