package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/response"
)

// RoleSelf lets a student through when the :id route parameter is their own id.
const RoleSelf = "SELF"

// RBAC enforces role-based access on claims set by JWT.
func RBAC(allowed ...string) gin.HandlerFunc {
	roles := make(map[models.Role]struct{}, len(allowed))
	allowSelf := false
	for _, a := range allowed {
		if a == RoleSelf {
			allowSelf = true
			continue
		}
		roles[models.Role(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && claims.Role == models.RoleStudent {
			if id := c.Param("id"); id != "" && id == claims.Subject {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireAdmin only lets administrator tokens through.
func RequireAdmin() gin.HandlerFunc {
	return RBAC(string(models.RoleAdmin))
}
