package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-grading-api/internal/models"
	appErrors "github.com/noah-isme/institute-grading-api/pkg/errors"
	"github.com/noah-isme/institute-grading-api/pkg/response"
)

// SelfAccess lets a student through when the route's :id is their own ID.
const SelfAccess = "SELF"

// RBAC admits the listed roles. With SelfAccess, any caller may also reach a
// student-scoped route whose :id matches their user ID. Denials are attached
// to the gin context so the request log records the role and route.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	roles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == SelfAccess {
			allowSelf = true
			continue
		}
		roles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}

		target := c.Param("id")
		if allowSelf && target != "" && target == claims.UserID {
			c.Next()
			return
		}

		denied := appErrors.ErrForbidden
		if allowSelf && target != "" {
			denied = appErrors.Clone(appErrors.ErrForbidden, "students may only access their own grades")
		}
		_ = c.Error(fmt.Errorf("role %s denied on %s %s", claims.Role, c.Request.Method, c.FullPath()))
		response.Error(c, denied)
		c.Abort()
	}
}

// RequireRoles admits only the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
