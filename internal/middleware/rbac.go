package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
	"github.com/noah-isme/seatwatch/pkg/response"
)

// RequireRoles lets a request through only when the operator holds one of roles.
func RequireRoles(roles ...models.OperatorRole) gin.HandlerFunc {
	allowed := make(map[models.OperatorRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Operator(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
