package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-api/internal/models"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/response"
)

// AdminChecker decides whether a token belongs to staff.
type AdminChecker interface {
	IsAdmin(claims *models.JWTClaims) bool
}

// RequireAdmin lets only allowlisted staff through. Mount after JWT.
func RequireAdmin(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !checker.IsAdmin(claims) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
