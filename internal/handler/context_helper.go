package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-api/internal/middleware"
	"github.com/noah-isme/lingua-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return nil
	}
	return claims
}
