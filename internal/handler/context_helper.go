package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/orphanbars/orphanbars-api/internal/middleware"
	"github.com/orphanbars/orphanbars-api/internal/models"
)

// claimsFromContext returns the authenticated caller's claims, or nil on
// anonymous requests and routes without the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, _ := c.Value(middleware.ContextUserKey).(*models.JWTClaims)
	return claims
}
