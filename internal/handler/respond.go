package handler

import (
	"errors"
	"net/http"

	"habitloop/internal/model"

	"github.com/gin-gonic/gin"
)

// respondError maps sentinel errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// ownerID is set by the auth middleware from the token's sub claim.
func ownerID(c *gin.Context) string {
	return c.GetString("owner_id")
}
