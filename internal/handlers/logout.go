package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"todo-planner/internal/services"
)

type LogoutHandler struct {
	authService services.AuthService
	log         zerolog.Logger
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewLogoutHandler(authService services.AuthService, log zerolog.Logger) *LogoutHandler {
	return &LogoutHandler{authService: authService, log: log}
}

// Logout revokes the refresh token. An unknown or already revoked token
// still logs the caller out.
func (h *LogoutHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), req.RefreshToken); err != nil {
		h.log.Debug().Err(err).Msg("refresh token not revoked")
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully logged out",
	})
}
