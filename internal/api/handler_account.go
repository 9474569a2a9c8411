package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type notificationTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// RegisterNotificationToken handles POST /user/notification. Registering the
// same token twice is a no-op.
func (h *Handler) RegisterNotificationToken(c *gin.Context) {
	var req notificationTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SaveNotificationToken(c.Request.Context(), userID(c), req.Token); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAccount handles DELETE /account/delete. Every owned device is
// unregistered (vendor first) before the user's tokens are removed.
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.reconciler.PurgeAccount(c.Request.Context(), userID(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "detail": "Account data deleted"})
}
