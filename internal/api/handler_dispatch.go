package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smokewatch-backend/internal/model"
)

type dispatchConfigRequest struct {
	Address string `json:"address" binding:"required"`
	Enabled *bool  `json:"enabled" binding:"required"`
}

// SetDispatchConfig handles POST /device/:uuid/eflara. The config row is
// created lazily on first configuration; flipping enabled to false during an
// alarm's grace window suppresses the escalation.
func (h *Handler) SetDispatchConfig(c *gin.Context) {
	var req dispatchConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dev, err := h.store.DeviceByUUID(c.Request.Context(), userID(c), c.Param("uuid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if dev == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "DEVICE_NOT_FOUND"})
		return
	}

	cfg := &model.DispatchConfig{
		DeviceUUID: dev.UUID,
		Address:    req.Address,
		Enabled:    *req.Enabled,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := h.store.UpsertDispatchConfig(c.Request.Context(), cfg); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
