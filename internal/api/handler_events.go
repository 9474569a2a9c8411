package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"smokewatch-backend/internal/alert"
)

// secretHeader carries the shared secret set by the telemetry bridge.
const secretHeader = "X-Internal-Secret"

// IngestEvent handles POST /internal/event from the telemetry bridge. The
// shared secret is checked before any processing; the response acknowledges
// receipt only, never delivery.
func (h *Handler) IngestEvent(c *gin.Context) {
	got := c.GetHeader(secretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.ingestSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "UNAUTHORIZED"})
		return
	}

	var ev alert.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dispatcher.HandleEvent(c.Request.Context(), ev); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
