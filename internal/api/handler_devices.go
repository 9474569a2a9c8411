package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smokewatch-backend/internal/vendorapi"
)

type registerDeviceRequest struct {
	DeviceName string `json:"deviceName" binding:"required"`
	ProductID  string `json:"productID" binding:"required"`
}

type registerDeviceResponse struct {
	UUID      string    `json:"uuid"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterDevice handles POST /register_device.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dev, err := h.reconciler.Register(c.Request.Context(), userID(c), req.ProductID, req.DeviceName)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, registerDeviceResponse{
		UUID:      dev.UUID,
		Name:      dev.DisplayName,
		CreatedAt: dev.CreatedAt,
	})
}

// UnregisterDevice handles POST /unregister_device.
func (h *Handler) UnregisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.reconciler.Unregister(c.Request.Context(), userID(c), req.ProductID, req.DeviceName); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "detail": "Device unregistered successfully"})
}

type unregisterByUUIDRequest struct {
	DeviceUUID string `json:"deviceUUID" binding:"required"`
}

// UnregisterDeviceByUUID handles POST /unregister_device_by_uuid.
func (h *Handler) UnregisterDeviceByUUID(c *gin.Context) {
	var req unregisterByUUIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.reconciler.UnregisterByUUID(c.Request.Context(), userID(c), req.DeviceUUID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "detail": "Device unregistered successfully"})
}

type listItem struct {
	CreatedAt    time.Time `json:"created_at"`
	InternalUUID string    `json:"internal_uuid"`
	ProductID    string    `json:"product_id"`
	Name         string    `json:"name"`
}

// ListDevices handles GET /list with optional limit/offset query params.
func (h *Handler) ListDevices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	devices, err := h.store.ListDevices(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	items := make([]listItem, 0, len(devices))
	for _, d := range devices {
		items = append(items, listItem{
			CreatedAt:    d.CreatedAt,
			InternalUUID: d.UUID,
			ProductID:    d.VendorProductID,
			Name:         d.DisplayName,
		})
	}
	c.JSON(http.StatusOK, items)
}

type renameDeviceRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameDevice handles POST /device/:uuid/rename.
func (h *Handler) RenameDevice(c *gin.Context) {
	var req renameDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.store.RenameDevice(c.Request.Context(), userID(c), c.Param("uuid"), req.Name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "DEVICE_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "detail": "Device renamed successfully"})
}

type eFlaraInfo struct {
	Address string `json:"address"`
	Enabled bool   `json:"enabled"`
}

type deviceInfoResponse struct {
	State  string      `json:"state"`
	Name   string      `json:"name,omitempty"`
	EFlara *eFlaraInfo `json:"eFlara,omitempty"`
}

// DeviceInfo handles GET /device/:uuid/info. State comes from the vendor's
// detail endpoint; the dispatch config is included when one exists.
func (h *Handler) DeviceInfo(c *gin.Context) {
	uid := userID(c)
	dev, err := h.store.DeviceByUUID(c.Request.Context(), uid, c.Param("uuid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if dev == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "DEVICE_NOT_FOUND"})
		return
	}

	detail, err := h.vendor.Detail(c.Request.Context(), uid, dev.VendorDeviceID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	resp := deviceInfoResponse{State: detail.State, Name: dev.DisplayName}
	cfg, err := h.store.DispatchConfigForDevice(c.Request.Context(), dev.UUID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if cfg != nil {
		resp.EFlara = &eFlaraInfo{Address: cfg.Address, Enabled: cfg.Enabled}
	}
	c.JSON(http.StatusOK, resp)
}

type deviceLogsResponse struct {
	Events     []vendorapi.LogEntry `json:"events"`
	Properties []vendorapi.LogEntry `json:"properties"`
}

// DeviceLogs handles GET /device/:uuid/logs.
func (h *Handler) DeviceLogs(c *gin.Context) {
	uid := userID(c)
	dev, err := h.store.DeviceByUUID(c.Request.Context(), uid, c.Param("uuid"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if dev == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "DEVICE_NOT_FOUND"})
		return
	}

	events, err := h.vendor.Events(c.Request.Context(), uid, dev.VendorDeviceID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	properties, err := h.vendor.Properties(c.Request.Context(), uid, dev.VendorDeviceID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if events == nil {
		events = []vendorapi.LogEntry{}
	}
	if properties == nil {
		properties = []vendorapi.LogEntry{}
	}
	c.JSON(http.StatusOK, deviceLogsResponse{Events: events, Properties: properties})
}
