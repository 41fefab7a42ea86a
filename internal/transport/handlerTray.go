package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/alarmbridge/internal/notifier"

	"github.com/gin-gonic/gin"
)

type TrayHandler struct {
	tray *notifier.Tray
}

func NewTrayHandler(tray *notifier.Tray) *TrayHandler {
	return &TrayHandler{tray: tray}
}

func (h *TrayHandler) GetNotifications(c *gin.Context) {
	notifications, err := h.tray.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get notifications",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

func (h *TrayHandler) TapNotification(c *gin.Context) {
	slot, err := strconv.ParseInt(c.Param("slot"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be a 32-bit integer"})
		return
	}

	action, err := h.tray.Tap(c.Request.Context(), int32(slot))
	if err != nil {
		if errors.Is(err, notifier.ErrNoNotification) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tap_action": action})
}
