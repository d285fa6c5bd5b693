package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"peer-review-api/middleware"
	"peer-review-api/services"
)

type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

func (h *NotificationController) GetNotifications(c *gin.Context) {
	uid := c.GetString(middleware.ContextUserID)
	unreadOnly := c.Query("unreadOnly") == "1" || c.Query("unreadOnly") == "true"

	items, err := h.notifications.List(c.Request.Context(), uid, unreadOnly, queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *NotificationController) GetNotificationCounter(c *gin.Context) {
	n, err := h.notifications.CountUnread(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *NotificationController) MarkNotificationRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *NotificationController) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "updated": n})
}
