// internal/handlers/notification.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pactwise/pactwise-backend/internal/services"
	"github.com/pactwise/pactwise-backend/internal/utils"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GET /notifications?unread_only=true&type=
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	var req services.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	params := utils.GetPaginationParams(c)

	notifications, total, err := h.notificationService.List(c.Request.Context(), sec.UserID, req, params.Window())
	if err != nil {
		respondError(c, err, "notification")
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(notifications, total, params))
}

// GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(c.Request.Context(), sec.UserID)
	if err != nil {
		respondError(c, err, "notification")
		return
	}
	utils.SuccessResponse(c, gin.H{"unread": count})
}

// PUT /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "notification")
	if !ok {
		return
	}

	notification, err := h.notificationService.MarkRead(c.Request.Context(), sec.UserID, id)
	if err != nil {
		respondError(c, err, "notification")
		return
	}
	utils.SuccessResponse(c, notification)
}

// PUT /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}

	updated, err := h.notificationService.MarkAllRead(c.Request.Context(), sec.UserID)
	if err != nil {
		respondError(c, err, "notification")
		return
	}
	utils.SuccessResponse(c, gin.H{"updated": updated})
}

// DELETE /notifications/:id
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	sec, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "notification")
	if !ok {
		return
	}

	if err := h.notificationService.Dismiss(c.Request.Context(), sec.UserID, id); err != nil {
		respondError(c, err, "notification")
		return
	}
	utils.SuccessResponse(c, gin.H{"dismissed": true})
}
