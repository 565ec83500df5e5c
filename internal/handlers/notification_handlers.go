package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/piggybanx/auction-service/internal/models"
	"github.com/piggybanx/auction-service/internal/repository"
	"github.com/piggybanx/auction-service/internal/utils"
)

// NotificationHandler serves the in-app notification endpoints.
type NotificationHandler struct {
	Notifications repository.NotificationRepository
	Logger        *log.Logger
	Timeout       time.Duration
}

func NewNotificationHandler(notifications repository.NotificationRepository, logger *log.Logger, timeout time.Duration) *NotificationHandler {
	return &NotificationHandler{
		Notifications: notifications,
		Logger:        logger,
		Timeout:       timeout,
	}
}

// GetUserNotifications handles GET /api/notifications.
func (h *NotificationHandler) GetUserNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	notifications, err := h.Notifications.ListUserNotifications(ctx, userID, 50)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	utils.SendJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead handles POST /api/notifications/{notificationId}/read.
func (h *NotificationHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		utils.SendErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	updated, err := h.Notifications.MarkRead(ctx, r.PathValue("notificationId"), userID)
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	if !updated {
		utils.SendErrorResponse(w, http.StatusNotFound, "Notification not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
