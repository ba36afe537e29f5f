package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/service/auth"
)

// PermissionService records notification opt-ins.
type PermissionService interface {
	RequestPermission(ctx context.Context, userID string, req models.NotificationPermission) error
}

// NotificationHandler serves the notification permission endpoint.
type NotificationHandler struct {
	svc    PermissionService
	logger *zap.Logger
}

// NewNotificationHandler constructs the HTTP handler adapter.
func NewNotificationHandler(svc PermissionService, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{svc: svc, logger: logger}
}

// Permission stores the user's answer to the notification prompt.
func (h *NotificationHandler) Permission(c *gin.Context) {
	var req models.NotificationPermission
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user := auth.CurrentUser(c.Request.Context())
	if err := h.svc.RequestPermission(c.Request.Context(), user.ID, req); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": req.Enabled})
}
