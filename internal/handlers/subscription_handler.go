package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/401-Nick/lra-alerts/internal/errors"
	"github.com/401-Nick/lra-alerts/internal/models"
	"github.com/401-Nick/lra-alerts/internal/services"
)

// SubscriptionHandler handles subscription management requests.
type SubscriptionHandler struct {
	service services.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler instance.
func NewSubscriptionHandler(service services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// SubscriptionRequest is the body for creating or deleting a subscription.
type SubscriptionRequest struct {
	UserID string `json:"userId" binding:"required,min=1,max=128"`
	Type   string `json:"type" binding:"required,oneof=zip parcel ward neighborhood"`
	Value  string `json:"value" binding:"required,min=1,max=256"`
}

// Subscribe handles PUT /api/v1/subscriptions.
// Creating the same (user, type, value) triple twice is an idempotent
// overwrite, so PUT rather than POST.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	sub, err := h.service.Subscribe(c.Request.Context(), req.UserID, models.SubscriptionType(req.Type), req.Value)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSubscriptionType) || errors.Is(err, services.ErrInvalidSubscriptionValue) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to store subscription", err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Unsubscribe handles DELETE /api/v1/subscriptions.
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	var req SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	err := h.service.Unsubscribe(c.Request.Context(), req.UserID, models.SubscriptionType(req.Type), req.Value)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSubscriptionType) || errors.Is(err, services.ErrInvalidSubscriptionValue) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to delete subscription", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListResponse wraps a user's subscriptions.
type ListResponse struct {
	Subscriptions []models.Subscription `json:"subscriptions"`
	Count         int                   `json:"count"`
}

// List handles GET /api/v1/users/:userId/subscriptions.
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		apierrors.BadRequest(c, "userId is required", nil)
		return
	}

	subs, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list subscriptions", err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Subscriptions: subs,
		Count:         len(subs),
	})
}
