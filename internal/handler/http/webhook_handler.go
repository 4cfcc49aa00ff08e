package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/handler/http/middleware"
	"github.com/wizarding-anonymous/identity_platform/internal/webhook"
)

// WebhookHandler exposes webhook subscription management over HTTP. Every
// route is tenant-scoped through the access token.
type WebhookHandler struct {
	registry *webhook.RegistryService
	logger   *zap.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(registry *webhook.RegistryService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{registry: registry, logger: logger}
}

// Create handles POST /webhooks. The signing secret appears in this
// response and never again.
func (h *WebhookHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	created, err := h.registry.Register(c.Request.Context(), claims.TenantID, &req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusCreated, gin.H{
		"webhook": created,
		"secret":  created.Secret,
	})
}

// List handles GET /webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	webhooks, err := h.registry.List(c.Request.Context(), claims.TenantID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"webhooks": webhooks})
}

// Get handles GET /webhooks/:id.
func (h *WebhookHandler) Get(c *gin.Context) {
	claims, webhookID, ok := h.scope(c)
	if !ok {
		return
	}

	found, err := h.registry.Get(c.Request.Context(), claims.TenantID, webhookID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, found)
}

// Update handles PATCH /webhooks/:id.
func (h *WebhookHandler) Update(c *gin.Context) {
	claims, webhookID, ok := h.scope(c)
	if !ok {
		return
	}

	var req models.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidation("", err.Error()))
		return
	}

	updated, err := h.registry.Update(c.Request.Context(), claims.TenantID, webhookID, &req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, updated)
}

// Delete handles DELETE /webhooks/:id.
func (h *WebhookHandler) Delete(c *gin.Context) {
	claims, webhookID, ok := h.scope(c)
	if !ok {
		return
	}

	if err := h.registry.Delete(c.Request.Context(), claims.TenantID, webhookID); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithNoContent(c)
}

// RegenerateSecret handles POST /webhooks/:id/secret.
func (h *WebhookHandler) RegenerateSecret(c *gin.Context) {
	claims, webhookID, ok := h.scope(c)
	if !ok {
		return
	}

	updated, err := h.registry.RegenerateSecret(c.Request.Context(), claims.TenantID, webhookID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"secret": updated.Secret})
}

// Test handles POST /webhooks/:id/test.
func (h *WebhookHandler) Test(c *gin.Context) {
	claims, webhookID, ok := h.scope(c)
	if !ok {
		return
	}

	delivery, err := h.registry.TestDelivery(c.Request.Context(), claims.TenantID, webhookID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusAccepted, delivery)
}

// ListDeliveries handles GET /webhooks/:id/deliveries.
func (h *WebhookHandler) ListDeliveries(c *gin.Context) {
	claims, webhookID, ok := h.scope(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondWithError(c, domainErrors.NewValidation("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	deliveries, err := h.registry.ListDeliveries(c.Request.Context(), claims.TenantID, webhookID, limit)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"deliveries": deliveries})
}

// GetDelivery handles GET /deliveries/:id.
func (h *WebhookHandler) GetDelivery(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return
	}

	deliveryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondWithError(c, domainErrors.NewValidation("id", "must be a valid uuid"))
		return
	}

	delivery, err := h.registry.GetDelivery(c.Request.Context(), claims.TenantID, deliveryID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondWithData(c, http.StatusOK, delivery)
}

func (h *WebhookHandler) scope(c *gin.Context) (*models.Claims, uuid.UUID, bool) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized)
		return nil, uuid.Nil, false
	}
	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondWithError(c, domainErrors.NewValidation("id", "must be a valid uuid"))
		return nil, uuid.Nil, false
	}
	return claims, webhookID, true
}
