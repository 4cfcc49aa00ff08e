package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

type registryFixture struct {
	webhooks   *memoryWebhookRepo
	deliveries *memoryDeliveryRepo
	queue      *recordingQueue
	registry   *RegistryService
	tenantID   uuid.UUID
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	f := &registryFixture{
		webhooks:   newMemoryWebhookRepo(),
		deliveries: newMemoryDeliveryRepo(),
		queue:      &recordingQueue{},
		tenantID:   uuid.New(),
	}
	cfg := testWebhookConfig()
	engine := NewDeliveryService(f.webhooks, f.deliveries, f.queue, NewHTTPSender(cfg), zap.NewNop())
	f.registry = NewRegistryService(f.webhooks, f.deliveries, engine, f.queue, cfg, zap.NewNop())
	return f
}

func (f *registryFixture) register(t *testing.T, req *models.CreateWebhookRequest) *models.Webhook {
	t.Helper()
	webhook, err := f.registry.Register(context.Background(), f.tenantID, req)
	require.NoError(t, err)
	return webhook
}

func createRequest() *models.CreateWebhookRequest {
	return &models.CreateWebhookRequest{
		Name:      "audit sink",
		TargetURL: "https://hooks.example.com/identity",
		Events:    []string{models.EventUserRegistered, models.EventUserDeleted},
	}
}

func TestRegisterGeneratesSecretAndDefaults(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	assert.NotEmpty(t, webhook.Secret)
	assert.True(t, webhook.Active)
	assert.Equal(t, 3, webhook.MaxRetries)
	assert.Equal(t, time.Minute, webhook.RetryDelay)

	other := f.register(t, createRequest())
	assert.NotEqual(t, webhook.Secret, other.Secret)
}

func TestRegisterHonorsSuppliedSecretAndOverrides(t *testing.T) {
	f := newRegistryFixture(t)
	maxRetries := 7
	retryDelay := 30 * time.Second
	req := createRequest()
	req.Secret = "whsec_supplied"
	req.MaxRetries = &maxRetries
	req.RetryDelay = &retryDelay

	webhook := f.register(t, req)
	assert.Equal(t, "whsec_supplied", webhook.Secret)
	assert.Equal(t, 7, webhook.MaxRetries)
	assert.Equal(t, 30*time.Second, webhook.RetryDelay)
}

func TestGetScopedToTenant(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	found, err := f.registry.Get(context.Background(), f.tenantID, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, webhook.ID, found.ID)

	_, err = f.registry.Get(context.Background(), uuid.New(), webhook.ID)
	assert.ErrorIs(t, err, domainErrors.ErrWebhookNotFound)
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	name := "renamed sink"
	active := false
	updated, err := f.registry.Update(context.Background(), f.tenantID, webhook.ID, &models.UpdateWebhookRequest{
		Name:   &name,
		Active: &active,
		Events: []string{models.EventUserLoginSuccess},
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed sink", updated.Name)
	assert.False(t, updated.Active)
	assert.Equal(t, []string{models.EventUserLoginSuccess}, updated.Events)
	// Untouched fields carry over.
	assert.Equal(t, webhook.TargetURL, updated.TargetURL)
	assert.Equal(t, webhook.Secret, updated.Secret)
}

func TestUpdateWrongTenantRejected(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	name := "hijacked"
	_, err := f.registry.Update(context.Background(), uuid.New(), webhook.ID, &models.UpdateWebhookRequest{Name: &name})
	assert.ErrorIs(t, err, domainErrors.ErrWebhookNotFound)

	stored, err := f.webhooks.FindByID(context.Background(), webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, "audit sink", stored.Name)
}

func TestDeleteScopedToTenant(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	err := f.registry.Delete(context.Background(), uuid.New(), webhook.ID)
	assert.ErrorIs(t, err, domainErrors.ErrWebhookNotFound)

	require.NoError(t, f.registry.Delete(context.Background(), f.tenantID, webhook.ID))
	_, err = f.webhooks.FindByID(context.Background(), webhook.ID)
	assert.ErrorIs(t, err, domainErrors.ErrWebhookNotFound)
}

func TestDeleteDropsQueuedRetries(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	_, err := f.registry.TestDelivery(context.Background(), f.tenantID, webhook.ID)
	require.NoError(t, err)
	require.Equal(t, 1, f.queue.size())

	require.NoError(t, f.registry.Delete(context.Background(), f.tenantID, webhook.ID))
	assert.Equal(t, 0, f.queue.size())
}

func TestRegenerateSecretReplacesSecret(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	rotated, err := f.registry.RegenerateSecret(context.Background(), f.tenantID, webhook.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.Secret)
	assert.NotEqual(t, webhook.Secret, rotated.Secret)

	stored, err := f.webhooks.FindByID(context.Background(), webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, rotated.Secret, stored.Secret)
}

func TestTestDeliveryCreatesSyntheticEvent(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	delivery, err := f.registry.TestDelivery(context.Background(), f.tenantID, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventWebhookTest, delivery.EventType)
	assert.Equal(t, models.DeliveryStatusPending, delivery.Status)
	assert.Equal(t, 1, f.queue.size())
}

func TestTestDeliveryOnInactiveWebhookRejected(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())
	active := false
	_, err := f.registry.Update(context.Background(), f.tenantID, webhook.ID, &models.UpdateWebhookRequest{Active: &active})
	require.NoError(t, err)

	_, err = f.registry.TestDelivery(context.Background(), f.tenantID, webhook.ID)
	assert.ErrorIs(t, err, domainErrors.ErrWebhookInactive)
}

func TestDeliveryHistoryScopedThroughWebhook(t *testing.T) {
	f := newRegistryFixture(t)
	webhook := f.register(t, createRequest())

	delivery, err := f.registry.TestDelivery(context.Background(), f.tenantID, webhook.ID)
	require.NoError(t, err)

	rows, err := f.registry.ListDeliveries(context.Background(), f.tenantID, webhook.ID, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, delivery.ID, rows[0].ID)

	_, err = f.registry.ListDeliveries(context.Background(), uuid.New(), webhook.ID, 50)
	assert.ErrorIs(t, err, domainErrors.ErrWebhookNotFound)

	found, err := f.registry.GetDelivery(context.Background(), f.tenantID, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.ID, found.ID)

	_, err = f.registry.GetDelivery(context.Background(), uuid.New(), delivery.ID)
	assert.ErrorIs(t, err, domainErrors.ErrDeliveryNotFound)
}
