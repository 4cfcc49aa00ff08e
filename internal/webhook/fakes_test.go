package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
)

type memoryWebhookRepo struct {
	mu       sync.Mutex
	webhooks map[uuid.UUID]*models.Webhook
}

func newMemoryWebhookRepo() *memoryWebhookRepo {
	return &memoryWebhookRepo{webhooks: make(map[uuid.UUID]*models.Webhook)}
}

func (r *memoryWebhookRepo) Create(_ context.Context, webhook *models.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *webhook
	r.webhooks[webhook.ID] = &copied
	return nil
}

func (r *memoryWebhookRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.webhooks[id]
	if !ok {
		return nil, domainErrors.ErrWebhookNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memoryWebhookRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Webhook
	for _, w := range r.webhooks {
		if w.TenantID == tenantID {
			copied := *w
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryWebhookRepo) ListActiveByEvent(_ context.Context, eventType string) ([]*models.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Webhook
	for _, w := range r.webhooks {
		if w.Active && w.SubscribedTo(eventType) {
			copied := *w
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryWebhookRepo) Update(_ context.Context, webhook *models.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.webhooks[webhook.ID]; !ok {
		return domainErrors.ErrWebhookNotFound
	}
	copied := *webhook
	r.webhooks[webhook.ID] = &copied
	return nil
}

func (r *memoryWebhookRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.webhooks[id]; !ok {
		return domainErrors.ErrWebhookNotFound
	}
	delete(r.webhooks, id)
	return nil
}

type memoryDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[uuid.UUID]*models.WebhookDelivery
}

func newMemoryDeliveryRepo() *memoryDeliveryRepo {
	return &memoryDeliveryRepo{deliveries: make(map[uuid.UUID]*models.WebhookDelivery)}
}

func (r *memoryDeliveryRepo) Create(_ context.Context, delivery *models.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *delivery
	r.deliveries[delivery.ID] = &copied
	return nil
}

func (r *memoryDeliveryRepo) FindByID(_ context.Context, id uuid.UUID) (*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.deliveries[id]
	if !ok {
		return nil, domainErrors.ErrDeliveryNotFound
	}
	copied := *stored
	return &copied, nil
}

func (r *memoryDeliveryRepo) ListByWebhook(_ context.Context, webhookID uuid.UUID, _ int) ([]*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WebhookDelivery
	for _, d := range r.deliveries {
		if d.WebhookID == webhookID {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryDeliveryRepo) Update(_ context.Context, delivery *models.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deliveries[delivery.ID]; !ok {
		return domainErrors.ErrDeliveryNotFound
	}
	copied := *delivery
	r.deliveries[delivery.ID] = &copied
	return nil
}

type queuedTask struct {
	TaskID string
	FireAt time.Time
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (q *recordingQueue) Enqueue(_ context.Context, taskID string, fireAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, queuedTask{TaskID: taskID, FireAt: fireAt})
	return nil
}

func (q *recordingQueue) ClaimDue(_ context.Context, now time.Time, _ int64) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []string
	var rest []queuedTask
	for _, task := range q.tasks {
		if !task.FireAt.After(now) {
			due = append(due, task.TaskID)
		} else {
			rest = append(rest, task)
		}
	}
	q.tasks = rest
	return due, nil
}

func (q *recordingQueue) Remove(_ context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var rest []queuedTask
	for _, task := range q.tasks {
		if task.TaskID != taskID {
			rest = append(rest, task)
		}
	}
	q.tasks = rest
	return nil
}

func (q *recordingQueue) last() (queuedTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return queuedTask{}, false
	}
	return q.tasks[len(q.tasks)-1], true
}

func (q *recordingQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
