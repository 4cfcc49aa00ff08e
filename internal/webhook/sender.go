package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/wizarding-anonymous/identity_platform/internal/config"
	"github.com/wizarding-anonymous/identity_platform/internal/domain/models"
	"github.com/wizarding-anonymous/identity_platform/internal/utils/metrics"
)

// Response bodies are truncated before persisting so a misbehaving
// subscriber cannot bloat delivery rows.
const maxResponseBodyBytes = 4096

// Sender POSTs signed envelopes to subscriber endpoints.
type Sender interface {
	Send(ctx context.Context, webhook *models.Webhook, body []byte, signature, eventType, deliveryID string) (status int, responseBody string, err error)
}

type httpSender struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSender builds the production sender with the configured timeout.
func NewHTTPSender(cfg *config.WebhookConfig) Sender {
	return &httpSender{
		client:    &http.Client{Timeout: cfg.HTTPTimeout},
		userAgent: cfg.UserAgent,
	}
}

func (s *httpSender) Send(ctx context.Context, webhook *models.Webhook, body []byte, signature, eventType, deliveryID string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.TargetURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event", eventType)
	req.Header.Set("X-Webhook-Delivery", deliveryID)
	for name, value := range webhook.CustomHeaders {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.WebhookDeliveryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return resp.StatusCode, "", nil
	}
	return resp.StatusCode, string(responseBody), nil
}
