package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"levelscope/internal/config"
	"levelscope/internal/resilience"
	"levelscope/pkg/utils"
)

// errPermanent marks webhook failures that a retry cannot fix.
var errPermanent = errors.New("permanent webhook failure")

// WebhookNotifier posts notifications as JSON. After repeated failed sends
// the endpoint is skipped until its circuit breaker cools down.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	retry   utils.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := utils.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.Retryable = func(err error) bool { return !errors.Is(err, errPermanent) }

	return &WebhookNotifier{
		url:     cfg.URL,
		client:  &http.Client{Timeout: timeout},
		retry:   retry,
		breaker: resilience.NewCircuitBreaker("webhook", resilience.DefaultCircuitBreakerConfig()),
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Send posts n, retrying network errors and 5xx responses.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}
	return w.breaker.Execute(func() error {
		return utils.Retry(ctx, w.retry, func() error {
			return w.post(ctx, body)
		})
	})
}

func (w *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "levelscope")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", errPermanent, resp.StatusCode)
	}
}
