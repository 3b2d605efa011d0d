package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hazyhaar/polwatch/policydiff"
	"github.com/hazyhaar/polwatch/workflow"
)

// DiffFunc renders the unified diff behind a comparison of policyName.
type DiffFunc func(ctx context.Context, policyName string) (string, error)

// Webhook POSTs each comparison as JSON to a URL. One request per Apply;
// the workflow runner owns retries.
type Webhook struct {
	name   string
	url    string
	client *http.Client
	diff   DiffFunc
	limit  *rate.Limiter
	logger *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookClient sets the HTTP client. Default: 10s timeout.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookDiff attaches the unified diff to every payload.
func WithWebhookDiff(fn DiffFunc) WebhookOption {
	return func(w *Webhook) { w.diff = fn }
}

// WithWebhookRate caps deliveries at perMinute requests per minute, with no
// burst. perMinute <= 0 leaves the sink unpaced.
func WithWebhookRate(perMinute int) WebhookOption {
	return func(w *Webhook) {
		if perMinute > 0 {
			w.limit = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWebhook creates a Webhook sink named name targeting url.
func NewWebhook(name, url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) Name() string { return w.name }

// Apply POSTs {type:"comparison", data, diff?}, waiting for the rate limit
// first. A non-2xx status is an error.
func (w *Webhook) Apply(ctx context.Context, policyName string, res *policydiff.ComparisonResult) (workflow.Outcome, error) {
	if w.limit != nil {
		if err := w.limit.Wait(ctx); err != nil {
			return workflow.Outcome{}, fmt.Errorf("webhook: rate wait: %w", err)
		}
	}
	env := envelope{Type: "comparison", SessionID: workflow.SessionIDFromContext(ctx), Data: res.Serialize()}
	if w.diff != nil {
		d, err := w.diff(ctx, policyName)
		if err != nil {
			w.logger.Warn("webhook: diff unavailable", "policy", policyName, "error", err)
		}
		env.Diff = d
	}

	body, err := json.Marshal(env)
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("webhook: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return workflow.Outcome{}, fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	w.logger.Debug("webhook: delivered", "sink", w.name, "policy", policyName, "status", resp.StatusCode)
	return ok(), nil
}
