package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/retry"
)

// ErrInvalidWebhookURL indicates a webhook target failed validation.
// Validation failures are fatal: they are never retried.
var ErrInvalidWebhookURL = errors.New("invalid webhook URL")

// maxResponseBodyBytes bounds how much of a webhook response is retained
// for the delivery log.
const maxResponseBodyBytes = 4 * 1024

// WebhookPayload is the JSON body POSTed to a webhook target.
type WebhookPayload struct {
	RuleID       uint     `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	EventID      string   `json:"event_id"`
	CameraID     string   `json:"camera_id"`
	Labels       []string `json:"labels"`
	Confidence   float64  `json:"confidence"`
	AnomalyScore *float64 `json:"anomaly_score,omitempty"`
	EventTime    string   `json:"event_time"`
	FiredAt      string   `json:"fired_at"`
}

// Delivery is the structured outcome of one webhook send attempt.
// Success is decided by the HTTP status code, not merely the absence of a
// transport error: a reachable server answering 500 is a failed delivery.
type Delivery struct {
	Success    bool
	StatusCode int
	Body       string
	Latency    time.Duration
	Err        error
}

// WebhookClient validates webhook targets and performs single delivery
// attempts. Retrying is the dispatcher's concern.
type WebhookClient struct {
	httpClient *http.Client
	log        logger.Logger
}

// NewWebhookClient creates a WebhookClient whose attempts time out after
// the given duration.
func NewWebhookClient(timeout time.Duration, log logger.Logger) *WebhookClient {
	return &WebhookClient{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Validate rejects targets that are not plain http/https URLs or that point
// into loopback, private, or link-local address space. Only IP literals and
// well-known local hostnames are checked; no DNS resolution happens here.
func (w *WebhookClient) Validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWebhookURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not http or https", ErrInvalidWebhookURL, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidWebhookURL)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: localhost target %q", ErrInvalidWebhookURL, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
			ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("%w: address %s is not publicly routable", ErrInvalidWebhookURL, ip)
		}
	}
	return nil
}

// Send performs one HTTP POST attempt and returns its structured outcome.
func (w *WebhookClient) Send(ctx context.Context, target string, payload *WebhookPayload, headers map[string]string) Delivery {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return Delivery{Err: fmt.Errorf("failed to marshal webhook payload: %w", err), Latency: time.Since(start)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return Delivery{Err: fmt.Errorf("failed to build webhook request: %w", err), Latency: time.Since(start)}
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return Delivery{Err: fmt.Errorf("webhook request failed: %w", err), Latency: time.Since(start)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))

	d := Delivery{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Latency:    time.Since(start),
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	if !d.Success {
		// A reachable server answering outside 2xx may recover; mark the
		// failure transient so the retry runner attempts it again.
		d.Err = retry.Transient(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
	return d
}
