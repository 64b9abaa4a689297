package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"pagesmith/internal/domain/entity"
	"pagesmith/internal/infrastructure/metrics"
)

// Client posts build reports back to the evaluation server.
type Client struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		client:   &http.Client{Timeout: timeout},
		attempts: 3,
		backoff:  2 * time.Second,
	}
}

// Notify delivers the report, retrying a few times on failure. The
// evaluation server treats re-delivery of the same nonce as idempotent.
func (c *Client) Notify(ctx context.Context, evaluationURL string, report entity.Report) error {
	if evaluationURL == "" {
		return fmt.Errorf("evaluation url is empty")
	}

	jsonData, err := json.Marshal(report)
	if err != nil {
		metrics.IncError("notify", "marshal_report")
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt-1)):
			}
		}

		lastErr = c.post(ctx, evaluationURL, jsonData)
		if lastErr == nil {
			metrics.IncNotifyAttempt("ok")
			return nil
		}
		metrics.IncNotifyAttempt("error")
	}

	metrics.IncError("notify", "delivery_failed")
	return fmt.Errorf("notify evaluation server after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) post(ctx context.Context, evaluationURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", evaluationURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		err := resp.Body.Close()
		if err != nil {
			log.Printf("close body err: %s", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("evaluation server error: %d - %s", resp.StatusCode, string(respBody))
	}
	return nil
}
