package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/ports"
)

// Notifier asks the content service to drop cached pages for a published article.
type Notifier struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

var _ ports.PublishNotifier = (*Notifier)(nil)

// NewNotifier builds a client posting to endpoint. timeout <= 0 means 10s.
func NewNotifier(endpoint, token string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		endpoint:   endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ArticlePublished posts {"event":"article.published","article_id":...,"published_at":...}.
func (n *Notifier) ArticlePublished(ctx context.Context, articleID string, publishedAt time.Time) error {
	if n == nil || n.endpoint == "" {
		return fmt.Errorf("webhook notifier misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"event":        "article.published",
		"article_id":   articleID,
		"published_at": publishedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}
