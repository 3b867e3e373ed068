package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestArticlePublishedSendsPayload(t *testing.T) {
	t.Parallel()

	var (
		auth    string
		payload map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	at := time.Date(2025, time.March, 10, 14, 30, 0, 0, time.FixedZone("MVT", 5*60*60))
	n := NewNotifier(srv.URL, "s3cret", time.Second)
	if err := n.ArticlePublished(context.Background(), "art-1", at); err != nil {
		t.Fatalf("ArticlePublished: %v", err)
	}

	if auth != "Bearer s3cret" {
		t.Fatalf("unexpected auth header: %q", auth)
	}
	if payload["event"] != "article.published" || payload["article_id"] != "art-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["published_at"] != "2025-03-10T09:30:00Z" {
		t.Fatalf("published_at = %v, want the stored publish time in UTC", payload["published_at"])
	}
}

func TestArticlePublishedReportsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cache unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL, "", time.Second).ArticlePublished(context.Background(), "art-1", time.Now())
	if err == nil || !strings.Contains(err.Error(), "cache unavailable") {
		t.Fatalf("expected error with response body, got %v", err)
	}
}

func TestArticlePublishedRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "", 0).ArticlePublished(context.Background(), "a", time.Now()); err == nil {
		t.Fatal("expected error without endpoint")
	}
}
