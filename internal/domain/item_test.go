package domain

import (
	"errors"
	"testing"
	"time"
)

func TestItemStatusTerminal(t *testing.T) {
	t.Parallel()

	open := map[ItemStatus]bool{ItemQueued: true, ItemScheduled: true}
	for _, st := range []ItemStatus{ItemQueued, ItemScheduled, ItemPublished, ItemCancelled, ItemFailed} {
		if st.Terminal() == open[st] {
			t.Errorf("%s: Terminal() = %v", st, st.Terminal())
		}
	}
}

func TestCanPublishNow(t *testing.T) {
	t.Parallel()

	target := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	item := ScheduledItem{ID: "i1", Status: ItemScheduled, TargetTime: target}

	if item.CanPublishNow(target.Add(-time.Second)) {
		t.Error("item should not be publishable before its target")
	}
	if !item.CanPublishNow(target) {
		t.Error("item should be publishable at its target")
	}

	item.Status = ItemCancelled
	if item.CanPublishNow(target.Add(time.Hour)) {
		t.Error("cancelled item should never be publishable")
	}
	if err := item.InvalidTransition("publish"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("InvalidTransition = %v, want ErrInvalidState", err)
	}
}

func TestArticleSchedulable(t *testing.T) {
	t.Parallel()

	if !(Article{Status: ArticleDraft}).Schedulable() || !(Article{Status: ArticleScheduled}).Schedulable() {
		t.Error("draft and scheduled articles should be schedulable")
	}
	if (Article{Status: ArticlePublished}).Schedulable() {
		t.Error("published article should not be schedulable")
	}
}
