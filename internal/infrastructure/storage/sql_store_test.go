package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/domain"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/ports"
)

var base = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	st, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seed(t *testing.T, st *SQLStore, policy string, articles ...string) {
	t.Helper()
	ctx := context.Background()
	err := st.SavePolicy(ctx, domain.Policy{
		Name: policy, Active: true, Frequency: domain.FrequencyHourly, CreatedAt: base, UpdatedAt: base,
	})
	if err != nil {
		t.Fatalf("save policy: %v", err)
	}
	for _, id := range articles {
		if err := st.SaveArticle(ctx, domain.Article{ID: id, Status: domain.ArticleDraft}); err != nil {
			t.Fatalf("save article: %v", err)
		}
	}
}

func newItem(id, article, policy string, status domain.ItemStatus, target time.Time, priority int) domain.ScheduledItem {
	return domain.ScheduledItem{
		ID: id, ArticleID: article, PolicyName: policy, Status: status,
		TargetTime: target, Priority: priority, CreatedAt: base, UpdatedAt: base,
	}
}

func TestPolicyRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	in := domain.Policy{
		Name:                  "night",
		Active:                true,
		Frequency:             domain.FrequencyCustom,
		CustomIntervalMinutes: 45,
		Window:                &domain.ForbiddenWindow{Start: domain.TimeOfDay{Hour: 22}, End: domain.TimeOfDay{Hour: 6, Minute: 30}},
		MaxPerDay:             3,
		Priority:              7,
		CreatedAt:             base,
		UpdatedAt:             base,
	}
	if err := st.SavePolicy(ctx, in); err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}

	got, err := st.Policy(ctx, "night")
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if got.Frequency != in.Frequency || got.CustomIntervalMinutes != 45 || got.MaxPerDay != 3 || got.Priority != 7 || !got.Active {
		t.Fatalf("unexpected policy: %+v", got)
	}
	if got.Window == nil || *got.Window != *in.Window {
		t.Fatalf("window = %+v, want %+v", got.Window, in.Window)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %s", got.CreatedAt)
	}

	in.Active = false
	in.Window = nil
	if err := st.SavePolicy(ctx, in); err != nil {
		t.Fatalf("SavePolicy update: %v", err)
	}
	got, _ = st.Policy(ctx, "night")
	if got.Active || got.Window != nil {
		t.Fatalf("update not applied: %+v", got)
	}

	if _, err := st.Policy(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing policy: got %v, want ErrNotFound", err)
	}
}

func TestArticleRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	when := base.Add(time.Hour)
	if err := st.SaveArticle(ctx, domain.Article{ID: "a1", Status: domain.ArticleScheduled, ScheduledPublishTime: &when}); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	got, err := st.Article(ctx, "a1")
	if err != nil {
		t.Fatalf("Article: %v", err)
	}
	if got.Status != domain.ArticleScheduled || got.ScheduledPublishTime == nil || !got.ScheduledPublishTime.Equal(when) {
		t.Fatalf("unexpected article: %+v", got)
	}

	if err := st.SaveArticle(ctx, domain.Article{ID: "a1", Status: domain.ArticleDraft}); err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	got, _ = st.Article(ctx, "a1")
	if got.Status != domain.ArticleDraft || got.ScheduledPublishTime != nil {
		t.Fatalf("reset not applied: %+v", got)
	}

	if _, err := st.Article(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateItemIsConditional(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seed(t, st, "p", "a1")

	item := newItem("i1", "a1", "p", domain.ItemScheduled, base, 0)
	if err := st.InsertItem(ctx, item); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	published := item
	published.Status = domain.ItemPublished
	now := base.Add(time.Minute)
	published.PublishedAt = &now

	ok, err := st.UpdateItem(ctx, published, ports.OpenGuard())
	if err != nil || !ok {
		t.Fatalf("first update: ok=%v err=%v", ok, err)
	}

	ok, err = st.UpdateItem(ctx, published, ports.OpenGuard())
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if ok {
		t.Fatal("second conditional update should not apply to a published item")
	}

	got, err := st.Item(ctx, "i1")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if got.Status != domain.ItemPublished || got.PublishedAt == nil || !got.PublishedAt.Equal(now) {
		t.Fatalf("unexpected item: %+v", got)
	}
}

func TestUpdateItemGuards(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seed(t, st, "p", "a1")

	item := newItem("i1", "a1", "p", domain.ItemScheduled, base.Add(time.Hour), 0)
	if err := st.InsertItem(ctx, item); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	stored, err := st.Item(ctx, "i1")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}

	failed := stored
	failed.Status = domain.ItemFailed
	failed.UpdatedAt = base.Add(2 * time.Hour)

	early := ports.OpenGuard()
	early.DueBy = base
	ok, err := st.UpdateItem(ctx, failed, early)
	if err != nil {
		t.Fatalf("due guard: %v", err)
	}
	if ok {
		t.Fatal("update applied to an item that is not due yet")
	}

	stale := ports.OpenGuard()
	stale.UpdatedAt = stored.UpdatedAt.Add(-time.Minute)
	ok, err = st.UpdateItem(ctx, failed, stale)
	if err != nil {
		t.Fatalf("stale guard: %v", err)
	}
	if ok {
		t.Fatal("update applied against a stale updated_at")
	}

	current := ports.OpenGuard()
	current.DueBy = base.Add(time.Hour)
	current.UpdatedAt = stored.UpdatedAt
	ok, err = st.UpdateItem(ctx, failed, current)
	if err != nil || !ok {
		t.Fatalf("matching guard: ok=%v err=%v", ok, err)
	}
	if got, _ := st.Item(ctx, "i1"); got.Status != domain.ItemFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestOneOpenItemPerArticle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seed(t, st, "p", "a1")

	if err := st.InsertItem(ctx, newItem("i1", "a1", "p", domain.ItemScheduled, base, 0)); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	err := st.InsertItem(ctx, newItem("i2", "a1", "p", domain.ItemQueued, base, 0))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("second open item: got %v, want ErrPersistence", err)
	}

	open, found, err := st.OpenItemForArticle(ctx, "a1")
	if err != nil || !found || open.ID != "i1" {
		t.Fatalf("OpenItemForArticle = %+v, %v, %v", open, found, err)
	}

	// A closed item does not block a new one.
	if err := st.InsertItem(ctx, newItem("i3", "a1", "p", domain.ItemCancelled, base, 0)); err != nil {
		t.Fatalf("closed item insert: %v", err)
	}
}

func TestDueItemsOrdering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seed(t, st, "p", "a1", "a2", "a3", "a4", "a5")
	seed(t, st, "q", "b1")

	items := []domain.ScheduledItem{
		newItem("late", "a1", "p", domain.ItemScheduled, base, 0),
		newItem("low", "a2", "p", domain.ItemScheduled, base.Add(-time.Hour), 1),
		newItem("high", "a3", "p", domain.ItemQueued, base.Add(-time.Hour), 9),
		newItem("future", "a4", "p", domain.ItemScheduled, base.Add(time.Minute), 0),
		newItem("done", "a5", "p", domain.ItemPublished, base.Add(-2*time.Hour), 0),
		newItem("other", "b1", "q", domain.ItemScheduled, base.Add(-3*time.Hour), 0),
	}
	for _, it := range items {
		if err := st.InsertItem(ctx, it); err != nil {
			t.Fatalf("InsertItem %s: %v", it.ID, err)
		}
	}

	due, err := st.DueItems(ctx, base, "")
	if err != nil {
		t.Fatalf("DueItems: %v", err)
	}
	want := []string{"other", "high", "low", "late"}
	if len(due) != len(want) {
		t.Fatalf("got %d due items, want %d", len(due), len(want))
	}
	for i, id := range want {
		if due[i].ID != id {
			t.Errorf("due[%d] = %s, want %s", i, due[i].ID, id)
		}
	}

	due, err = st.DueItems(ctx, base, "q")
	if err != nil {
		t.Fatalf("DueItems filtered: %v", err)
	}
	if len(due) != 1 || due[0].ID != "other" {
		t.Fatalf("policy filter returned %+v", due)
	}
}

func TestCounts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seed(t, st, "p", "a1", "a2", "a3", "a4")

	yesterday := base.Add(-24 * time.Hour)
	today := base.Add(-time.Hour)
	pub := func(id, article string, at time.Time) domain.ScheduledItem {
		it := newItem(id, article, "p", domain.ItemPublished, at, 0)
		it.PublishedAt = &at
		return it
	}
	for _, it := range []domain.ScheduledItem{
		pub("i1", "a1", yesterday),
		pub("i2", "a2", today),
		newItem("i3", "a3", "p", domain.ItemScheduled, base.Add(2*time.Hour), 0),
		newItem("i4", "a4", "p", domain.ItemScheduled, base.Add(time.Hour), 0),
	} {
		if err := st.InsertItem(ctx, it); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}

	dayStart := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	n, err := st.CountPublished(ctx, "p", dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil || n != 1 {
		t.Fatalf("CountPublished = %d, %v; want 1", n, err)
	}

	counts, err := st.CountByStatus(ctx, "")
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[domain.ItemPublished] != 2 || counts[domain.ItemScheduled] != 2 || counts[domain.ItemFailed] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	next, ok, err := st.NextTargetAfter(ctx, "p", base)
	if err != nil || !ok || !next.Equal(base.Add(time.Hour)) {
		t.Fatalf("NextTargetAfter = %s, %v, %v", next, ok, err)
	}
	if _, ok, _ := st.NextTargetAfter(ctx, "p", base.Add(3*time.Hour)); ok {
		t.Fatal("expected no target after the last item")
	}
}

func TestInTxRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.InTx(ctx, func(repo ports.ScheduleRepository) error {
		if err := repo.SaveArticle(ctx, domain.Article{ID: "a1", Status: domain.ArticleDraft}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx = %v, want boom", err)
	}
	if _, err := st.Article(ctx, "a1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("article should not exist after rollback, got %v", err)
	}

	err = st.InTx(ctx, func(repo ports.ScheduleRepository) error {
		return repo.SaveArticle(ctx, domain.Article{ID: "a2", Status: domain.ArticleDraft})
	})
	if err != nil {
		t.Fatalf("InTx commit: %v", err)
	}
	if _, err := st.Article(ctx, "a2"); err != nil {
		t.Fatalf("article should exist after commit: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mysql", DSN: "x"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Config{Driver: "postgres"}, nil); err == nil {
		t.Fatal("expected error for empty postgres dsn")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if st.Driver() != "sqlite" {
		t.Fatalf("driver = %s", st.Driver())
	}
}
