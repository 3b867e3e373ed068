package ports

import (
	"context"
	"time"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/domain"
)

// ScheduleRepository persists policies, scheduled items and the article fields
// owned by publishing. Missing rows are reported as domain.ErrNotFound.
type ScheduleRepository interface {
	SavePolicy(ctx context.Context, p domain.Policy) error
	Policy(ctx context.Context, name string) (domain.Policy, error)
	Policies(ctx context.Context) ([]domain.Policy, error)

	Article(ctx context.Context, id string) (domain.Article, error)
	SaveArticle(ctx context.Context, a domain.Article) error

	Item(ctx context.Context, id string) (domain.ScheduledItem, error)
	// OpenItemForArticle returns the article's queued or scheduled item, if any.
	OpenItemForArticle(ctx context.Context, articleID string) (domain.ScheduledItem, bool, error)
	InsertItem(ctx context.Context, item domain.ScheduledItem) error
	// UpdateItem writes item only while the stored row satisfies guard.
	// It reports false when another writer got there first.
	UpdateItem(ctx context.Context, item domain.ScheduledItem, guard ItemGuard) (bool, error)
	// DueItems lists open items with target time <= now, earliest first, then by
	// priority descending. An empty policy matches every policy.
	DueItems(ctx context.Context, now time.Time, policy string) ([]domain.ScheduledItem, error)
	CountPublished(ctx context.Context, policy string, from, to time.Time) (int, error)
	CountByStatus(ctx context.Context, policy string) (map[domain.ItemStatus]int, error)
	NextTargetAfter(ctx context.Context, policy string, after time.Time) (time.Time, bool, error)
}

// ItemGuard is the condition the stored item must meet for an update to apply.
// Zero fields are not checked.
type ItemGuard struct {
	From      []domain.ItemStatus
	DueBy     time.Time // stored target_time <= DueBy
	UpdatedAt time.Time // stored updated_at equals UpdatedAt
}

// OpenGuard matches any queued or scheduled item.
func OpenGuard() ItemGuard {
	return ItemGuard{From: domain.OpenStatuses}
}

// Store is a ScheduleRepository with transactions.
type Store interface {
	ScheduleRepository
	// InTx runs fn against a transactional repository; fn's error rolls back.
	InTx(ctx context.Context, fn func(repo ScheduleRepository) error) error
	Close() error
}

// PublishNotifier is told about freshly published articles (cache purge, chat post).
// publishedAt is the time stored on the item.
type PublishNotifier interface {
	ArticlePublished(ctx context.Context, articleID string, publishedAt time.Time) error
}

// Scheduler controls when batch runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
