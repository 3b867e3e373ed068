package domain

import (
	"fmt"
	"time"
)

// ItemStatus enumerates scheduled item lifecycle milestones.
type ItemStatus string

const (
	ItemQueued    ItemStatus = "queued"
	ItemScheduled ItemStatus = "scheduled"
	ItemPublished ItemStatus = "published"
	ItemCancelled ItemStatus = "cancelled"
	ItemFailed    ItemStatus = "failed"
)

// OpenStatuses are the non-terminal statuses.
var OpenStatuses = []ItemStatus{ItemQueued, ItemScheduled}

// Terminal reports whether no further transition is allowed.
func (s ItemStatus) Terminal() bool {
	return s == ItemPublished || s == ItemCancelled || s == ItemFailed
}

// ScheduledItem binds one article to one policy with a target publish time.
type ScheduledItem struct {
	ID            string     `json:"id"`
	ArticleID     string     `json:"article_id"`
	PolicyName    string     `json:"policy"`
	Status        ItemStatus `json:"status"`
	TargetTime    time.Time  `json:"target_time"`
	Priority      int        `json:"priority"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CanPublishNow reports whether publish preconditions hold at now.
func (i ScheduledItem) CanPublishNow(now time.Time) bool {
	return !i.Status.Terminal() && !now.Before(i.TargetTime)
}

// InvalidTransition builds an ErrInvalidState for the item.
func (i ScheduledItem) InvalidTransition(op string) error {
	return fmt.Errorf("%w: cannot %s item %s in status %s", ErrInvalidState, op, i.ID, i.Status)
}

// Action names what a batch run did with one item.
type Action string

const (
	ActionReassigned    Action = "reassigned"
	ActionSkippedWindow Action = "skipped_window"
	ActionSkippedCap    Action = "skipped_cap"
	ActionPublished     Action = "published"
	ActionWouldPublish  Action = "would_publish"
	ActionFailed        Action = "failed"
)

// ItemOutcome records the decision taken for one item, in processing order.
type ItemOutcome struct {
	ItemID    string `json:"item_id"`
	ArticleID string `json:"article_id"`
	Policy    string `json:"policy"`
	Action    Action `json:"action"`
	Error     string `json:"error,omitempty"`
}

// BatchResult aggregates one ProcessDueItems run.
type BatchResult struct {
	Processed  int           `json:"processed"`
	Published  int           `json:"published"`
	Reassigned int           `json:"reassigned"`
	Failed     int           `json:"failed"`
	Errors     []string      `json:"errors"`
	DryRun     bool          `json:"dry_run"`
	Outcomes   []ItemOutcome `json:"outcomes"`
}

// Stats is the read-only queue summary for one policy, or all when Policy is empty.
type Stats struct {
	Policy            string     `json:"policy,omitempty"`
	Total             int        `json:"total"`
	Queued            int        `json:"queued"`
	Scheduled         int        `json:"scheduled"`
	PublishedToday    int        `json:"published_today"`
	Failed            int        `json:"failed"`
	Cancelled         int        `json:"cancelled"`
	MaxPerDay         int        `json:"max_per_day,omitempty"`
	NextPublishTime   *time.Time `json:"next_publish_time,omitempty"`
	DailyLimitReached bool       `json:"daily_limit_reached"`
}
