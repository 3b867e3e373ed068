package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/clock"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/domain"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/ports"
)

const defaultNotifyTimeout = 5 * time.Second

// EngineDeps wires driven adapters into the scheduling engine.
type EngineDeps struct {
	Store         ports.Store
	Clock         clock.Clock
	Notifier      ports.PublishNotifier
	Logger        *slog.Logger
	NotifyTimeout time.Duration
	NewID         func() string
}

// Engine decides when queued articles become visible.
// It keeps no item state between calls; every operation re-reads the store.
type Engine struct {
	store         ports.Store
	clock         clock.Clock
	notifier      ports.PublishNotifier
	logger        *slog.Logger
	notifyTimeout time.Duration
	newID         func() string
}

// NewEngine constructs the engine. Store is required.
func NewEngine(deps EngineDeps) *Engine {
	e := &Engine{
		store:         deps.Store,
		clock:         deps.Clock,
		notifier:      deps.Notifier,
		logger:        deps.Logger,
		notifyTimeout: deps.NotifyTimeout,
		newID:         deps.NewID,
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.notifyTimeout <= 0 {
		e.notifyTimeout = defaultNotifyTimeout
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// ScheduleRequest describes an operator request to queue an article.
type ScheduleRequest struct {
	ArticleID string
	// Policy names the policy to use; empty selects the default policy.
	Policy string
	// At overrides the computed target time.
	At *time.Time
	// Priority overrides the policy priority for this item.
	Priority *int
}

// ProcessOptions narrows or simulates a batch run.
type ProcessOptions struct {
	DryRun bool
	Policy string
}

// SavePolicy validates and stores a policy. Invalid policies never reach the store.
func (e *Engine) SavePolicy(ctx context.Context, p domain.Policy) (domain.Policy, error) {
	if err := p.Validate(); err != nil {
		return domain.Policy{}, err
	}

	now := e.clock.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := e.store.SavePolicy(ctx, p); err != nil {
		return domain.Policy{}, fmt.Errorf("save policy %s: %w", p.Name, err)
	}
	return e.store.Policy(ctx, p.Name)
}

// Policies lists every stored policy.
func (e *Engine) Policies(ctx context.Context) ([]domain.Policy, error) {
	return e.store.Policies(ctx)
}

// DefaultPolicy returns the highest-priority active policy.
func (e *Engine) DefaultPolicy(ctx context.Context) (domain.Policy, error) {
	return defaultPolicy(ctx, e.store)
}

// Item returns a scheduled item by id.
func (e *Engine) Item(ctx context.Context, id string) (domain.ScheduledItem, error) {
	return e.store.Item(ctx, id)
}

// Article returns the publishing view of an article.
func (e *Engine) Article(ctx context.Context, id string) (domain.Article, error) {
	return e.store.Article(ctx, id)
}

// RegisterArticle records a draft article so it can be scheduled.
// An article that is already known is returned unchanged.
func (e *Engine) RegisterArticle(ctx context.Context, id string) (domain.Article, error) {
	if id == "" {
		return domain.Article{}, fmt.Errorf("%w: empty article id", domain.ErrInvalidState)
	}

	var out domain.Article
	err := e.store.InTx(ctx, func(repo ports.ScheduleRepository) error {
		existing, err := repo.Article(ctx, id)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out = domain.Article{ID: id, Status: domain.ArticleDraft}
		return repo.SaveArticle(ctx, out)
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("register article %s: %w", id, err)
	}
	return out, nil
}

func defaultPolicy(ctx context.Context, repo ports.ScheduleRepository) (domain.Policy, error) {
	policies, err := repo.Policies(ctx)
	if err != nil {
		return domain.Policy{}, fmt.Errorf("load policies: %w", err)
	}
	p, ok := domain.SelectDefault(policies)
	if !ok {
		return domain.Policy{}, domain.ErrNoActivePolicy
	}
	return p, nil
}

func (e *Engine) resolvePolicy(ctx context.Context, repo ports.ScheduleRepository, name string) (domain.Policy, error) {
	if name == "" {
		return defaultPolicy(ctx, repo)
	}

	p, err := repo.Policy(ctx, name)
	if err != nil {
		return domain.Policy{}, err
	}
	if p.Active {
		return p, nil
	}

	def, err := defaultPolicy(ctx, repo)
	if err != nil {
		return domain.Policy{}, err
	}
	e.logger.Warn("requested policy inactive, using default", "requested", name, "default", def.Name)
	return def, nil
}

// Schedule queues an article, updating its open item in place when one exists.
func (e *Engine) Schedule(ctx context.Context, req ScheduleRequest) (domain.ScheduledItem, error) {
	var out domain.ScheduledItem

	err := e.store.InTx(ctx, func(repo ports.ScheduleRepository) error {
		article, err := repo.Article(ctx, req.ArticleID)
		if err != nil {
			return err
		}
		if !article.Schedulable() {
			return fmt.Errorf("%w: article %s is %s", domain.ErrInvalidState, article.ID, article.Status)
		}

		policy, err := e.resolvePolicy(ctx, repo, req.Policy)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		target := policy.NextPublishTime(now)
		if req.At != nil {
			target = *req.At
		}
		priority := policy.Priority
		if req.Priority != nil {
			priority = *req.Priority
		}

		item, found, err := repo.OpenItemForArticle(ctx, article.ID)
		if err != nil {
			return err
		}

		if found {
			item.PolicyName = policy.Name
			item.TargetTime = target
			item.Status = domain.ItemScheduled
			item.Priority = priority
			item.UpdatedAt = now
			ok, err := repo.UpdateItem(ctx, item, ports.OpenGuard())
			if err != nil {
				return err
			}
			if !ok {
				return item.InvalidTransition("reschedule")
			}
		} else {
			status := domain.ItemScheduled
			if policy.Frequency == domain.FrequencyInstant && req.At == nil {
				status = domain.ItemQueued
			}
			item = domain.ScheduledItem{
				ID:         e.newID(),
				ArticleID:  article.ID,
				PolicyName: policy.Name,
				Status:     status,
				TargetTime: target,
				Priority:   priority,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := repo.InsertItem(ctx, item); err != nil {
				return err
			}
		}

		article.Status = domain.ArticleScheduled
		article.ScheduledPublishTime = &target
		if err := repo.SaveArticle(ctx, article); err != nil {
			return err
		}

		out = item
		return nil
	})
	if err != nil {
		return domain.ScheduledItem{}, fmt.Errorf("schedule article %s: %w", req.ArticleID, err)
	}

	e.logger.Info("article scheduled", "article_id", out.ArticleID, "item_id", out.ID,
		"policy", out.PolicyName, "target_time", out.TargetTime, "status", out.Status)
	return out, nil
}

// Reschedule moves an open item to newTime, or to its policy's next slot when nil.
func (e *Engine) Reschedule(ctx context.Context, itemID string, newTime *time.Time) (domain.ScheduledItem, error) {
	var out domain.ScheduledItem

	err := e.store.InTx(ctx, func(repo ports.ScheduleRepository) error {
		item, err := repo.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status.Terminal() {
			return item.InvalidTransition("reschedule")
		}

		now := e.clock.Now()
		target := now
		if newTime != nil {
			target = *newTime
		} else {
			policy, err := repo.Policy(ctx, item.PolicyName)
			if err != nil {
				return err
			}
			target = policy.NextPublishTime(now)
		}

		item.TargetTime = target
		item.Status = domain.ItemScheduled
		item.UpdatedAt = now
		ok, err := repo.UpdateItem(ctx, item, ports.OpenGuard())
		if err != nil {
			return err
		}
		if !ok {
			return item.InvalidTransition("reschedule")
		}

		if err := e.mirrorSchedule(ctx, repo, item.ArticleID, target); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return domain.ScheduledItem{}, fmt.Errorf("reschedule item %s: %w", itemID, err)
	}

	e.logger.Info("item rescheduled", "item_id", out.ID, "target_time", out.TargetTime)
	return out, nil
}

// Cancel stops an open item and returns its article to draft.
func (e *Engine) Cancel(ctx context.Context, itemID string) (domain.ScheduledItem, error) {
	var out domain.ScheduledItem

	err := e.store.InTx(ctx, func(repo ports.ScheduleRepository) error {
		item, err := repo.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status.Terminal() {
			return item.InvalidTransition("cancel")
		}

		item.Status = domain.ItemCancelled
		item.UpdatedAt = e.clock.Now()
		ok, err := repo.UpdateItem(ctx, item, ports.OpenGuard())
		if err != nil {
			return err
		}
		if !ok {
			return item.InvalidTransition("cancel")
		}

		article, err := repo.Article(ctx, item.ArticleID)
		if err != nil {
			return err
		}
		article.Status = domain.ArticleDraft
		article.ScheduledPublishTime = nil
		if err := repo.SaveArticle(ctx, article); err != nil {
			return err
		}

		out = item
		return nil
	})
	if err != nil {
		return domain.ScheduledItem{}, fmt.Errorf("cancel item %s: %w", itemID, err)
	}

	e.logger.Info("item cancelled", "item_id", out.ID, "article_id", out.ArticleID)
	return out, nil
}

// Publish makes the item's article visible. The status check and the write share
// one transaction and the write is conditional on the item still being open and
// due, so concurrent callers publish an item at most once and never early.
func (e *Engine) Publish(ctx context.Context, itemID string) (bool, error) {
	var published domain.ScheduledItem

	err := e.store.InTx(ctx, func(repo ports.ScheduleRepository) error {
		item, err := repo.Item(ctx, itemID)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		if item.Status.Terminal() {
			return item.InvalidTransition("publish")
		}
		if !item.CanPublishNow(now) {
			return fmt.Errorf("%w: item %s not due until %s", domain.ErrInvalidState, item.ID, item.TargetTime.Format(time.RFC3339))
		}

		item.Status = domain.ItemPublished
		item.PublishedAt = &now
		item.FailureReason = ""
		item.UpdatedAt = now
		guard := ports.OpenGuard()
		guard.DueBy = now
		ok, err := repo.UpdateItem(ctx, item, guard)
		if err != nil {
			return err
		}
		if !ok {
			return item.InvalidTransition("publish")
		}

		article, err := repo.Article(ctx, item.ArticleID)
		if err != nil {
			return err
		}
		article.Status = domain.ArticlePublished
		if err := repo.SaveArticle(ctx, article); err != nil {
			return err
		}

		published = item
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("publish item %s: %w", itemID, err)
	}

	e.logger.Info("article published", "article_id", published.ArticleID, "item_id", published.ID, "policy", published.PolicyName)
	e.notify(ctx, published.ArticleID, *published.PublishedAt)
	return true, nil
}

func (e *Engine) notify(ctx context.Context, articleID string, publishedAt time.Time) {
	if e.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
	defer cancel()
	if err := e.notifier.ArticlePublished(nctx, articleID, publishedAt); err != nil {
		e.logger.Warn("publish notification failed", "article_id", articleID, "error", err)
	}
}

func (e *Engine) mirrorSchedule(ctx context.Context, repo ports.ScheduleRepository, articleID string, target time.Time) error {
	article, err := repo.Article(ctx, articleID)
	if err != nil {
		return err
	}
	article.Status = domain.ArticleScheduled
	article.ScheduledPublishTime = &target
	return repo.SaveArticle(ctx, article)
}

// ProcessDueItems runs one batch over the due items. A failing item is marked
// failed and reported; it never aborts the batch. The returned error covers only
// failures to select the batch or context cancellation.
func (e *Engine) ProcessDueItems(ctx context.Context, opts ProcessOptions) (domain.BatchResult, error) {
	result := domain.BatchResult{DryRun: opts.DryRun, Errors: []string{}, Outcomes: []domain.ItemOutcome{}}
	now := e.clock.Now()

	items, err := e.store.DueItems(ctx, now, opts.Policy)
	if err != nil {
		return result, fmt.Errorf("select due items: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}

	policies, err := e.store.Policies(ctx)
	if err != nil {
		return result, fmt.Errorf("load policies: %w", err)
	}
	byName := make(map[string]domain.Policy, len(policies))
	for _, p := range policies {
		byName[p.Name] = p
	}
	def, hasDefault := domain.SelectDefault(policies)
	dayStart, dayEnd := dayBounds(now)
	simulated := map[string]int{}

	e.logger.Debug("batch started", "due", len(items), "policy", opts.Policy, "dry_run", opts.DryRun)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++
		outcome := domain.ItemOutcome{ItemID: item.ID, ArticleID: item.ArticleID, Policy: item.PolicyName}

		fail := func(err error) {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %s (article %s): %v", item.ID, item.ArticleID, err))
			outcome.Action = domain.ActionFailed
			outcome.Error = err.Error()
			result.Outcomes = append(result.Outcomes, outcome)
		}

		policy, ok := byName[item.PolicyName]
		if !ok {
			fail(fmt.Errorf("%w: policy %s", domain.ErrNotFound, item.PolicyName))
			continue
		}

		if !policy.Active && hasDefault {
			target := def.NextPublishTime(now)
			if !opts.DryRun {
				if err := e.reassign(ctx, item.ID, def, target); err != nil {
					fail(err)
					continue
				}
			}
			result.Reassigned++
			outcome.Action = domain.ActionReassigned
			outcome.Policy = def.Name
			result.Outcomes = append(result.Outcomes, outcome)
			e.logger.Info("item reassigned", "item_id", item.ID, "from", item.PolicyName, "to", def.Name,
				"target_time", target, "dry_run", opts.DryRun)
			continue
		}

		if !policy.IsTimeAllowed(now) {
			e.logger.Debug("item skipped, forbidden window", "item_id", item.ID, "policy", policy.Name)
			outcome.Action = domain.ActionSkippedWindow
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		if policy.HasDailyCap() {
			count, err := e.store.CountPublished(ctx, policy.Name, dayStart, dayEnd)
			if err != nil {
				fail(err)
				continue
			}
			if count+simulated[policy.Name] >= policy.MaxPerDay {
				e.logger.Debug("item skipped, daily cap reached", "item_id", item.ID, "policy", policy.Name, "cap", policy.MaxPerDay)
				outcome.Action = domain.ActionSkippedCap
				result.Outcomes = append(result.Outcomes, outcome)
				continue
			}
		}

		if opts.DryRun {
			simulated[policy.Name]++
			result.Published++
			outcome.Action = domain.ActionWouldPublish
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}

		if _, err := e.Publish(ctx, item.ID); err != nil {
			e.logger.Warn("publish failed", "item_id", item.ID, "article_id", item.ArticleID, "error", err)
			// An invalid state means another writer moved the item after it was
			// selected; the item belongs to that writer now.
			if !errors.Is(err, domain.ErrInvalidState) {
				e.markFailed(ctx, item, err)
			}
			fail(err)
			continue
		}
		result.Published++
		outcome.Action = domain.ActionPublished
		result.Outcomes = append(result.Outcomes, outcome)
	}

	e.logger.Info("batch finished", "processed", result.Processed, "published", result.Published,
		"reassigned", result.Reassigned, "failed", result.Failed, "dry_run", opts.DryRun)
	return result, nil
}

func (e *Engine) reassign(ctx context.Context, itemID string, to domain.Policy, target time.Time) error {
	return e.store.InTx(ctx, func(repo ports.ScheduleRepository) error {
		item, err := repo.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status.Terminal() {
			return item.InvalidTransition("reassign")
		}

		item.PolicyName = to.Name
		item.TargetTime = target
		item.Status = domain.ItemScheduled
		item.UpdatedAt = e.clock.Now()
		ok, err := repo.UpdateItem(ctx, item, ports.OpenGuard())
		if err != nil {
			return err
		}
		if !ok {
			return item.InvalidTransition("reassign")
		}
		return e.mirrorSchedule(ctx, repo, item.ArticleID, target)
	})
}

// markFailed records cause on the item as the batch selected it. It leaves the
// item alone once any other writer has touched it since.
func (e *Engine) markFailed(ctx context.Context, selected domain.ScheduledItem, cause error) {
	var applied bool
	err := e.store.InTx(ctx, func(repo ports.ScheduleRepository) error {
		item, err := repo.Item(ctx, selected.ID)
		if err != nil {
			return err
		}
		if item.Status.Terminal() {
			return nil
		}
		item.Status = domain.ItemFailed
		item.FailureReason = cause.Error()
		item.UpdatedAt = e.clock.Now()
		guard := ports.OpenGuard()
		guard.UpdatedAt = selected.UpdatedAt
		applied, err = repo.UpdateItem(ctx, item, guard)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Error("mark item failed", "item_id", selected.ID, "error", err)
		return
	}
	if err == nil && !applied {
		e.logger.Debug("item changed since selection, not marked failed", "item_id", selected.ID)
	}
}

// Stats summarizes the queue for one policy, or every policy when name is empty.
func (e *Engine) Stats(ctx context.Context, name string) (domain.Stats, error) {
	stats := domain.Stats{Policy: name}

	var policy domain.Policy
	if name != "" {
		p, err := e.store.Policy(ctx, name)
		if err != nil {
			return domain.Stats{}, err
		}
		policy = p
		stats.MaxPerDay = p.MaxPerDay
	}

	counts, err := e.store.CountByStatus(ctx, name)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count items: %w", err)
	}
	for _, n := range counts {
		stats.Total += n
	}
	stats.Queued = counts[domain.ItemQueued]
	stats.Scheduled = counts[domain.ItemScheduled]
	stats.Failed = counts[domain.ItemFailed]
	stats.Cancelled = counts[domain.ItemCancelled]

	now := e.clock.Now()
	start, end := dayBounds(now)
	stats.PublishedToday, err = e.store.CountPublished(ctx, name, start, end)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count published today: %w", err)
	}

	next, ok, err := e.store.NextTargetAfter(ctx, name, now)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("next publish time: %w", err)
	}
	if ok {
		next = next.In(now.Location())
		stats.NextPublishTime = &next
	}

	stats.DailyLimitReached = policy.HasDailyCap() && stats.PublishedToday >= policy.MaxPerDay
	return stats, nil
}

// dayBounds returns [midnight, next midnight) of now's calendar day in now's location.
func dayBounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}
