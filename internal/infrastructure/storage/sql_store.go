package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/domain"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/ports"
)

// runner is satisfied by both *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repository implements ports.ScheduleRepository on top of a runner.
type repository struct {
	run    runner
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

// SQLStore persists scheduling state in sqlite or postgres.
type SQLStore struct {
	*repository
	db     *sql.DB
	driver string
}

var (
	_ ports.Store              = (*SQLStore)(nil)
	_ ports.ScheduleRepository = (*repository)(nil)
)

func newSQLStore(db *sql.DB, driver string, sb sq.StatementBuilderType, logger *slog.Logger) *SQLStore {
	logger = logger.With("component", "store", "driver", driver)
	return &SQLStore{
		repository: &repository{run: db, sb: sb, logger: logger},
		db:         db,
		driver:     driver,
	}
}

// Driver names the backend in use.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a database transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(repo ports.ScheduleRepository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin tx", err)
	}

	repo := &repository{run: tx, sb: s.sb, logger: s.logger}
	if err := fn(repo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return persistence("commit tx", err)
	}
	return nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func openStatusArgs() []string {
	out := make([]string, 0, len(domain.OpenStatuses))
	for _, st := range domain.OpenStatuses {
		out = append(out, string(st))
	}
	return out
}

// --- Policies ---

var policyColumns = []string{
	"name", "active", "frequency", "custom_interval_minutes", "window_start", "window_end",
	"max_per_day", "priority", "created_at", "updated_at",
}

func (r *repository) SavePolicy(ctx context.Context, p domain.Policy) error {
	r.logger.Debug("sql", "op", "upsert", "table", "schedule_policies", "name", p.Name)

	var windowStart, windowEnd any
	if p.Window != nil {
		windowStart = p.Window.Start.Minutes()
		windowEnd = p.Window.End.Minutes()
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	query, args, err := r.sb.Insert("schedule_policies").
		Columns(policyColumns...).
		Values(p.Name, p.Active, p.Frequency.String(), p.CustomIntervalMinutes, windowStart, windowEnd,
			p.MaxPerDay, p.Priority, millis(created), millis(updated)).
		Suffix(`ON CONFLICT (name) DO UPDATE
			SET active = excluded.active,
			    frequency = excluded.frequency,
			    custom_interval_minutes = excluded.custom_interval_minutes,
			    window_start = excluded.window_start,
			    window_end = excluded.window_end,
			    max_per_day = excluded.max_per_day,
			    priority = excluded.priority,
			    updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build policy upsert: %w", err)
	}

	if _, err := r.run.ExecContext(ctx, query, args...); err != nil {
		return persistence("upsert policy", err)
	}
	return nil
}

func (r *repository) Policy(ctx context.Context, name string) (domain.Policy, error) {
	r.logger.Debug("sql", "op", "select", "table", "schedule_policies", "name", name)

	query, args, err := r.sb.Select(policyColumns...).
		From("schedule_policies").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return domain.Policy{}, fmt.Errorf("build policy select: %w", err)
	}

	p, err := scanPolicy(r.run.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Policy{}, fmt.Errorf("%w: policy %s", domain.ErrNotFound, name)
	}
	if err != nil {
		return domain.Policy{}, persistence("select policy", err)
	}
	return p, nil
}

func (r *repository) Policies(ctx context.Context) ([]domain.Policy, error) {
	r.logger.Debug("sql", "op", "list", "table", "schedule_policies")

	query, args, err := r.sb.Select(policyColumns...).
		From("schedule_policies").
		OrderBy("priority DESC", "name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build policy list: %w", err)
	}

	rows, err := r.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence("list policies", err)
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, persistence("scan policy", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("iterate policies", err)
	}
	return policies, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (domain.Policy, error) {
	var (
		p                      domain.Policy
		frequency              string
		windowStart, windowEnd sql.NullInt64
		createdAt, updatedAt   int64
	)
	if err := row.Scan(&p.Name, &p.Active, &frequency, &p.CustomIntervalMinutes, &windowStart, &windowEnd,
		&p.MaxPerDay, &p.Priority, &createdAt, &updatedAt); err != nil {
		return domain.Policy{}, err
	}

	f, err := domain.ParseFrequency(frequency)
	if err != nil {
		return domain.Policy{}, err
	}
	p.Frequency = f
	if windowStart.Valid && windowEnd.Valid {
		p.Window = &domain.ForbiddenWindow{
			Start: domain.TimeOfDayFromMinutes(int(windowStart.Int64)),
			End:   domain.TimeOfDayFromMinutes(int(windowEnd.Int64)),
		}
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// --- Articles ---

func (r *repository) Article(ctx context.Context, id string) (domain.Article, error) {
	r.logger.Debug("sql", "op", "select", "table", "articles", "id", id)

	query, args, err := r.sb.Select("id", "status", "scheduled_publish_time").
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build article select: %w", err)
	}

	var (
		a         domain.Article
		status    string
		scheduled sql.NullInt64
	)
	err = r.run.QueryRowContext(ctx, query, args...).Scan(&a.ID, &status, &scheduled)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, fmt.Errorf("%w: article %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Article{}, persistence("select article", err)
	}
	a.Status = domain.ArticleStatus(status)
	a.ScheduledPublishTime = timePtr(scheduled)
	return a, nil
}

func (r *repository) SaveArticle(ctx context.Context, a domain.Article) error {
	r.logger.Debug("sql", "op", "upsert", "table", "articles", "id", a.ID, "status", a.Status)

	query, args, err := r.sb.Insert("articles").
		Columns("id", "status", "scheduled_publish_time", "updated_at").
		Values(a.ID, string(a.Status), nullMillis(a.ScheduledPublishTime), millis(time.Now())).
		Suffix(`ON CONFLICT (id) DO UPDATE
			SET status = excluded.status,
			    scheduled_publish_time = excluded.scheduled_publish_time,
			    updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build article upsert: %w", err)
	}

	if _, err := r.run.ExecContext(ctx, query, args...); err != nil {
		return persistence("upsert article", err)
	}
	return nil
}

// --- Scheduled items ---

var itemColumns = []string{
	"id", "article_id", "policy_name", "status", "target_time", "priority",
	"published_at", "failure_reason", "created_at", "updated_at",
}

func scanItem(row rowScanner) (domain.ScheduledItem, error) {
	var (
		item                 domain.ScheduledItem
		status               string
		target               int64
		publishedAt          sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&item.ID, &item.ArticleID, &item.PolicyName, &status, &target, &item.Priority,
		&publishedAt, &item.FailureReason, &createdAt, &updatedAt); err != nil {
		return domain.ScheduledItem{}, err
	}
	item.Status = domain.ItemStatus(status)
	item.TargetTime = fromMillis(target)
	item.PublishedAt = timePtr(publishedAt)
	item.CreatedAt = fromMillis(createdAt)
	item.UpdatedAt = fromMillis(updatedAt)
	return item, nil
}

func (r *repository) Item(ctx context.Context, id string) (domain.ScheduledItem, error) {
	r.logger.Debug("sql", "op", "select", "table", "scheduled_items", "id", id)

	query, args, err := r.sb.Select(itemColumns...).
		From("scheduled_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.ScheduledItem{}, fmt.Errorf("build item select: %w", err)
	}

	item, err := scanItem(r.run.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduledItem{}, fmt.Errorf("%w: scheduled item %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.ScheduledItem{}, persistence("select item", err)
	}
	return item, nil
}

func (r *repository) OpenItemForArticle(ctx context.Context, articleID string) (domain.ScheduledItem, bool, error) {
	r.logger.Debug("sql", "op", "select_open", "table", "scheduled_items", "article_id", articleID)

	query, args, err := r.sb.Select(itemColumns...).
		From("scheduled_items").
		Where(sq.Eq{"article_id": articleID, "status": openStatusArgs()}).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.ScheduledItem{}, false, fmt.Errorf("build open item select: %w", err)
	}

	item, err := scanItem(r.run.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduledItem{}, false, nil
	}
	if err != nil {
		return domain.ScheduledItem{}, false, persistence("select open item", err)
	}
	return item, true, nil
}

func (r *repository) InsertItem(ctx context.Context, item domain.ScheduledItem) error {
	r.logger.Debug("sql", "op", "insert", "table", "scheduled_items", "id", item.ID, "article_id", item.ArticleID)

	query, args, err := r.sb.Insert("scheduled_items").
		Columns(itemColumns...).
		Values(item.ID, item.ArticleID, item.PolicyName, string(item.Status), millis(item.TargetTime), item.Priority,
			nullMillis(item.PublishedAt), item.FailureReason, millis(item.CreatedAt), millis(item.UpdatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build item insert: %w", err)
	}

	if _, err := r.run.ExecContext(ctx, query, args...); err != nil {
		return persistence("insert item", err)
	}
	return nil
}

func (r *repository) UpdateItem(ctx context.Context, item domain.ScheduledItem, guard ports.ItemGuard) (bool, error) {
	r.logger.Debug("sql", "op", "update", "table", "scheduled_items", "id", item.ID, "status", item.Status)

	update := r.sb.Update("scheduled_items").
		SetMap(map[string]any{
			"policy_name":    item.PolicyName,
			"status":         string(item.Status),
			"target_time":    millis(item.TargetTime),
			"priority":       item.Priority,
			"published_at":   nullMillis(item.PublishedAt),
			"failure_reason": item.FailureReason,
			"updated_at":     millis(item.UpdatedAt),
		}).
		Where(sq.Eq{"id": item.ID})
	if len(guard.From) > 0 {
		statuses := make([]string, 0, len(guard.From))
		for _, st := range guard.From {
			statuses = append(statuses, string(st))
		}
		update = update.Where(sq.Eq{"status": statuses})
	}
	if !guard.DueBy.IsZero() {
		update = update.Where(sq.LtOrEq{"target_time": millis(guard.DueBy)})
	}
	if !guard.UpdatedAt.IsZero() {
		update = update.Where(sq.Eq{"updated_at": millis(guard.UpdatedAt)})
	}

	query, args, err := update.ToSql()
	if err != nil {
		return false, fmt.Errorf("build item update: %w", err)
	}

	res, err := r.run.ExecContext(ctx, query, args...)
	if err != nil {
		return false, persistence("update item", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, persistence("update item rows", err)
	}
	return n == 1, nil
}

func (r *repository) DueItems(ctx context.Context, now time.Time, policy string) ([]domain.ScheduledItem, error) {
	r.logger.Debug("sql", "op", "select_due", "table", "scheduled_items", "policy", policy)

	sel := r.sb.Select(itemColumns...).
		From("scheduled_items").
		Where(sq.Eq{"status": openStatusArgs()}).
		Where(sq.LtOrEq{"target_time": millis(now)}).
		OrderBy("target_time ASC", "priority DESC", "created_at ASC")
	if policy != "" {
		sel = sel.Where(sq.Eq{"policy_name": policy})
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due select: %w", err)
	}

	rows, err := r.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence("select due items", err)
	}
	defer rows.Close()

	var items []domain.ScheduledItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, persistence("scan due item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("iterate due items", err)
	}
	return items, nil
}

func (r *repository) CountPublished(ctx context.Context, policy string, from, to time.Time) (int, error) {
	sel := r.sb.Select("COUNT(*)").
		From("scheduled_items").
		Where(sq.Eq{"status": string(domain.ItemPublished)}).
		Where(sq.GtOrEq{"published_at": millis(from)}).
		Where(sq.Lt{"published_at": millis(to)})
	if policy != "" {
		sel = sel.Where(sq.Eq{"policy_name": policy})
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build published count: %w", err)
	}

	var n int
	if err := r.run.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, persistence("count published", err)
	}
	return n, nil
}

func (r *repository) CountByStatus(ctx context.Context, policy string) (map[domain.ItemStatus]int, error) {
	sel := r.sb.Select("status", "COUNT(*)").
		From("scheduled_items").
		GroupBy("status")
	if policy != "" {
		sel = sel.Where(sq.Eq{"policy_name": policy})
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build status count: %w", err)
	}

	rows, err := r.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence("count by status", err)
	}
	defer rows.Close()

	counts := map[domain.ItemStatus]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, persistence("scan status count", err)
		}
		counts[domain.ItemStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("iterate status counts", err)
	}
	return counts, nil
}

func (r *repository) NextTargetAfter(ctx context.Context, policy string, after time.Time) (time.Time, bool, error) {
	sel := r.sb.Select("MIN(target_time)").
		From("scheduled_items").
		Where(sq.Eq{"status": openStatusArgs()}).
		Where(sq.Gt{"target_time": millis(after)})
	if policy != "" {
		sel = sel.Where(sq.Eq{"policy_name": policy})
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("build next target select: %w", err)
	}

	var next sql.NullInt64
	if err := r.run.QueryRowContext(ctx, query, args...).Scan(&next); err != nil {
		return time.Time{}, false, persistence("select next target", err)
	}
	if !next.Valid {
		return time.Time{}, false, nil
	}
	return fromMillis(next.Int64), true, nil
}
