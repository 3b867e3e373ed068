package storage

import (
	"context"
	"fmt"
)

// schema is portable between sqlite and postgres. Times are unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS schedule_policies (
		name                    TEXT PRIMARY KEY,
		active                  BOOLEAN NOT NULL DEFAULT FALSE,
		frequency               TEXT NOT NULL,
		custom_interval_minutes INTEGER NOT NULL DEFAULT 0,
		window_start            INTEGER,
		window_end              INTEGER,
		max_per_day             INTEGER NOT NULL DEFAULT 0,
		priority                INTEGER NOT NULL DEFAULT 0,
		created_at              BIGINT NOT NULL,
		updated_at              BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS articles (
		id                     TEXT PRIMARY KEY,
		status                 TEXT NOT NULL DEFAULT 'draft',
		scheduled_publish_time BIGINT,
		updated_at             BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS scheduled_items (
		id             TEXT PRIMARY KEY,
		article_id     TEXT NOT NULL REFERENCES articles(id),
		policy_name    TEXT NOT NULL REFERENCES schedule_policies(name),
		status         TEXT NOT NULL,
		target_time    BIGINT NOT NULL,
		priority       INTEGER NOT NULL DEFAULT 0,
		published_at   BIGINT,
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at     BIGINT NOT NULL,
		updated_at     BIGINT NOT NULL
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_scheduled_items_open_article
		ON scheduled_items(article_id) WHERE status IN ('queued', 'scheduled')`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_items_due ON scheduled_items(status, target_time)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_items_policy ON scheduled_items(policy_name, status)`,
}

// Migrate creates all required tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate", "driver", s.driver)
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return persistence("migrate", fmt.Errorf("%s: %w", firstLine(stmt), err))
		}
	}
	return nil
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' || r == '(' {
			return stmt[:i]
		}
	}
	return stmt
}
