package domain

import "time"

// ArticleStatus enumerates the visibility states of an article.
type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticleScheduled ArticleStatus = "scheduled"
	ArticlePublished ArticleStatus = "published"
)

// Article holds the fields of a stored article that publishing is allowed to touch.
// Content, images and categories live elsewhere.
type Article struct {
	ID                   string        `json:"id"`
	Status               ArticleStatus `json:"status"`
	ScheduledPublishTime *time.Time    `json:"scheduled_publish_time,omitempty"`
}

// Schedulable reports whether the article may be (re)queued for publishing.
func (a Article) Schedulable() bool {
	return a.Status == ArticleDraft || a.Status == ArticleScheduled
}
