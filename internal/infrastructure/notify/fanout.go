package notify

import (
	"context"
	"errors"
	"time"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/ports"
)

// Fanout delivers each notification to every configured notifier.
type Fanout []ports.PublishNotifier

var _ ports.PublishNotifier = Fanout(nil)

// ArticlePublished calls all notifiers and joins their errors.
func (f Fanout) ArticlePublished(ctx context.Context, articleID string, publishedAt time.Time) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.ArticlePublished(ctx, articleID, publishedAt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
