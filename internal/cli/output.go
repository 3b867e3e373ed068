package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printItem(w io.Writer, item domain.ScheduledItem) error {
	if flagJSON {
		return printJSON(w, item)
	}
	fmt.Fprintf(w, "Item: %s\n", item.ID)
	fmt.Fprintf(w, "  Article:  %s\n", item.ArticleID)
	fmt.Fprintf(w, "  Policy:   %s\n", item.PolicyName)
	fmt.Fprintf(w, "  Status:   %s\n", item.Status)
	fmt.Fprintf(w, "  Target:   %s (%s)\n", item.TargetTime.Format(time.RFC3339), humanize.Time(item.TargetTime))
	fmt.Fprintf(w, "  Priority: %d\n", item.Priority)
	if item.PublishedAt != nil {
		fmt.Fprintf(w, "  Published: %s\n", item.PublishedAt.Format(time.RFC3339))
	}
	if item.FailureReason != "" {
		fmt.Fprintf(w, "  Failure:  %s\n", item.FailureReason)
	}
	return nil
}

// parseAt accepts RFC 3339 or "YYYY-MM-DD HH:MM" in loc.
func parseAt(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or \"YYYY-MM-DD HH:MM\"", value)
	}
	return t, nil
}
