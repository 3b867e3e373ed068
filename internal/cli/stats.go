package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/usecase"
)

func newStatsCmd() *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the publishing queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
				stats, err := engine.Stats(ctx, policy)
				if err != nil {
					return fmt.Errorf("get stats: %w", err)
				}

				w := cmd.OutOrStdout()
				if flagJSON {
					return printJSON(w, stats)
				}

				name := stats.Policy
				if name == "" {
					name = "(all policies)"
				}
				fmt.Fprintf(w, "Policy: %s\n", name)
				fmt.Fprintf(w, "  Items:     %d total, %d queued, %d scheduled, %d failed, %d cancelled\n",
					stats.Total, stats.Queued, stats.Scheduled, stats.Failed, stats.Cancelled)
				if stats.MaxPerDay > 0 {
					fmt.Fprintf(w, "  Today:     %d of %d published", stats.PublishedToday, stats.MaxPerDay)
					if stats.DailyLimitReached {
						fmt.Fprint(w, " (limit reached)")
					}
					fmt.Fprintln(w)
				} else {
					fmt.Fprintf(w, "  Today:     %d published\n", stats.PublishedToday)
				}
				if stats.NextPublishTime != nil {
					fmt.Fprintf(w, "  Next:      %s (%s)\n", stats.NextPublishTime.Format(time.RFC3339), humanize.Time(*stats.NextPublishTime))
				} else {
					fmt.Fprintln(w, "  Next:      nothing scheduled")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Restrict to one policy")
	return cmd
}

func newPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List schedule policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
				policies, err := engine.Policies(ctx)
				if err != nil {
					return fmt.Errorf("list policies: %w", err)
				}
				if flagJSON {
					return printJSON(cmd.OutOrStdout(), policies)
				}
				if len(policies) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No policies.")
					return nil
				}

				def, defErr := engine.DefaultPolicy(ctx)
				if defErr != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", defErr)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tACTIVE\tFREQUENCY\tWINDOW\tMAX/DAY\tPRIORITY\tDEFAULT")
				for _, p := range policies {
					window := "-"
					if p.Window != nil {
						window = p.Window.Start.String() + "-" + p.Window.End.String()
					}
					freq := p.Frequency.String()
					if p.CustomIntervalMinutes > 0 {
						freq = fmt.Sprintf("%s (%dm)", freq, p.CustomIntervalMinutes)
					}
					maxPerDay := "-"
					if p.HasDailyCap() {
						maxPerDay = humanize.Comma(int64(p.MaxPerDay))
					}
					isDefault := ""
					if defErr == nil && p.Name == def.Name {
						isDefault = "*"
					}
					fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\t%d\t%s\n", p.Name, p.Active, freq, window, maxPerDay, p.Priority, isDefault)
				}
				return tw.Flush()
			})
		},
	}
}
