package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/usecase"
)

func newArticleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "article",
		Short: "Register or inspect articles",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <article_id>",
			Short: "Register a draft article",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
					article, err := engine.RegisterArticle(ctx, args[0])
					if err != nil {
						return err
					}
					if flagJSON {
						return printJSON(cmd.OutOrStdout(), article)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Article %s: %s\n", article.ID, article.Status)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <article_id>",
			Short: "Show an article's publishing state",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
					article, err := engine.Article(ctx, args[0])
					if err != nil {
						return err
					}
					if flagJSON {
						return printJSON(cmd.OutOrStdout(), article)
					}
					w := cmd.OutOrStdout()
					fmt.Fprintf(w, "Article %s: %s\n", article.ID, article.Status)
					if article.ScheduledPublishTime != nil {
						fmt.Fprintf(w, "  Scheduled: %s\n", article.ScheduledPublishTime.Format(time.RFC3339))
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func newScheduleCmd() *cobra.Command {
	var (
		policy   string
		at       string
		priority int
	)

	cmd := &cobra.Command{
		Use:   "schedule <article_id>",
		Short: "Queue an article for publishing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := usecase.ScheduleRequest{ArticleID: args[0], Policy: policy}
			if at != "" {
				t, err := parseAt(at, cfg.Scheduler.Location())
				if err != nil {
					return err
				}
				req.At = &t
			}
			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}

			return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
				item, err := engine.Schedule(ctx, req)
				if err != nil {
					return err
				}
				return printItem(cmd.OutOrStdout(), item)
			})
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Policy name (default: highest-priority active policy)")
	cmd.Flags().StringVar(&at, "at", "", "Publish time, RFC3339 or \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().IntVar(&priority, "priority", 0, "Override the policy priority")
	return cmd
}

func newRescheduleCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "reschedule <item_id>",
		Short: "Move an open item to a new time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var newTime *time.Time
			if at != "" {
				t, err := parseAt(at, cfg.Scheduler.Location())
				if err != nil {
					return err
				}
				newTime = &t
			}

			return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
				item, err := engine.Reschedule(ctx, args[0], newTime)
				if err != nil {
					return err
				}
				return printItem(cmd.OutOrStdout(), item)
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "New publish time (default: the policy's next slot)")
	return cmd
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <item_id>",
		Short: "Cancel an open item and return its article to draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
				item, err := engine.Cancel(ctx, args[0])
				if err != nil {
					return err
				}
				return printItem(cmd.OutOrStdout(), item)
			})
		},
	}
}

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <item_id>",
		Short: "Publish a due item now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
				if _, err := engine.Publish(ctx, args[0]); err != nil {
					return err
				}
				item, err := engine.Item(ctx, args[0])
				if err != nil {
					return err
				}
				return printItem(cmd.OutOrStdout(), item)
			})
		},
	}
}

func newItemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "item <item_id>",
		Short: "Show a scheduled item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
				item, err := engine.Item(ctx, args[0])
				if err != nil {
					return err
				}
				return printItem(cmd.OutOrStdout(), item)
			})
		},
	}
}
