package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/usecase"
)

func newProcessCmd() *cobra.Command {
	var (
		dryRun bool
		policy string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one batch over the due items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(ctx context.Context, engine *usecase.Engine) error {
				res, err := engine.ProcessDueItems(ctx, usecase.ProcessOptions{DryRun: dryRun, Policy: policy})
				if err != nil {
					return fmt.Errorf("process due items: %w", err)
				}

				w := cmd.OutOrStdout()
				if flagJSON {
					return printJSON(w, res)
				}

				label := "Batch"
				if res.DryRun {
					label = "Dry run"
				}
				fmt.Fprintf(w, "%s: %d processed, %d published, %d reassigned, %d failed\n",
					label, res.Processed, res.Published, res.Reassigned, res.Failed)
				for _, o := range res.Outcomes {
					fmt.Fprintf(w, "  - %s (article %s, %s): %s", o.ItemID, o.ArticleID, o.Policy, o.Action)
					if o.Error != "" {
						fmt.Fprintf(w, ": %s", o.Error)
					}
					fmt.Fprintln(w)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report decisions without changing anything")
	cmd.Flags().StringVar(&policy, "policy", "", "Only process items of this policy")
	return cmd
}
