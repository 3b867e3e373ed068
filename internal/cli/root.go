package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/app"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/config"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/logging"
	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/usecase"
)

var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagJSON      bool

	cfg    config.Config
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the publisher CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "publisher",
		Short: "Scheduled article publishing engine",
		Long:  "publisher queues articles under publishing policies and releases them on schedule.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.LoadFrom(flagConfig)
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Logging.Format = flagLogFormat
			}
			logger = logging.NewWithWriter(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("PUBLISHER_CONFIG"), "YAML config file (or PUBLISHER_CONFIG env)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print results as JSON")

	root.AddCommand(
		newServeCmd(),
		newProcessCmd(),
		newStatsCmd(),
		newPoliciesCmd(),
		newArticleCmd(),
		newScheduleCmd(),
		newRescheduleCmd(),
		newCancelCmd(),
		newPublishCmd(),
		newItemCmd(),
	)

	return root
}

// withEngine opens the store for a one-shot command and closes it afterwards.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, engine *usecase.Engine) error) error {
	ctx := cmd.Context()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return fn(ctx, application.Engine())
}
