package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dexfren/backend/internal/app"
	"dexfren/backend/internal/worker"
)

func newBuildCmd(c *cli) *cobra.Command {
	return newIndexCmd(c, worker.ModeFull, "build", "Rebuild the knowledge base from every source")
}

func newUpdateCmd(c *cli) *cobra.Command {
	return newIndexCmd(c, worker.ModeIncremental, "update", "Re-ingest sources that changed since the last run")
}

// newIndexCmd runs the pipeline in-process, or with --queue hands the run
// to whichever worker consumes the reindex topic.
func newIndexCmd(c *cli, mode, use, short string) *cobra.Command {
	var queue bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App, deps *app.Dependencies) error {
				if queue {
					if err := worker.PublishReindex(ctx, deps.NSQProducer, mode, "cli"); err != nil {
						return err
					}
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s reindex queued\n", mode)
					return err
				}

				run := a.Pipeline.Update
				if mode == worker.ModeFull {
					run = a.Pipeline.Build
				}
				report, err := run(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().BoolVar(&queue, "queue", false, "Publish a reindex task instead of running it here")
	return cmd
}
