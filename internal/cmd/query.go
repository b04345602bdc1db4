package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dexfren/backend/features/query"
	"dexfren/backend/internal/app"
	"dexfren/backend/internal/document"
	"dexfren/backend/internal/middleware"
)

func newQueryCmd(c *cli) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Rank knowledge base entries for a question",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return err
			}
			if mode != query.ModeRank && mode != query.ModeChunks {
				return fmt.Errorf("invalid --mode %q: want %s or %s", mode, query.ModeRank, query.ModeChunks)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App, _ *app.Dependencies) error {
				ctx = middleware.NewCorrelationID(ctx)
				a.Pipeline.WarmCatalog(ctx)

				var docs []document.Document
				if mode == query.ModeChunks {
					docs = a.Ranker.RankChunks(ctx, text)
				} else {
					docs = a.Ranker.Rank(ctx, text)
				}
				if docs == nil {
					docs = []document.Document{}
				}
				return printJSON(cmd.OutOrStdout(), docs)
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", query.ModeRank, "Ranking mode (rank|chunks)")
	return cmd
}
