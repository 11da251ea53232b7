package cli

import (
	"github.com/spf13/cobra"

	"github.com/alexanderramin/duecycle/internal/cli/formatter"
	"github.com/alexanderramin/duecycle/internal/contract"
)

func newEvaluateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation pass over every due rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Evaluation.EvaluateDue(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, contract.NewBatchResultView(res), func() string {
				return formatter.FormatBatch(res)
			})
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var status, from, to, cursor, limit string

	cmd := &cobra.Command{
		Use:   "history RULE",
		Short: "Show a rule's execution log, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			f, err := contract.ParseExecutionFilter(status, from, to, cursor, limit)
			if err != nil {
				return err
			}
			page, err := app.History.History(ctx, id, f)
			if err != nil {
				return err
			}
			stats, err := app.History.Stats(ctx, id)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewExecutionHistoryView(page, stats), func() string {
				if len(page.Items) == 0 {
					return "No executions recorded."
				}
				return formatter.FormatHistory(page, stats)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "SUCCESS or FAILED")
	cmd.Flags().StringVar(&from, "from", "", "Earliest execution (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Latest execution (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from a previous page")
	cmd.Flags().StringVar(&limit, "limit", "", "Page size")

	return cmd
}
