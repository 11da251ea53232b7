package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/duecycle/internal/cli/formatter"
	"github.com/alexanderramin/duecycle/internal/contract"
	"github.com/alexanderramin/duecycle/internal/domain"
)

func newDeadlineCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadline",
		Aliases: []string{"dl"},
		Short:   "List and complete deadlines",
	}

	cmd.AddCommand(
		newDeadlineListCmd(app),
		newDeadlineCompleteCmd(app),
		newDeadlineSweepCmd(app),
	)

	return cmd
}

func newDeadlineListCmd(app *App) *cobra.Command {
	var status, schedule string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deadlines by status, or every deadline of one schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var deadlines []*domain.Deadline
			if schedule != "" {
				id, err := resolveScheduleID(ctx, app, schedule)
				if err != nil {
					return err
				}
				if deadlines, err = app.Deadlines.ListBySchedule(ctx, id); err != nil {
					return err
				}
			} else {
				st, err := contract.ParseDeadlineStatus(status)
				if err != nil {
					return err
				}
				if deadlines, err = app.Deadlines.ListByStatus(ctx, st); err != nil {
					return err
				}
			}

			return render(cmd, contract.NewDeadlineViews(deadlines), func() string {
				if len(deadlines) == 0 {
					return "No deadlines found."
				}
				return formatter.FormatDeadlineList(deadlines, app.Clock.Now())
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", string(domain.DeadlinePending), "PENDING, OVERDUE or COMPLETED")
	cmd.Flags().StringVar(&schedule, "schedule", "", "List every deadline of this schedule instead")

	return cmd
}

func newDeadlineCompleteCmd(app *App) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a deadline completed and advance its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveDeadlineID(ctx, app, args[0])
			if err != nil {
				return err
			}

			completedAt := app.Clock.Now()
			if at != "" {
				if completedAt, err = parseCompletedAt(at); err != nil {
					return err
				}
			}

			d, err := app.Deadlines.Complete(ctx, id, completedAt)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewDeadlineView(d), func() string {
				late := ""
				if d.IsLate != nil && *d.IsLate {
					late = formatter.StyleRed.Render(" (late)")
				}
				return fmt.Sprintf("Completed %s due %s%s",
					formatter.TruncID(d.ID), d.DueDate.Format(domain.DateLayout), late)
			})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Completion time (YYYY-MM-DD or RFC 3339); defaults to now")

	return cmd
}

func parseCompletedAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, domain.NewValidationError("completed_at", "must be YYYY-MM-DD or RFC 3339")
	}
	return d, nil
}

func newDeadlineSweepCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark pending deadlines past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Deadlines.SweepOverdue(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd, map[string]int64{"marked_overdue": n}, func() string {
				return fmt.Sprintf("Marked %d deadline(s) overdue", n)
			})
		},
	}
}
