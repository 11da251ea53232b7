package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/duecycle/internal/cli/formatter"
	"github.com/alexanderramin/duecycle/internal/contract"
	"github.com/alexanderramin/duecycle/internal/domain"
)

func newHoursCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hours",
		Aliases: []string{"measure"},
		Short:   "Record measurements and show running totals against limits",
	}

	cmd.AddCommand(
		newHoursRecordCmd(app),
		newHoursTotalsCmd(app),
	)

	return cmd
}

func newHoursRecordCmd(app *App) *cobra.Command {
	var req contract.RecordIncrementRequest

	cmd := &cobra.Command{
		Use:   "record SUBJECT",
		Short: "Record a measurement increment for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := req.ToIncrement(args[0])
			if err != nil {
				return err
			}
			if err := app.Accumulator.RecordIncrement(cmd.Context(), m); err != nil {
				return err
			}
			view := map[string]any{
				"id":          m.ID,
				"subject_id":  m.SubjectID,
				"recorded_on": m.RecordedOn.Format(domain.DateLayout),
				"amount":      m.Amount,
			}
			return render(cmd, view, func() string {
				return fmt.Sprintf("Recorded %s for %s on %s",
					formatter.Amount(m.Amount), formatter.Bold(m.SubjectID), m.RecordedOn.Format(domain.DateLayout))
			})
		},
	}

	cmd.Flags().Float64Var(&req.Amount, "amount", 0, "Amount to add; negative values correct earlier entries")
	cmd.Flags().StringVar(&req.RecordedOn, "on", "", "Date recorded (YYYY-MM-DD); defaults to today")
	cmd.Flags().StringVar(&req.Note, "note", "", "Free-form note")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newHoursTotalsCmd(app *App) *cobra.Command {
	var on string

	cmd := &cobra.Command{
		Use:   "totals [SUBJECT]",
		Short: "Show annual and monthly totals; lists subjects when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				subjects := app.Accumulator.Subjects()
				return render(cmd, subjects, func() string {
					if len(subjects) == 0 {
						return "No subjects configured."
					}
					return strings.Join(subjects, "\n")
				})
			}

			date, err := contract.ParseOptionalDate("on", on)
			if err != nil {
				return err
			}
			totals, err := app.Accumulator.Totals(cmd.Context(), args[0], date)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewSubjectTotalsView(totals), func() string {
				return formatter.FormatTotals(totals)
			})
		},
	}

	cmd.Flags().StringVar(&on, "on", "", "Observation date (YYYY-MM-DD); defaults to today")

	return cmd
}
