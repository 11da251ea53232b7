package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/duecycle/internal/cli/formatter"
	"github.com/alexanderramin/duecycle/internal/contract"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
)

// scheduleDetailView is the --json shape of "schedule show".
type scheduleDetailView struct {
	contract.ScheduleView
	Deadlines []contract.DeadlineView `json:"deadlines"`
}

func newScheduleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"sched"},
		Short:   "Manage compliance schedules",
	}

	cmd.AddCommand(
		newScheduleCreateCmd(app),
		newScheduleListCmd(app),
		newScheduleShowCmd(app),
		newScheduleUpdateCmd(app),
		newScheduleArchiveCmd(app),
		newScheduleRecomputeCmd(app),
	)

	return cmd
}

func newScheduleCreateCmd(app *App) *cobra.Command {
	var req contract.CreateScheduleRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a schedule and its first deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := req.ToSchedule()
			if err != nil {
				return err
			}
			if err := app.Schedules.Create(cmd.Context(), sched); err != nil {
				return err
			}
			return render(cmd, contract.NewScheduleView(sched), func() string {
				return fmt.Sprintf("Created schedule %s for %s, next due %s",
					formatter.TruncID(sched.ID), formatter.Bold(sched.ObligationID), formatter.DateOrDash(sched.NextDueDate))
			})
		},
	}

	cmd.Flags().StringVar(&req.ObligationID, "obligation", "", "Obligation ID")
	cmd.Flags().StringVar(&req.SiteID, "site", "", "Site ID")
	cmd.Flags().StringVar(&req.Frequency, "frequency", "", "DAILY, WEEKLY, MONTHLY, QUARTERLY, ANNUAL, ONE_TIME, CONTINUOUS or EVENT_TRIGGERED")
	cmd.Flags().StringVar(&req.BaseDate, "base", "", "Base date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&req.AdjustForBusinessDays, "business-days", false, "Roll due dates off weekends")
	cmd.Flags().IntSliceVar(&req.ReminderOffsets, "remind", nil, "Reminder offsets in days before due, e.g. 7,30")
	cmd.Flags().StringVar(&req.ModifiedBy, "by", "", "Actor recorded on the schedule")
	_ = cmd.MarkFlagRequired("obligation")
	_ = cmd.MarkFlagRequired("frequency")
	_ = cmd.MarkFlagRequired("base")

	return cmd
}

func newScheduleListCmd(app *App) *cobra.Command {
	var site, obligation, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repository.ScheduleFilter{SiteID: site, ObligationID: obligation}
			if status != "" {
				st := domain.ScheduleStatus(strings.ToUpper(status))
				f.Status = &st
			}
			schedules, err := app.Schedules.List(cmd.Context(), f)
			if err != nil {
				return err
			}

			views := make([]contract.ScheduleView, 0, len(schedules))
			for _, s := range schedules {
				views = append(views, contract.NewScheduleView(s))
			}
			return render(cmd, views, func() string {
				if len(schedules) == 0 {
					return "No schedules found."
				}
				return formatter.FormatScheduleList(schedules, app.Clock.Now())
			})
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "Filter by site")
	cmd.Flags().StringVar(&obligation, "obligation", "", "Filter by obligation")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (ACTIVE, PAUSED, ARCHIVED)")

	return cmd
}

func newScheduleShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a schedule with its deadlines and change history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveScheduleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			sched, err := app.Schedules.GetByID(ctx, id)
			if err != nil {
				return err
			}
			deadlines, err := app.Deadlines.ListBySchedule(ctx, id)
			if err != nil {
				return err
			}

			view := scheduleDetailView{
				ScheduleView: contract.NewScheduleView(sched),
				Deadlines:    contract.NewDeadlineViews(deadlines),
			}
			return render(cmd, view, func() string {
				return formatter.FormatSchedule(sched, deadlines, app.Clock.Now())
			})
		},
	}
}

func newScheduleUpdateCmd(app *App) *cobra.Command {
	var frequency, base, status, by string
	var businessDays bool
	var reminders []int

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a schedule; recurrence changes recompute the next deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveScheduleID(ctx, app, args[0])
			if err != nil {
				return err
			}

			req := contract.UpdateScheduleRequest{ModifiedBy: by}
			flags := cmd.Flags()
			if flags.Changed("frequency") {
				req.Frequency = &frequency
			}
			if flags.Changed("base") {
				req.BaseDate = &base
			}
			if flags.Changed("business-days") {
				req.AdjustForBusinessDays = &businessDays
			}
			if flags.Changed("remind") {
				req.ReminderOffsets = reminders
				if req.ReminderOffsets == nil {
					req.ReminderOffsets = []int{}
				}
			}
			if flags.Changed("status") {
				req.Status = &status
			}

			patch, err := req.ToPatch()
			if err != nil {
				return err
			}
			sched, err := app.Schedules.Update(ctx, id, patch, by)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewScheduleView(sched), func() string {
				return fmt.Sprintf("Updated schedule %s, next due %s",
					formatter.TruncID(sched.ID), formatter.DateOrDash(sched.NextDueDate))
			})
		},
	}

	cmd.Flags().StringVar(&frequency, "frequency", "", "New frequency")
	cmd.Flags().StringVar(&base, "base", "", "New base date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&businessDays, "business-days", false, "Roll due dates off weekends")
	cmd.Flags().IntSliceVar(&reminders, "remind", nil, "Replace reminder offsets")
	cmd.Flags().StringVar(&status, "status", "", "ACTIVE or PAUSED")
	cmd.Flags().StringVar(&by, "by", "", "Actor recorded in the audit trail")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

func newScheduleArchiveCmd(app *App) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "archive ID",
		Short: "Archive a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveScheduleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			sched, err := app.Schedules.Archive(ctx, id, by)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewScheduleView(sched), func() string {
				return fmt.Sprintf("Archived schedule %s", formatter.TruncID(sched.ID))
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "Actor recorded in the audit trail")
	_ = cmd.MarkFlagRequired("by")

	return cmd
}

func newScheduleRecomputeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute ID",
		Short: "Recompute the next due date from the schedule's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveScheduleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			sched, err := app.Schedules.Recompute(ctx, id)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewScheduleView(sched), func() string {
				return fmt.Sprintf("Schedule %s next due %s",
					formatter.TruncID(sched.ID), formatter.DateOrDash(sched.NextDueDate))
			})
		},
	}
}
