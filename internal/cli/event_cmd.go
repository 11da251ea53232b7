package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/duecycle/internal/cli/formatter"
	"github.com/alexanderramin/duecycle/internal/contract"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
)

func newEventCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage recurrence events",
	}

	cmd.AddCommand(
		newEventCreateCmd(app),
		newEventListCmd(app),
		newEventDeactivateCmd(app),
	)

	return cmd
}

func newEventCreateCmd(app *App) *cobra.Command {
	var req contract.CreateEventRequest
	var metadata string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record an event that EVENT_BASED rules can offset from",
		RunE: func(cmd *cobra.Command, args []string) error {
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &req.Metadata); err != nil {
					return domain.NewValidationError("metadata", "must be a JSON object")
				}
			}
			ev, err := req.ToEvent()
			if err != nil {
				return err
			}
			if err := app.Events.Create(cmd.Context(), ev); err != nil {
				return err
			}
			return render(cmd, contract.NewEventView(ev), func() string {
				return fmt.Sprintf("Created event %s %s on %s",
					formatter.TruncID(ev.ID), formatter.Bold(ev.Name), ev.EventDate.Format(domain.DateLayout))
			})
		},
	}

	cmd.Flags().StringVar(&req.EventType, "type", "", "Event type, e.g. permit_renewal")
	cmd.Flags().StringVar(&req.Name, "name", "", "Event name")
	cmd.Flags().StringVar(&req.EventDate, "date", "", "Event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "Metadata as a JSON object")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func newEventListCmd(app *App) *cobra.Command {
	var eventType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := app.Events.List(cmd.Context(), repository.EventFilter{EventType: eventType})
			if err != nil {
				return err
			}
			views := make([]contract.EventView, 0, len(events))
			for _, e := range events {
				views = append(views, contract.NewEventView(e))
			}
			return render(cmd, views, func() string {
				if len(events) == 0 {
					return "No events found."
				}
				return formatter.FormatEventList(events)
			})
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "Filter by event type")

	return cmd
}

func newEventDeactivateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate ID",
		Short: "Deactivate an event; rules linked to it go dormant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveEventID(ctx, app, args[0])
			if err != nil {
				return err
			}
			ev, err := app.Events.GetByID(ctx, id)
			if err != nil {
				return err
			}
			ev.Lifecycle = domain.LifecycleInactive
			if err := app.Events.Update(ctx, ev); err != nil {
				return err
			}
			return render(cmd, contract.NewEventView(ev), func() string {
				return fmt.Sprintf("Deactivated event %s", formatter.TruncID(ev.ID))
			})
		},
	}
}
