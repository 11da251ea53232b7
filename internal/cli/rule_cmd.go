package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/duecycle/internal/cli/formatter"
	"github.com/alexanderramin/duecycle/internal/contract"
	"github.com/alexanderramin/duecycle/internal/domain"
)

type ruleCreatedView struct {
	Rule       contract.RuleView             `json:"rule"`
	Validation contract.ValidationReportView `json:"validation"`
}

func newRuleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage trigger rules",
	}

	cmd.AddCommand(
		newRuleCreateCmd(app),
		newRuleValidateCmd(app),
		newRuleListCmd(app),
		newRuleShowCmd(app),
		newRuleEvaluateCmd(app),
		newRuleLifecycleCmd(app, "activate", domain.LifecycleActive),
		newRuleLifecycleCmd(app, "deactivate", domain.LifecycleInactive),
	)

	return cmd
}

// ruleFlags binds the flags shared by "rule create" and "rule validate".
type ruleFlags struct {
	schedule   string
	ruleType   string
	config     string
	expression string
	event      string
	inactive   bool
}

func (f *ruleFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.schedule, "schedule", "", "Schedule ID or prefix")
	cmd.Flags().StringVar(&f.ruleType, "type", "", "FIXED, DYNAMIC_OFFSET, EVENT_BASED or CONDITIONAL")
	cmd.Flags().StringVar(&f.config, "config", "{}", "Rule config as JSON")
	cmd.Flags().StringVar(&f.expression, "expr", "", "Trigger expression, e.g. \"hours >= 100 AND site == 'north'\"")
	cmd.Flags().StringVar(&f.event, "event", "", "Linked event ID or prefix")
	cmd.Flags().BoolVar(&f.inactive, "inactive", false, "Create the rule inactive")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("type")
}

func (f *ruleFlags) toRule(cmd *cobra.Command, app *App) (*domain.TriggerRule, error) {
	ctx := cmd.Context()
	scheduleID, err := resolveScheduleID(ctx, app, f.schedule)
	if err != nil {
		return nil, err
	}
	req := contract.CreateRuleRequest{
		ScheduleID:        scheduleID,
		RuleType:          f.ruleType,
		RuleConfig:        json.RawMessage(f.config),
		TriggerExpression: f.expression,
	}
	if f.event != "" {
		// Unknown events are reported by validation, not rejected here.
		eventID, err := resolveEventID(ctx, app, f.event)
		if err != nil {
			eventID = f.event
		}
		req.EventID = &eventID
	}
	if f.inactive {
		active := false
		req.IsActive = &active
	}
	return req.ToRule()
}

func newRuleCreateCmd(app *App) *cobra.Command {
	var flags ruleFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Validate and store a trigger rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := flags.toRule(cmd, app)
			if err != nil {
				return err
			}
			rep, err := app.Rules.Create(cmd.Context(), rule)
			if err != nil {
				if len(rep.Issues) > 0 {
					_ = render(cmd, contract.NewValidationReportView(rep), func() string {
						return formatter.FormatValidationReport(rep)
					})
				}
				return err
			}

			view := ruleCreatedView{Rule: contract.NewRuleView(rule), Validation: contract.NewValidationReportView(rep)}
			return render(cmd, view, func() string {
				return fmt.Sprintf("Created rule %s, next execution %s\n%s",
					formatter.TruncID(rule.ID), formatter.DateOrDash(rule.NextExecutionDate), formatter.FormatValidationReport(rep))
			})
		},
	}
	flags.bind(cmd)

	return cmd
}

func newRuleValidateCmd(app *App) *cobra.Command {
	var flags ruleFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a rule without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := flags.toRule(cmd, app)
			if err != nil {
				return err
			}
			rep, err := app.Rules.Validate(cmd.Context(), rule)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewValidationReportView(rep), func() string {
				return formatter.FormatValidationReport(rep)
			})
		},
	}
	flags.bind(cmd)

	return cmd
}

func newRuleListCmd(app *App) *cobra.Command {
	var site, schedule, ruleType, active string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trigger rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if schedule != "" {
				id, err := resolveScheduleID(ctx, app, schedule)
				if err != nil {
					return err
				}
				schedule = id
			}
			f, err := contract.ParseRuleFilter(site, schedule, ruleType, active)
			if err != nil {
				return err
			}
			rules, err := app.Rules.List(ctx, f)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewRuleViews(rules), func() string {
				if len(rules) == 0 {
					return "No rules found."
				}
				return formatter.FormatRuleList(rules)
			})
		},
	}

	cmd.Flags().StringVar(&site, "site", "", "Filter by the schedule's site")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Filter by schedule ID or prefix")
	cmd.Flags().StringVar(&ruleType, "type", "", "Filter by rule type")
	cmd.Flags().StringVar(&active, "active", "", "Filter by active flag (true or false)")

	return cmd
}

func newRuleShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a rule with its schedule, event, state and latest execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			detail, err := app.Rules.Detail(ctx, id)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewRuleDetailView(detail), func() string {
				return formatter.FormatRuleDetail(detail)
			})
		},
	}
}

func newRuleEvaluateCmd(app *App) *cobra.Command {
	var execContext string

	cmd := &cobra.Command{
		Use:   "evaluate ID",
		Short: "Evaluate one rule now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			var vars map[string]any
			if execContext != "" {
				if err := json.Unmarshal([]byte(execContext), &vars); err != nil {
					return domain.NewValidationError("context", "must be a JSON object")
				}
			}
			res, err := app.Evaluation.EvaluateRule(ctx, id, vars)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewEvaluationResultView(*res), func() string {
				return formatter.FormatEvaluation(*res)
			})
		},
	}

	cmd.Flags().StringVar(&execContext, "context", "", "Evaluation context for CONDITIONAL rules, as a JSON object")

	return cmd
}

func newRuleLifecycleCmd(app *App, verb string, l domain.Lifecycle) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ID",
		Short: fmt.Sprintf("Set a rule %s", l),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveRuleID(ctx, app, args[0])
			if err != nil {
				return err
			}
			rule, err := app.Rules.SetLifecycle(ctx, id, l)
			if err != nil {
				return err
			}
			return render(cmd, contract.NewRuleView(rule), func() string {
				return fmt.Sprintf("Rule %s is now %s", formatter.TruncID(rule.ID), rule.Lifecycle)
			})
		},
	}
}
