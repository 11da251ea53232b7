package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/duecycle/internal/app"
)

// App holds the wired services used by CLI commands.
type App struct {
	*app.Services

	// Serve runs the HTTP API and the evaluation driver until ctx is done.
	// Nil when the binary was built without a server.
	Serve func(ctx context.Context) error
}

// NewRootCmd creates the top-level "duecycle" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "duecycle",
		Short:         "Compliance obligation recurrence and deadline scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Print machine-readable JSON instead of tables")

	root.AddCommand(
		newScheduleCmd(app),
		newDeadlineCmd(app),
		newEventCmd(app),
		newRuleCmd(app),
		newEvaluateCmd(app),
		newHistoryCmd(app),
		newHoursCmd(app),
		newServeCmd(app),
	)

	return root
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// render prints view as indented JSON under --json, otherwise the text
// produced by pretty.
func render(cmd *cobra.Command, view any, pretty func() string) error {
	out := cmd.OutOrStdout()
	if wantJSON(cmd) {
		return writeJSON(out, view)
	}
	_, err := fmt.Fprintln(out, pretty())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
