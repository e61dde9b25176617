package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/tui"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

func newTypesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the available document types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := a.orch.Registry()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tSTEPS\tTITLE")
			for _, name := range registry.List() {
				def, err := registry.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", name, def.Len(), def.Title)
			}
			return w.Flush()
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [type]",
		Short: "List stored drafts, most recently updated first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var documentType string
			if len(args) == 1 {
				documentType = args[0]
			}
			records, err := a.orch.List(cmd.Context(), documentType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No drafts")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tUPDATED")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID, rec.DocumentType, rec.Status, rec.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newNewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new <type>",
		Short: "Start filling a new document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.orch.Start(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.interact(cmd, ctrl)
		},
	}
}

func newResumeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue a stored draft from its first incomplete step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.orch.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.interact(cmd, ctrl)
		},
	}
}

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <id>",
		Short: "Validate a stored draft without opening it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.orch.Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			def, err := a.orch.Registry().Get(report.Record.DocumentType)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rec := report.Record
			fmt.Fprintf(out, "Draft %s (%s, %s)\n", rec.ID, rec.DocumentType, rec.Status)
			if report.Ready {
				fmt.Fprintln(out, "Ready to finalize")
				return nil
			}
			fmt.Fprintln(out, "Not ready")
			labels := make([]string, len(report.ErroredSteps))
			for i, ordinal := range report.ErroredSteps {
				labels[i] = stepLabel(def, ordinal)
			}
			fmt.Fprintf(out, "Steps needing attention: %s\n", strings.Join(labels, ", "))
			for _, e := range report.Errors {
				label := string(e.Field)
				if field, ok := def.Field(e.Field); ok {
					label = field.DisplayLabel()
				}
				fmt.Fprintf(out, "  %s: %s\n", label, e.Message)
			}
			fmt.Fprintf(out, "Resume at step %s\n", stepLabel(def, report.ResumeStep))
			return nil
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.orch.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted draft %s\n", args[0])
			return nil
		},
	}
}

func newNotificationsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "Print and clear background failures recorded by the sqlite store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.durable == nil {
				return errors.New("notifications are only recorded by the sqlite driver")
			}
			pending, err := a.durable.store.DrainNotifications(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No notifications")
				return nil
			}
			for _, n := range pending {
				fmt.Fprintf(out, "%s  %s  %s", n.At.Local().Format(time.DateTime), n.Kind, n.Message)
				if n.DraftID != "" {
					fmt.Fprintf(out, " (draft %s)", n.DraftID)
				}
				if n.Err != "" {
					fmt.Fprintf(out, ": %s", n.Err)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// interact runs the prompt loop, then waits for background saves so their
// failures are printed before the command exits.
func (a *app) interact(cmd *cobra.Command, ctrl *wizard.Controller) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	driver := a.driver
	if driver == nil {
		driver = tui.NewSurveyDriver(out)
	}
	runner, err := tui.NewRunner(ctrl,
		tui.WithPromptDriver(driver),
		tui.WithOutbox(a.outbox),
		tui.WithLogger(a.logger))
	if err != nil {
		ctrl.Close()
		return err
	}

	res, runErr := runner.Run(ctx)
	ctrl.Close()
	ctrl.Wait()
	runner.Flush(context.WithoutCancel(ctx))
	if runErr != nil && !errors.Is(runErr, tui.ErrAborted) {
		return runErr
	}
	printOutcome(out, res)
	return nil
}

func printOutcome(out io.Writer, res tui.Result) {
	if res.DraftID == "" {
		fmt.Fprintf(out, "Session %s\n", res.Outcome)
		return
	}
	fmt.Fprintf(out, "Session %s (draft %s)\n", res.Outcome, res.DraftID)
}

func stepLabel(def *steps.Definition, ordinal int) string {
	step, ok := def.Step(ordinal)
	if !ok {
		return fmt.Sprint(ordinal + 1)
	}
	title := step.Title
	if title == "" {
		title = step.ID
	}
	return fmt.Sprintf("%d (%s)", ordinal+1, title)
}
