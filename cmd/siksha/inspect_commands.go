package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"siksha/internal/api"
	"siksha/internal/deps"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List active runs and recent lesson records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Runs(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Runs) == 0 {
					fmt.Fprintln(out, "No lessons recorded")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Folder", "Active", "Status", "Progress", "Message", "Updated"},
					buildRunRows(resp.Runs, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func buildRunRows(runs []api.RunInfo, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		updated := "-"
		if run.Progress.UpdatedAt != nil {
			updated = now.Sub(*run.Progress.UpdatedAt).Round(time.Second).String() + " ago"
		}
		rows = append(rows, []string{
			run.Folder,
			yesNo(run.Active),
			run.Progress.Status,
			strconv.Itoa(run.Progress.Progress) + "%",
			run.Progress.Message,
			updated,
		})
	}
	return rows
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show daemon, stage and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.DaemonStatus(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				runningKind := statusOK
				if !status.Running {
					runningKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Running", runningKind, fmt.Sprintf("pid %d", status.PID), colorize))
				fmt.Fprintln(out, renderStatusLine("Output", statusInfo, status.OutputDir, colorize))
				fmt.Fprintln(out, renderStatusLine("Progress store", statusInfo, status.ProgressBackend, colorize))
				fmt.Fprintln(out, renderStatusLine("Active runs", statusInfo, strconv.Itoa(status.ActiveRuns), colorize))
				summary := fmt.Sprintf("%d finished, %d failed", status.Workflow.Finished, status.Workflow.Failed)
				fmt.Fprintln(out, renderStatusLine("Runs", statusInfo, summary, colorize))
				if status.Workflow.LastError != "" {
					fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Stages", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, stage := range status.Workflow.StageHealth {
					kind := statusOK
					detail := strings.Join(stage.Providers, ", ")
					switch {
					case !stage.Ready:
						kind, detail = statusError, stage.Detail
					case stage.Degraded:
						kind, detail = statusWarn, stage.Detail
					}
					fmt.Fprintln(out, renderStatusLine(stage.Name, kind, detail, colorize))
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, dep := range status.Dependencies {
					fmt.Fprintln(out, renderStatusLine(dep.Name, dependencyKind(dep.Available, dep.Optional), dependencyDetail(dep), colorize))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func dependencyDetail(dep api.DependencyStatus) string {
	if dep.Available {
		if dep.Version != "" {
			return dep.Version
		}
		return "Ready (command: " + dep.Command + ")"
	}
	if detail := strings.TrimSpace(dep.Detail); detail != "" {
		return detail
	}
	return "not available"
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external programs locally without a daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := deps.Check(cmd.Context(), deps.Requirements(cfg))
			if jsonOut {
				return writeJSON(cmd, api.FromDependencies(results))
			}
			rows := make([][]string, 0, len(results))
			for _, dep := range results {
				required := "required"
				if dep.Optional {
					required = "optional"
				}
				rows = append(rows, []string{dep.Name, dep.Command, required, yesNo(dep.Available), dependencyDetail(api.DependencyStatus{
					Command:   dep.Command,
					Available: dep.Available,
					Version:   dep.Version,
					Detail:    dep.Detail,
				})})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable([]string{"Name", "Command", "Kind", "Available", "Detail"}, rows, nil))
			if missing := deps.MissingRequired(results); len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
