package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/ipc"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Manage training pipeline runs",
	}

	runCmd.AddCommand(newRunTriggerCommand(ctx))
	runCmd.AddCommand(newRunListCommand(ctx))
	runCmd.AddCommand(newRunShowCommand(ctx))
	runCmd.AddCommand(newRunRetryCommand(ctx))
	runCmd.AddCommand(newRunStopCommand(ctx))
	runCmd.AddCommand(newRunRemoveCommand(ctx))
	runCmd.AddCommand(newRunClearCommand(ctx))
	runCmd.AddCommand(newRunResetCommand(ctx))
	runCmd.AddCommand(newRunHealthCommand(ctx))

	return runCmd
}

func newRunTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Queue a new training pipeline run",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TriggerRun(pipeline.TriggerManual)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Run #%d queued (model version %s)\n", resp.Run.ID, resp.Run.ModelVersion)
				return nil
			})
		},
	}
}

func newRunListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunList(statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Runs)
				}
				if len(resp.Runs) == 0 {
					fmt.Fprintln(stdout, "No pipeline runs found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Runs))
				for _, run := range resp.Runs {
					rows = append(rows, []string{
						strconv.FormatInt(run.ID, 10),
						run.ModelVersion,
						run.Trigger,
						run.Status,
						fmt.Sprintf("%.0f%%", run.ProgressPercent),
						run.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(stdout, renderTable(runListColumns, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by run status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output runs as JSON")
	return cmd
}

func newRunShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunDescribe(id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Run)
				}
				run := resp.Run
				fmt.Fprintf(stdout, "Run #%d\n", run.ID)
				fmt.Fprintf(stdout, "  Model version: %s\n", run.ModelVersion)
				fmt.Fprintf(stdout, "  Trigger:       %s\n", run.Trigger)
				fmt.Fprintf(stdout, "  Status:        %s\n", run.Status)
				if run.ProgressStage != "" {
					fmt.Fprintf(stdout, "  Progress:      %s %.0f%% %s\n", run.ProgressStage, run.ProgressPercent, run.ProgressMessage)
				}
				if run.DataPath != "" {
					fmt.Fprintf(stdout, "  Data:          %s\n", run.DataPath)
				}
				if run.ModelFile != "" {
					fmt.Fprintf(stdout, "  Model:         %s\n", run.ModelFile)
				}
				if run.QuantizedFile != "" {
					fmt.Fprintf(stdout, "  Quantized:     %s\n", run.QuantizedFile)
				}
				if run.MetricsJSON != "" {
					fmt.Fprintf(stdout, "  Metrics:       %s\n", run.MetricsJSON)
				}
				if run.EvalJSON != "" {
					fmt.Fprintf(stdout, "  Evaluation:    %s\n", run.EvalJSON)
				}
				if run.NeedsReview {
					fmt.Fprintf(stdout, "  Needs review:  %s\n", run.ReviewReason)
				}
				if run.ErrorMessage != "" {
					fmt.Fprintf(stdout, "  Error:         %s\n", run.ErrorMessage)
				}
				fmt.Fprintf(stdout, "  Created:       %s\n", run.CreatedAt.Local().Format(time.DateTime))
				fmt.Fprintf(stdout, "  Updated:       %s\n", run.UpdatedAt.Local().Format(time.DateTime))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output run as JSON")
	return cmd
}

func newRunRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry failed or review runs (all eligible when no IDs given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRunIDs(args)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunRetry(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%d run(s) queued for retry\n", resp.Updated)
				return nil
			})
		},
	}
}

func newRunStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id...>",
		Short: "Stop in-flight runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRunIDs(args)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunStop(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%d run(s) stopped\n", resp.Updated)
				return nil
			})
		},
	}
}

func newRunRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a run record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRunID(args[0])
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunRemove(id)
				if err != nil {
					return err
				}
				if resp.Removed {
					fmt.Fprintf(stdout, "Run #%d removed\n", id)
				} else {
					fmt.Fprintf(stdout, "Run #%d not found\n", id)
				}
				return nil
			})
		},
	}
}

func newRunClearCommand(ctx *commandContext) *cobra.Command {
	var completedOnly bool
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear run records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if completedOnly && failedOnly {
				return fmt.Errorf("--completed and --failed are mutually exclusive")
			}
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				var removed int64
				switch {
				case completedOnly:
					resp, err := client.RunClearCompleted()
					if err != nil {
						return err
					}
					removed = resp.Removed
				case failedOnly:
					resp, err := client.RunClearFailed()
					if err != nil {
						return err
					}
					removed = resp.Removed
				default:
					resp, err := client.RunClear()
					if err != nil {
						return err
					}
					removed = resp.Removed
				}
				fmt.Fprintf(stdout, "%d run(s) removed\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only clear completed runs")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only clear failed runs")
	return cmd
}

func newRunResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Roll stuck processing runs back to their stable statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunReset()
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "%d run(s) reset\n", resp.Updated)
				return nil
			})
		},
	}
}

func newRunHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show run store health",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				health, err := client.RunHealth()
				if err != nil {
					return err
				}
				dbHealth, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"runs": health, "database": dbHealth})
				}
				printer := newStatusPrinter(stdout)
				rows := [][]string{
					{"total", strconv.Itoa(health.Total)},
					{"pending", strconv.Itoa(health.Pending)},
					{"processing", strconv.Itoa(health.Processing)},
					{"review", strconv.Itoa(health.Review)},
					{"failed", strconv.Itoa(health.Failed)},
					{"completed", strconv.Itoa(health.Completed)},
				}
				fmt.Fprintln(stdout, renderTable(countColumns("Runs"), rows))

				dbKind := statusOK
				dbDetail := dbHealth.DBPath
				if dbHealth.Error != "" {
					dbKind = statusError
					dbDetail = dbHealth.Error
				} else if !dbHealth.IntegrityCheck || len(dbHealth.MissingColumns) > 0 {
					dbKind = statusWarn
					dbDetail = fmt.Sprintf("%s (missing columns: %s)", dbHealth.DBPath, strings.Join(dbHealth.MissingColumns, ", "))
				}
				printer.line("Database", dbKind, dbDetail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output health as JSON")
	return cmd
}

func parseRunID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", value)
	}
	return id, nil
}

func parseRunIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseRunID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
