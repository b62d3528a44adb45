package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/daemonctl"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/ipc"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scorecard daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			if strings.TrimSpace(result.Message) != "" {
				fmt.Fprintln(stdout, result.Message)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the scorecard daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping daemon workflow...")
			}
			if result.Terminated && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the scorecard daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartLogLevel),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.Terminated && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			if strings.TrimSpace(result.Start.Message) != "" {
				fmt.Fprintln(stdout, result.Start.Message)
			}
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, environment, and run status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stdout := cmd.OutOrStdout()
			printer := newStatusPrinter(stdout)

			var daemonStatus *ipc.StatusResponse
			dialErr := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				daemonStatus = resp
				return nil
			})

			if statusJSON {
				payload := map[string]any{
					"daemon":    daemonStatus,
					"preflight": preflight.RunAll(cmd.Context(), cfg),
				}
				if dialErr != nil {
					payload["daemon_error"] = dialErr.Error()
				}
				return writeJSON(cmd, payload)
			}

			printer.section("Environment")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				printer.line(result.Name, kind, result.Detail)
			}
			printer.blank()

			printer.section("Daemon")
			if dialErr != nil {
				printer.line("Daemon", statusError, dialErr.Error())
				return nil
			}

			runningKind := statusWarn
			if daemonStatus.Running {
				runningKind = statusOK
			}
			printer.line("Workflow running", runningKind, yesNo(daemonStatus.Running))
			printer.line("PID", statusInfo, fmt.Sprintf("%d", daemonStatus.PID))
			printer.line("Run database", statusInfo, daemonStatus.RunDBPath)
			if daemonStatus.LastError != "" {
				printer.line("Last error", statusError, daemonStatus.LastError)
			}
			for _, health := range daemonStatus.StageHealth {
				kind := statusOK
				if !health.Ready {
					kind = statusWarn
				}
				printer.line("Stage "+health.Name, kind, health.Detail)
			}
			printer.blank()

			printer.section("Run Status")
			rows := buildRunStatsRows(daemonStatus.RunStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No pipeline runs recorded")
				return nil
			}
			fmt.Fprintln(stdout, renderTable(countColumns("Status"), rows))
			if daemonStatus.LastRun != nil {
				fmt.Fprintf(stdout, "Last run: #%d (%s) %s\n",
					daemonStatus.LastRun.ID, daemonStatus.LastRun.ModelVersion, daemonStatus.LastRun.Status)
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: logLevel}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}

func buildRunStatsRows(stats map[string]int) [][]string {
	names := make([]string, 0, len(stats))
	for name, count := range stats {
		if count == 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%d", stats[name])})
	}
	return rows
}
