package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/ipc"
)

func newDriftCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Run a drift check against the reference dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DriftCheck()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}

				rows := make([][]string, 0, len(resp.Columns))
				for _, col := range resp.Columns {
					drifted := ""
					if col.Drifted {
						drifted = "DRIFT"
					}
					rows = append(rows, []string{
						col.Column,
						fmt.Sprintf("%.4f", col.KSStatistic),
						fmt.Sprintf("%.4f", col.KSPValue),
						fmt.Sprintf("%.4f", col.PSI),
						drifted,
					})
				}
				fmt.Fprintln(stdout, renderTable(driftReportColumns, rows))

				fmt.Fprintf(stdout, "Drifted features: %d/%d (share %.2f)\n",
					resp.DriftedColumns, len(resp.Columns), resp.DriftShare)
				if resp.ShouldRetrain {
					fmt.Fprintln(stdout, "Retraining threshold crossed; a retraining run has been queued")
				} else if resp.DriftDetected {
					fmt.Fprintln(stdout, "Drift detected but below the retraining threshold")
				} else {
					fmt.Fprintln(stdout, "No drift detected")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output drift metrics as JSON")
	return cmd
}
