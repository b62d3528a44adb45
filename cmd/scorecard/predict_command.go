package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/serving"
)

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var batch bool

	cmd := &cobra.Command{
		Use:   "predict <file.json|->",
		Short: "Score applicants against the serving API",
		Long: "Score applicants against the serving API. The input file holds a single\n" +
			"applicant object, or with --batch a JSON array of applicants. Use - to\n" +
			"read from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			payload, err := readInput(args[0])
			if err != nil {
				return err
			}

			var body []byte
			path := "/predict"
			if batch {
				var applicants []serving.Applicant
				if err := json.Unmarshal(payload, &applicants); err != nil {
					return fmt.Errorf("parse applicants: %w", err)
				}
				body, err = json.Marshal(serving.BatchRequest{Applications: applicants})
				if err != nil {
					return err
				}
				path = "/predict/batch"
			} else {
				var applicant serving.Applicant
				if err := json.Unmarshal(payload, &applicant); err != nil {
					return fmt.Errorf("parse applicant: %w", err)
				}
				body, err = json.Marshal(applicant)
				if err != nil {
					return err
				}
			}

			result, err := postServingAPI(cmd, cfg.Serving.Bind, path, body)
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().BoolVar(&batch, "batch", false, "Score a JSON array of applicants via the batch endpoint")
	return cmd
}

func newModelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Show the currently served model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			result, err := getServingAPI(cmd, cfg.Serving.Bind, "/model/info")
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
}

func readInput(arg string) ([]byte, error) {
	if strings.TrimSpace(arg) == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func servingURL(bind, path string) string {
	host := strings.TrimSpace(bind)
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + path
}

func postServingAPI(cmd *cobra.Command, bind, path string, body []byte) (any, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, servingURL(bind, path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return doServingRequest(req)
}

func getServingAPI(cmd *cobra.Command, bind, path string) (any, error) {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, servingURL(bind, path), nil)
	if err != nil {
		return nil, err
	}
	return doServingRequest(req)
}

func doServingRequest(req *http.Request) (any, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call serving API: %w (is the daemon running?)", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read serving response: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("serving API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("serving API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return decoded, nil
}
