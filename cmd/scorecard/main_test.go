package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/daemon"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/ipc"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *pipeline.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.RegistryDir = filepath.Join(base, "registry")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ReportsDir = filepath.Join(base, "reports")
	cfgVal.Monitoring.ReferenceDataPath = filepath.Join(base, "data", "credit_data.csv")
	cfgVal.Monitoring.CurrentDataPath = filepath.Join(base, "data", "current_data.csv")
	cfg := &cfgVal
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	store, err := pipeline.Open(cfg)
	if err != nil {
		t.Fatalf("pipeline.Open: %v", err)
	}

	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, logger)

	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	time.Sleep(20 * time.Millisecond)

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestCLIRunCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "trigger"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run trigger: %v", err)
	}
	requireContains(t, out, "queued")

	out, _, err = runCLI(t, []string{"run", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run list: %v", err)
	}
	requireContains(t, out, "pending")
	requireContains(t, out, "manual")

	out, _, err = runCLI(t, []string{"run", "show", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run show: %v", err)
	}
	requireContains(t, out, "Run #1")
	requireContains(t, out, "pending")

	out, _, err = runCLI(t, []string{"run", "stop", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run stop: %v", err)
	}
	requireContains(t, out, "1 run(s) stopped")

	out, _, err = runCLI(t, []string{"run", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run retry: %v", err)
	}
	requireContains(t, out, "1 run(s) queued for retry")

	out, _, err = runCLI(t, []string{"run", "health"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run health: %v", err)
	}
	requireContains(t, out, "total")

	out, _, err = runCLI(t, []string{"run", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run clear: %v", err)
	}
	requireContains(t, out, "1 run(s) removed")

	out, _, err = runCLI(t, []string{"run", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run list after clear: %v", err)
	}
	requireContains(t, out, "No pipeline runs found")
}

func TestCLIRunShowInvalidID(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"run", "show", "abc"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for invalid run id")
	}
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Environment")
	requireContains(t, out, "Daemon")
	requireContains(t, out, "Workflow running")
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "not configured")
}

func TestConfigInit(t *testing.T) {
	env := setupCLITestEnv(t)

	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error when config already exists without --overwrite")
	}
}

func TestConfigShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, "[training]")
	requireContains(t, out, env.cfg.Paths.DataDir)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCLI(t, []string{"version"}, "", "")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "scorecard 0.1.0")
}
