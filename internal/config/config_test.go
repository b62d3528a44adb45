package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if !filepath.IsAbs(cfg.Paths.StateDir) {
		t.Fatalf("normalize should expand state dir, got %q", cfg.Paths.StateDir)
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("file does not exist, exists should be false")
	}
	if resolved != path {
		t.Fatalf("resolved path mismatch: %q vs %q", resolved, path)
	}
	if cfg.Training.Epochs != defaultEpochs {
		t.Fatalf("expected default epochs %d, got %d", defaultEpochs, cfg.Training.Epochs)
	}
	if cfg.Serving.Bind != defaultServingBind {
		t.Fatalf("expected default bind, got %q", cfg.Serving.Bind)
	}
}

func TestLoadAppliesOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[training]
epochs = 7
hidden_sizes = [32, 16]

[serving]
bind = "127.0.0.1:9001"

[logging]
format = "FANCY"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true for a present file")
	}
	if cfg.Training.Epochs != 7 {
		t.Fatalf("override lost: epochs %d", cfg.Training.Epochs)
	}
	if len(cfg.Training.HiddenSizes) != 2 || cfg.Training.HiddenSizes[0] != 32 {
		t.Fatalf("hidden sizes override lost: %v", cfg.Training.HiddenSizes)
	}
	if cfg.Serving.Bind != "127.0.0.1:9001" {
		t.Fatalf("bind override lost: %q", cfg.Serving.Bind)
	}
	// Unknown format falls back; level is lowercased.
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console fallback, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased level, got %q", cfg.Logging.Level)
	}
	// Unset sections keep their defaults.
	if cfg.Evaluation.MinAUC != defaultMinAUC {
		t.Fatalf("expected default min AUC, got %f", cfg.Evaluation.MinAUC)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dropout", "[training]\ndropout = 1.5\n"},
		{"fractions", "[training]\nval_fraction = 0.6\ntest_fraction = 0.5\n"},
		{"thresholds", "[training]\nrisk_thresholds = [0.7, 0.3]\n"},
		{"accuracy", "[evaluation]\nmin_accuracy = 1.5\n"},
		{"bind", "[serving]\nbind = \"localhost\"\n"},
		{"ks_alpha", "[monitoring]\nks_alpha = 1.2\n"},
		{"heartbeat", "[workflow]\nheartbeat_interval = 30\nheartbeat_timeout = 10\n"},
		{"dedup", "[notifications]\ndedup_window_seconds = -5\n"},
		{"syntax", "not toml at all [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := Load(path); err == nil {
				t.Fatalf("expected %s config to be rejected", tc.name)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[training]") {
		t.Fatal("sample config should document the training section")
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample config should exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	expanded, err := ExpandPath("~/scorecard/config.toml")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if expanded != filepath.Join(home, "scorecard", "config.toml") {
		t.Fatalf("unexpected expansion: %q", expanded)
	}

	bare, err := ExpandPath("~")
	if err != nil {
		t.Fatalf("ExpandPath ~: %v", err)
	}
	if bare != home {
		t.Fatalf("expected home for bare tilde, got %q", bare)
	}

	empty, err := ExpandPath("")
	if err != nil {
		t.Fatalf("ExpandPath empty: %v", err)
	}
	if empty != "" {
		t.Fatalf("empty path should stay empty, got %q", empty)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.StateDir = "/var/lib/scorecard/state"
	cfg.Paths.RegistryDir = "/var/lib/scorecard/registry"

	if got := cfg.SocketPath(); got != "/var/lib/scorecard/state/scorecardd.sock" {
		t.Fatalf("unexpected socket path %q", got)
	}
	if got := cfg.LockPath(); got != "/var/lib/scorecard/state/scorecardd.lock" {
		t.Fatalf("unexpected lock path %q", got)
	}
	if got := cfg.ManifestPath(); got != "/var/lib/scorecard/registry/manifest.yaml" {
		t.Fatalf("unexpected manifest path %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfg.Paths.RegistryDir = filepath.Join(base, "registry")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReportsDir = filepath.Join(base, "reports")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.StateDir, cfg.Paths.ReportsDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %s not created: %v", dir, err)
		}
	}
}
