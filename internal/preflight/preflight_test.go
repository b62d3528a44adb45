package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBindAddress(t *testing.T) {
	cases := []struct {
		bind string
		ok   bool
	}{
		{"127.0.0.1:8080", true},
		{"0.0.0.0:9000", true},
		{":8080", true},
		{"", false},
		{"localhost", false},
		{"127.0.0.1:notaport", false},
		{"127.0.0.1:70000", false},
	}
	for _, tc := range cases {
		result := CheckBindAddress("bind", tc.bind)
		if result.Passed != tc.ok {
			t.Errorf("CheckBindAddress(%q) passed=%v detail=%s", tc.bind, result.Passed, result.Detail)
		}
	}
}

func TestCheckDataFile_MissingOptional(t *testing.T) {
	result := CheckDataFile("data", filepath.Join(t.TempDir(), "missing.csv"), true)
	if !result.Passed {
		t.Fatalf("expected optional missing file to pass, got: %s", result.Detail)
	}
}

func TestCheckDataFile_MissingRequired(t *testing.T) {
	result := CheckDataFile("data", filepath.Join(t.TempDir(), "missing.csv"), false)
	if result.Passed {
		t.Fatal("expected required missing file to fail")
	}
}

func TestCheckDataFile_Present(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDataFile("data", path, false)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/scorecard")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/scorecard")
	if result.Passed {
		t.Fatal("expected failure for 500 response")
	}
}

func TestCheckNtfy_MissingTopic(t *testing.T) {
	result := CheckNtfy(context.Background(), "")
	if result.Passed {
		t.Fatal("expected failure for missing topic")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfg.Paths.RegistryDir = filepath.Join(base, "registry")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReportsDir = filepath.Join(base, "reports")
	cfg.Monitoring.ReferenceDataPath = filepath.Join(base, "data", "credit_data.csv")
	cfg.Monitoring.CurrentDataPath = ""
	cfg.Notifications.NtfyTopic = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	// Six directories + bind + reference dataset.
	if len(results) != 8 {
		t.Fatalf("expected 8 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesNtfyWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfg.Paths.RegistryDir = filepath.Join(base, "registry")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReportsDir = filepath.Join(base, "reports")
	cfg.Monitoring.ReferenceDataPath = ""
	cfg.Monitoring.CurrentDataPath = ""
	cfg.Notifications.NtfyTopic = srv.URL + "/scorecard"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(context.Background(), &cfg)
	found := false
	for _, r := range results {
		if r.Name == "Notifications (ntfy)" {
			found = true
			if !r.Passed {
				t.Errorf("ntfy check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected ntfy check in results")
	}
}
