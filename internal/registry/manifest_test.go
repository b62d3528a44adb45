package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestLoadManifestMissingFile(t *testing.T) {
	m, err := LoadManifest(t.TempDir())
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.CurrentVersion != "" || len(m.History) != 0 {
		t.Fatalf("expected empty manifest, got %+v", m)
	}
}

func TestLoadManifestRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(ManifestPath(dir), []byte("::not yaml::\n\t"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := LoadManifest(dir); err == nil {
		t.Fatal("expected parse error for malformed manifest")
	}
}

func TestSaveAndLoadManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	promoted := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	in := &Manifest{
		CurrentVersion: "v20260820-120000",
		UpdatedAt:      promoted,
		History: []Entry{
			{Version: "v20260820-120000", PromotedAt: promoted, Trigger: "manual", Accuracy: 0.91, AUC: 0.87, RunID: 3},
		},
	}
	if err := SaveManifest(dir, in); err != nil {
		t.Fatalf("SaveManifest: %v", err)
	}

	out, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if out.CurrentVersion != in.CurrentVersion {
		t.Fatalf("current version mismatch: %q vs %q", out.CurrentVersion, in.CurrentVersion)
	}
	entry, ok := out.Current()
	if !ok {
		t.Fatal("expected a current history entry")
	}
	if entry.Accuracy != 0.91 || entry.AUC != 0.87 || entry.RunID != 3 {
		t.Fatalf("entry fields lost in round trip: %+v", entry)
	}

	// Atomic write must not leave the temp file behind.
	if _, err := os.Stat(ManifestPath(dir) + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp manifest file left behind")
	}
}

func TestPromoteCopiesArtifactsAndFlipsManifest(t *testing.T) {
	registryDir := t.TempDir()
	stagingDir := t.TempDir()

	model := writeArtifact(t, stagingDir, "model.json", `{"layers":[]}`)
	scaler := writeArtifact(t, stagingDir, "scaler.json", `{"mean":[]}`)

	entry := Entry{
		Version:    "v20260824-080000",
		PromotedAt: time.Date(2026, 8, 24, 8, 0, 0, 0, time.UTC),
		Trigger:    "scheduled",
		Accuracy:   0.9,
		AUC:        0.85,
		RunID:      7,
	}
	files := map[string]string{
		ModelFileName:  model,
		ScalerFileName: scaler,
	}
	if err := Promote(registryDir, entry, files); err != nil {
		t.Fatalf("Promote: %v", err)
	}

	for name, source := range files {
		copied, err := os.ReadFile(filepath.Join(VersionDir(registryDir, entry.Version), name))
		if err != nil {
			t.Fatalf("read promoted %s: %v", name, err)
		}
		original, err := os.ReadFile(source)
		if err != nil {
			t.Fatalf("read source %s: %v", name, err)
		}
		if string(copied) != string(original) {
			t.Fatalf("artifact %s content mismatch", name)
		}
	}

	m, err := LoadManifest(registryDir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.CurrentVersion != entry.Version {
		t.Fatalf("manifest should point at %s, got %s", entry.Version, m.CurrentVersion)
	}
	if !m.UpdatedAt.Equal(entry.PromotedAt) {
		t.Fatalf("manifest timestamp should match promotion time: %s", m.UpdatedAt)
	}
}

func TestPromoteKeepsHistoryAndDeduplicatesVersions(t *testing.T) {
	registryDir := t.TempDir()
	stagingDir := t.TempDir()
	model := writeArtifact(t, stagingDir, "model.json", `{}`)

	first := Entry{Version: "v-one", PromotedAt: time.Now().UTC(), RunID: 1}
	second := Entry{Version: "v-two", PromotedAt: time.Now().UTC(), RunID: 2}
	files := map[string]string{ModelFileName: model}

	if err := Promote(registryDir, first, files); err != nil {
		t.Fatalf("Promote first: %v", err)
	}
	if err := Promote(registryDir, second, files); err != nil {
		t.Fatalf("Promote second: %v", err)
	}
	// Re-promoting an existing version must replace its entry, not duplicate it.
	first.RunID = 9
	if err := Promote(registryDir, first, files); err != nil {
		t.Fatalf("Promote repeat: %v", err)
	}

	m, err := LoadManifest(registryDir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.CurrentVersion != "v-one" {
		t.Fatalf("expected v-one current after re-promotion, got %s", m.CurrentVersion)
	}
	if len(m.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(m.History))
	}
	entry, ok := m.Current()
	if !ok || entry.RunID != 9 {
		t.Fatalf("expected replaced entry with run 9, got %+v", entry)
	}
}

func TestPromoteRequiresVersion(t *testing.T) {
	if err := Promote(t.TempDir(), Entry{}, nil); err == nil {
		t.Fatal("expected error promoting an entry without a version")
	}
}

func TestPromoteFailsWhenArtifactMissing(t *testing.T) {
	entry := Entry{Version: "v-missing", PromotedAt: time.Now().UTC()}
	err := Promote(t.TempDir(), entry, map[string]string{ModelFileName: "/nonexistent/model.json"})
	if err == nil {
		t.Fatal("expected error when a staged artifact cannot be read")
	}
}
