package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Artifact file names inside a registry version directory.
const (
	ModelFileName     = "credit_scoring_model.json"
	QuantizedFileName = "credit_scoring_model_quantized.json"
	ScalerFileName    = "scaler.json"
	EvalFileName      = "evaluation.json"

	manifestFileName = "manifest.yaml"
)

// Entry records one promoted model version.
type Entry struct {
	Version    string    `yaml:"version"`
	PromotedAt time.Time `yaml:"promoted_at"`
	Trigger    string    `yaml:"trigger"`
	Accuracy   float64   `yaml:"accuracy"`
	AUC        float64   `yaml:"auc"`
	RunID      int64     `yaml:"run_id"`
}

// Manifest is the registry index. CurrentVersion names the version directory
// serving should load.
type Manifest struct {
	CurrentVersion string    `yaml:"current_version"`
	UpdatedAt      time.Time `yaml:"updated_at"`
	History        []Entry   `yaml:"history"`
}

// Current returns the history entry for the current version.
func (m *Manifest) Current() (Entry, bool) {
	for _, e := range m.History {
		if e.Version == m.CurrentVersion {
			return e, true
		}
	}
	return Entry{}, false
}

// LoadManifest reads the registry index; a missing file yields an empty
// manifest.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, manifestFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// SaveManifest writes the index atomically so a concurrent reader never sees
// a torn file.
func SaveManifest(dir string, m *Manifest) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := filepath.Join(dir, manifestFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, manifestFileName)); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// ManifestPath returns the index file location inside dir.
func ManifestPath(dir string) string {
	return filepath.Join(dir, manifestFileName)
}

// VersionDir returns the directory holding one promoted version's artifacts.
func VersionDir(dir, version string) string {
	return filepath.Join(dir, version)
}

// Promote copies the artifact files into the registry under the entry's
// version and flips the manifest's current version. Artifacts land before the
// manifest updates, so readers switching on the manifest always find complete
// files.
func Promote(dir string, entry Entry, files map[string]string) error {
	if entry.Version == "" {
		return fmt.Errorf("entry has no version")
	}
	versionDir := VersionDir(dir, entry.Version)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("create version directory: %w", err)
	}
	for name, source := range files {
		if err := copyFile(source, filepath.Join(versionDir, name)); err != nil {
			return fmt.Errorf("stage %s: %w", name, err)
		}
	}

	manifest, err := LoadManifest(dir)
	if err != nil {
		return err
	}
	history := manifest.History[:0]
	for _, e := range manifest.History {
		if e.Version != entry.Version {
			history = append(history, e)
		}
	}
	manifest.History = append(history, entry)
	manifest.CurrentVersion = entry.Version
	manifest.UpdatedAt = entry.PromotedAt
	return SaveManifest(dir, manifest)
}

func copyFile(source, target string) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}
