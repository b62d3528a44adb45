package publishing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const testDeployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: scorecard
spec:
  replicas: 2
  template:
    metadata:
      labels:
        app: scorecard
      annotations:
        prometheus.io/scrape: "true"
    spec:
      containers:
        - name: scorecardd
          image: credit-scoring-mlops:latest
`

func writeDeployment(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployment.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write deployment: %v", err)
	}
	return path
}

func readDeployment(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read deployment: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse deployment: %v", err)
	}
	return doc
}

func podAnnotations(t *testing.T, doc map[string]any) map[string]any {
	t.Helper()
	spec, _ := doc["spec"].(map[string]any)
	template, _ := spec["template"].(map[string]any)
	metadata, _ := template["metadata"].(map[string]any)
	annotations, _ := metadata["annotations"].(map[string]any)
	if annotations == nil {
		t.Fatal("deployment has no pod template annotations")
	}
	return annotations
}

func TestStampDeploymentSetsVersionAnnotation(t *testing.T) {
	path := writeDeployment(t, testDeployment)

	if err := StampDeployment(path, "20260824120000"); err != nil {
		t.Fatalf("StampDeployment: %v", err)
	}

	doc := readDeployment(t, path)
	annotations := podAnnotations(t, doc)
	if got := annotations["scorecard/model-version"]; got != "20260824120000" {
		t.Fatalf("model-version annotation = %v, want 20260824120000", got)
	}
	if got := annotations["prometheus.io/scrape"]; got != "true" {
		t.Fatalf("existing annotation lost, got %v", got)
	}
	spec, _ := doc["spec"].(map[string]any)
	if got := spec["replicas"]; got != 2 {
		t.Fatalf("replicas = %v, want 2", got)
	}
}

func TestStampDeploymentReplacesPreviousVersion(t *testing.T) {
	path := writeDeployment(t, testDeployment)

	if err := StampDeployment(path, "v-one"); err != nil {
		t.Fatalf("first stamp: %v", err)
	}
	if err := StampDeployment(path, "v-two"); err != nil {
		t.Fatalf("second stamp: %v", err)
	}

	annotations := podAnnotations(t, readDeployment(t, path))
	if got := annotations["scorecard/model-version"]; got != "v-two" {
		t.Fatalf("model-version annotation = %v, want v-two", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read deployment: %v", err)
	}
	if strings.Contains(string(data), "v-one") {
		t.Fatal("stale version left in manifest")
	}
}

func TestStampDeploymentCreatesAnnotationsBlock(t *testing.T) {
	bare := `apiVersion: apps/v1
kind: Deployment
spec:
  template:
    metadata:
      labels:
        app: scorecard
`
	path := writeDeployment(t, bare)
	if err := StampDeployment(path, "v-fresh"); err != nil {
		t.Fatalf("StampDeployment: %v", err)
	}
	annotations := podAnnotations(t, readDeployment(t, path))
	if got := annotations["scorecard/model-version"]; got != "v-fresh" {
		t.Fatalf("model-version annotation = %v, want v-fresh", got)
	}
}

func TestStampDeploymentMissingFile(t *testing.T) {
	if err := StampDeployment(filepath.Join(t.TempDir(), "missing.yaml"), "v1"); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestStampDeploymentWithoutPodTemplate(t *testing.T) {
	path := writeDeployment(t, "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm\n")
	if err := StampDeployment(path, "v1"); err == nil {
		t.Fatal("expected error when pod template metadata is missing")
	}
}
