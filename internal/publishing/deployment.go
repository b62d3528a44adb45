package publishing

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// versionAnnotation marks the deployment pod template with the model version
// currently promoted, so a rollout picks up the new artifact.
const versionAnnotation = "scorecard/model-version"

// StampDeployment sets the model-version annotation on the pod template of a
// Kubernetes deployment manifest. The file is rewritten atomically.
func StampDeployment(path, version string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read deployment manifest: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse deployment manifest: %w", err)
	}
	if len(doc.Content) == 0 {
		return fmt.Errorf("deployment manifest %s is empty", path)
	}

	metadata := resolvePath(doc.Content[0], "spec", "template", "metadata")
	if metadata == nil {
		return fmt.Errorf("deployment manifest %s has no pod template metadata", path)
	}
	annotations := mappingValue(metadata, "annotations")
	if annotations == nil {
		annotations = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		metadata.Content = append(metadata.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "annotations"},
			annotations,
		)
	}
	setMappingEntry(annotations, versionAnnotation, version)

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("render deployment manifest: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(path), ".deployment.yaml.tmp")
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write deployment manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace deployment manifest: %w", err)
	}
	return nil
}

func resolvePath(node *yaml.Node, keys ...string) *yaml.Node {
	current := node
	for _, key := range keys {
		current = mappingValue(current, key)
		if current == nil {
			return nil
		}
	}
	return current
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func setMappingEntry(node *yaml.Node, key, value string) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1].SetString(value)
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	valueNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str"}
	valueNode.SetString(value)
	node.Content = append(node.Content, keyNode, valueNode)
}
