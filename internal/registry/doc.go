// Package registry manages the promoted-model store: versioned artifact
// directories indexed by an atomically replaced YAML manifest.
package registry
