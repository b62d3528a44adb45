// Package serving exposes promoted models over HTTP: single and batch
// scoring, health and model metadata, and prometheus metrics. Models hot
// reload when the registry manifest changes.
package serving
