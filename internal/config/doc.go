// Package config loads, normalizes, and validates TOML configuration for the
// scorecard daemon and CLI.
package config
