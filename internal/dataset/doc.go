// Package dataset generates, loads, validates, splits, and standardizes
// credit application data.
package dataset
