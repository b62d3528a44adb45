// Package schedule fires periodic retraining runs and drift checks.
package schedule
