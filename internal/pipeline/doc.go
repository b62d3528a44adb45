// Package pipeline persists model pipeline runs and their lifecycle in SQLite.
// A run moves through training, conversion, quantization, evaluation, and
// publication statuses; the store is the single source of truth the workflow
// manager polls.
package pipeline
