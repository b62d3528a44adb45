// Package notifications publishes pipeline lifecycle events to ntfy.
package notifications
