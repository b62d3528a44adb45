// Package preflight validates the runtime environment before the daemon
// starts: directory permissions, the serving bind address, dataset files,
// and the notification endpoint.
package preflight
