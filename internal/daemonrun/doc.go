// Package daemonrun wires the daemon process: workflow stages, IPC socket,
// scoring HTTP server, registry watcher, and retraining scheduler.
package daemonrun
