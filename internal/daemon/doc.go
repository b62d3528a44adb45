// Package daemon ties the run store, workflow manager, drift checks, and
// notifications into the single-instance background service.
package daemon
