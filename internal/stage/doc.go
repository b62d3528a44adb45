// Package stage defines the handler contract pipeline stages implement for the
// workflow manager.
package stage
