// Command scorecard is the CLI for the credit scoring pipeline: it drives the
// daemon over IPC, scores applicants against the serving API, and manages
// configuration.
package main
