// Package workflow orchestrates pipeline runs through their stages.
//
// The manager polls the run store for runs whose status matches a configured
// stage start status, moves them to the processing status, executes the stage
// handler with a heartbeat loop, and advances them to the done status. Model
// building stages run in the foreground lane; publication runs in the
// background lane. Runs whose heartbeats expire are rolled back to the
// preceding stable status so another daemon instance can pick them up.
package workflow
