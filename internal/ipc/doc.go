// Package ipc implements JSON-RPC daemon control over a Unix domain socket.
// The CLI is the primary client; the wire types here are the contract
// between the scorecard binary and the running daemon.
package ipc
