// Package cmd implements the dnotes command-line interface.
//
// The package is organized into several subpackages:
//
//   - serve: the WebSocket notes server
//   - note: a client for the notes server (get, set, delete)
//   - store: the standalone key-value store the notes server can use (store serve)
//   - kv: raw operations on that store (get, set, keys, hget, ...)
//   - util: shared flag and configuration handling (internal use)
//
// See dnotes -help for a list of all commands.
package cmd
