// Package server puts the notes components behind HTTP.
//
// Routes:
//
//	GET  /          index page
//	GET  /healthz   store reachability
//	GET  /ws        WebSocket note protocol, one session per connection
//	GET  /metrics   Prometheus metrics (optional)
//	POST /account/* signup and login (auth mode "user" only)
//
// Run also owns the snapshot file of a local store: it is restored on start,
// rewritten on an interval and once more after all sessions are closed.
package server
