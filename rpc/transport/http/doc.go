// Package http is the HTTP implementation of the rpc transport.
//
// The server exposes POST /{shardId} on a chi router and passes the body to the
// registered handler. The client picks endpoints round-robin and moves to the
// next endpoint when a request fails, up to RetryCount attempts.
//
// The client transport is safe for concurrent use.
package http
