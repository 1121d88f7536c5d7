// Package transport defines how serialized rpc messages travel between a
// store client and a store server. Requests are addressed to a shard id; the
// server side hands them to a single ServerHandleFunc.
//
// The http subpackage is the only implementation.
package transport
