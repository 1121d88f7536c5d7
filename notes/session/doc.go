// Package session runs one WebSocket connection.
//
// A session starts Unauthenticated when a gate other than "none" is
// configured. A rejected connection gets a single close frame (4401,
// "unauthorized") and no message is read. An Active session reads one frame
// at a time and answers it before reading the next:
//
//   - non-text frame: {"response":400}
//   - undecodable text: 400 with the decoder's message
//   - Set or Delete without note: 400 "Note is required"
//   - otherwise the dispatcher's response
//
// The loop ends when the peer closes or a read or write fails.
package session
