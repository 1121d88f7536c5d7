// Package auth implements the gates that decide whether a WebSocket
// connection may enter its message loop.
//
//   - none: every connection is admitted.
//   - static: the "token" query parameter must equal the configured token.
//   - user: the "username" query parameter names a record user:<name> whose
//     wsToken field must equal the __Host.__ws cookie.
//
// Only the configured gate is consulted. A username sent to a static gate, or a
// token sent to a user gate, is ignored.
package auth
