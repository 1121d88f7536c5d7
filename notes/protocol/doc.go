// Package protocol defines the messages exchanged over a notes WebSocket.
//
// Inbound frames are requests:
//
//	{"command": "Get"|"Set"|"Delete", "note": {"id": "...", "content": "...", "updated": "..."}}
//
// Outbound frames are either a Status ({"response": 200, "message": "..."}) or,
// for Get, a Listing encoded as a bare JSON array of notes. Both shapes share the
// same channel, so a client tells them apart by the first character.
package protocol
