// Package internal holds the wire structures exchanged between the dstore
// client and its raft state machine.
//
// Commands (Set, HSet, Delete) are written to the raft log and use a compact
// binary layout:
//
//   - 1 byte: command type
//   - 4 bytes: key length (uint32, big endian)
//   - 4 bytes: field length (uint32, big endian)
//   - key bytes, field bytes, then the value (rest of the buffer)
//
// Queries (Get, HGet, Has, Keys, GetDBInfo) never leave the node and are
// passed to the state machine as plain structs.
package internal
