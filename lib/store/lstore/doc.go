// Package lstore implements a local, in-memory, single-node key-value store based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB
// implementation with automatic write index management.
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that increments
//     with each write operation and is passed to the db as logical timestamp.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.KVDB implementation supports the requested feature. Unsupported operations
//     return a store.Error with code RetCUnsupportedOperation.
//
//   - Snapshots: The store implements store.ISnapshotter. Snapshot writes the db to a
//     temporary file next to the target and renames it into place; Restore loads a
//     snapshot and continues the write index from the restored value.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	err := s.Set("note:123", noteJSON)
//	value, exists, err := s.Get("note:123")
//
// For deployments that need the notes to survive a node failure use the dstore
// package, which provides a RAFT-based implementation of the same interface.
package lstore
