// Package store provides a high-level interface for key-value storage operations
// and unified error handling. It serves as an abstraction layer over the lower-level
// db.KVDB implementations, adding write index management and standardized error reporting.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining plain value operations (Set, Get,
//     Has, Delete), named field operations (HSet, HGet) and prefix enumeration (Keys).
//     Delete reports whether a key was removed, so callers can tell "not found" apart
//     from a failed operation.
//
//   - ISnapshotter: Optional interface for stores that can persist and restore their state.
//
//   - Error System: store.Error carries a RetCode and a message so callers can make
//     decisions based on specific error conditions rather than generic errors.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances.
//
// Implementations:
//
//	- Local Store (lstore): directly utilizes a db.KVDB instance.
//	  Available in the "github.com/ValentinKolb/dNotes/lib/store/lstore" package.
//
//	- Distributed Store (dstore): built on the Dragonboat RAFT consensus library.
//	  Available in the "github.com/ValentinKolb/dNotes/lib/store/dstore" package.
//
//	- Remote Store (rpc/client): talks to a store served by another process.
//	  Available in the "github.com/ValentinKolb/dNotes/rpc/client" package.
package store
