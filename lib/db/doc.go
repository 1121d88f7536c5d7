// Package db provides a standardized interface for key-value database implementations.
// It defines the KVDB interface that allows for consistent interaction
// with various database backends while abstracting implementation details.
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for plain values (Set, Get, Has, Delete), named fields on an
//     entry (HSet, HGet), prefix enumeration (Keys), metadata retrieval (GetInfo)
//     and persistence (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports the number of keys,
//     an estimated size and implementation-specific metadata.
//
// Note on the write index:
//   - All write operations take a write-index that serves as a logical timestamp.
//     Local stores use a counter, the raft store uses the log index of the entry.
//   - Implementations must keep the write-index monotonic and ignore lower values.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/dNotes/lib/db/engines/maple) provides a
// sharded in-memory implementation of the KVDB interface.
//
// The testing package (github.com/ValentinKolb/dNotes/lib/db/testing) provides
// a conformance suite for implementations of the KVDB interface (RunKVDBTests).
package db
