// Package maple implements an in-memory key-value database (KVDB) that satisfies
// the db.KVDB interface.
//
// Key Components:
//
//   - mapleImpl: The central database structure. Keys are distributed across
//     shards by an FNV-1a hash; every shard is a lock-free xsync map, so readers
//     never block writers. The write index is supplied by the caller (a counter
//     for local stores, the raft log index for replicated stores) and stale
//     writes, i.e. writes with an index lower than the stored entry's, are ignored.
//
//   - Entry: A plain value plus optional named fields. Field updates copy the
//     field map, so an entry observed by a reader is never mutated afterwards.
//
//   - Persistence: Save writes a fuzzy snapshot (magic "MAPLEDB\x00", version,
//     seed, write index, then length-prefixed entries). Load rebuilds all shards
//     before swapping them in.
//
// Keys enumerates all shards and is therefore O(n) in the number of keys; it is
// meant for small key spaces like the note namespace of a single service.
package maple
