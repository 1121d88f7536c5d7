// Package dstore implements store.IStore on top of a Dragonboat RAFT shard.
//
// Writes (Set, HSet, Delete) are serialized into internal.Command values and
// proposed with SyncPropose; the raft log index becomes the write index of the
// entry. A Delete that removes nothing is answered with store.RetCNotFound by
// the state machine, which the client turns into (false, nil).
//
// Reads (Get, HGet, Has, Keys) use SyncRead and are linearizable. GetDBInfo uses
// StaleRead. ErrSystemBusy is retried a few times with a short backoff.
//
// The state machine snapshots with the db.KVDB Save/Load methods (fuzzy
// snapshots, no pause of the write path).
//
// Example:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	dbFactory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	err = nh.StartConcurrentReplica(members, false, dstore.CreateStateMaschineFactory(dbFactory), shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
package dstore
