// Package server hosts store shards behind an rpc transport.
//
// Every shard is either a local store (lstore) or a raft replicated store
// (dstore) and is addressed by its shard id. Requests are decoded with the
// configured serializer and executed by an IRPCServerAdapter. The time spent
// per message type is recorded with go-metrics timers and logged once a minute.
//
//	config := common.ServerConfig{
//	  Shards:        []common.ServerShard{{ShardID: 100, Type: common.ShardTypeLocalIStore}},
//	  Endpoint:      "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewJSONSerializer())
//	if err := s.Serve(ctx); err != nil {
//	  ...
//	}
//
// Raft shards need RTTMillisecond, SnapshotEntries, CompactionOverhead,
// DataDir, ReplicaID and ClusterMembers to be set.
package server
