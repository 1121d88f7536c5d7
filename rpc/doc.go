// Package rpc makes a store.IStore reachable over the network.
//
// A store server (see cmd "store serve") hosts one or more shards, each backed by
// a local store or a raft replicated store. Clients talk to a shard through
// rpc/client, which implements store.IStore, so the notes server can use a
// remote store exactly like a local one.
//
// Subpackages:
//
//   - common: Message protocol, configuration and logging.
//   - serializer: JSON and GOB encodings of a Message.
//   - transport: the HTTP transport used between client and server.
//   - client: store.IStore implementation over a transport.
//   - server: shard registry and request handling.
package rpc
