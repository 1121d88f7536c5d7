// Package client implements store.IStore on top of an rpc transport, so a
// store served by "dnotes store serve" can be used like a local one.
//
//	s, err := client.NewRPCStore(
//	  100,
//	  common.ClientConfig{Endpoints: []string{"http://127.0.0.1:8080"}, TimeoutSecond: 5, RetryCount: 3},
//	  http.NewHttpClientTransport(),
//	  serializer.NewJSONSerializer(),
//	)
//
// All failures (transport, serialization, errors reported by the server) are
// returned as *store.Error with RetCInternalError. A missing key is not an error.
// The returned store is safe for concurrent use when the transport is.
package client
