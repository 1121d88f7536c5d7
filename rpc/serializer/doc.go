// Package serializer converts common.Message values to bytes and back.
//
// Two implementations exist:
//
//   - JSON: human-readable, the default. Message types are encoded as names.
//   - GOB: Go's own binary format.
//
// Both are stateless and safe for concurrent use. Client and server must be
// configured with the same serializer.
//
//	s, err := serializer.FromName("json")
//	data, err := s.Serialize(msg)
//	var received common.Message
//	err = s.Deserialize(data, &received)
package serializer
