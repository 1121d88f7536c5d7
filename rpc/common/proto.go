package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: all store operations (prefix for Keys)
	Field string `json:"field,omitempty"` // Used for: HSet, HGet
	Value []byte `json:"value,omitempty"` // Used for: Set, HSet (request), Get, HGet, Info (response)

	// Response only fields
	Keys []string `json:"keys,omitempty"` // Used for: Keys responses
	Ok   bool     `json:"ok,omitempty"`   // Used for: Get, HGet, Has, Delete responses
	Err  string   `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

func withErr(msg *Message, err error) *Message {
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{MsgType: MsgTKVSet, Key: key, Value: value}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTKVSet}, err)
}

// NewHSetRequest creates a new HSet request
func NewHSetRequest(key, field string, value []byte) *Message {
	return &Message{MsgType: MsgTKVHSet, Key: key, Field: field, Value: value}
}

// NewHSetResponse creates a new HSet response
func NewHSetResponse(err error) *Message {
	return withErr(&Message{MsgType: MsgTKVHSet}, err)
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{MsgType: MsgTKVDelete, Key: key}
}

// NewDeleteResponse creates a new Delete response, Ok reports whether the key existed
func NewDeleteResponse(deleted bool, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVDelete, Ok: deleted}, err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{MsgType: MsgTKVGet, Key: key}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVGet, Ok: ok, Value: value}, err)
}

// NewHGetRequest creates a new HGet request
func NewHGetRequest(key, field string) *Message {
	return &Message{MsgType: MsgTKVHGet, Key: key, Field: field}
}

// NewHGetResponse creates a new HGet response
func NewHGetResponse(value []byte, ok bool, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVHGet, Ok: ok, Value: value}, err)
}

// NewHasRequest creates a new Has request
func NewHasRequest(key string) *Message {
	return &Message{MsgType: MsgTKVHas, Key: key}
}

// NewHasResponse creates a new Has response
func NewHasResponse(ok bool, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVHas, Ok: ok}, err)
}

// NewKeysRequest creates a new Keys request for all keys starting with prefix
func NewKeysRequest(prefix string) *Message {
	return &Message{MsgType: MsgTKVKeys, Key: prefix}
}

// NewKeysResponse creates a new Keys response
func NewKeysResponse(keys []string, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVKeys, Keys: keys}, err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{MsgType: MsgTKVInfo}
}

// NewInfoResponse creates a new Info response, the info is carried as JSON in Value
func NewInfoResponse(info []byte, err error) *Message {
	return withErr(&Message{MsgType: MsgTKVInfo, Value: info}, err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{MsgType: MsgTError, Err: err}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:  "success",
	MsgTError:    "error",
	MsgTKVSet:    "set",
	MsgTKVHSet:   "hset",
	MsgTKVDelete: "delete",
	MsgTKVGet:    "get",
	MsgTKVHGet:   "hget",
	MsgTKVHas:    "has",
	MsgTKVKeys:   "keys",
	MsgTKVInfo:   "info",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for typ, name := range msgTypeNames {
		if name == s {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVSet    // Set a key-value pair
	MsgTKVHSet   // Set a field of a key
	MsgTKVDelete // Delete a key-value pair
	MsgTKVGet    // Get a value by key
	MsgTKVHGet   // Get a field of a key
	MsgTKVHas    // Check if a key exists
	MsgTKVKeys   // Enumerate keys by prefix
	MsgTKVInfo   // Metadata about the underlying database
)
