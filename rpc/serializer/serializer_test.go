package serializer

import (
	"github.com/ValentinKolb/dNotes/rpc/common"
	"reflect"
	"testing"
)

var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
}

func testMessages() []common.Message {
	return []common.Message{
		{MsgType: common.MsgTSuccess},
		{
			MsgType: common.MsgTKVSet,
			Key:     "note:1",
			Value:   []byte(`{"id":"1","content":"hello"}`),
		},
		{
			MsgType: common.MsgTKVHSet,
			Key:     "user:bob",
			Field:   "wsToken",
			Value:   []byte("token"),
		},
		{
			MsgType: common.MsgTKVGet,
			Key:     "note:1",
			Value:   []byte("value"),
			Ok:      true,
		},
		{
			MsgType: common.MsgTKVKeys,
			Key:     "note:",
			Keys:    []string{"note:1", "note:2"},
		},
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			for i, msg := range testMessages() {
				data, err := s.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := s.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, msg, result)
				}
			}
		})
	}
}

func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			for msgType := common.MsgTSuccess; msgType <= common.MsgTKVInfo; msgType++ {
				data, err := s.Serialize(common.Message{MsgType: msgType})
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := s.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

func TestJSONRejectsUnknownType(t *testing.T) {
	var msg common.Message
	if err := NewJSONSerializer().Deserialize([]byte(`{"msg_type":"frobnicate"}`), &msg); err == nil {
		t.Errorf("Expected an error for an unknown message type")
	}
}

func TestFromName(t *testing.T) {
	for _, name := range []string{"json", "gob"} {
		s, err := FromName(name)
		if err != nil {
			t.Errorf("FromName(%q) error = %v", name, err)
			continue
		}
		if s.Name() != name {
			t.Errorf("FromName(%q).Name() = %q", name, s.Name())
		}
	}
	if _, err := FromName("binary"); err == nil {
		t.Errorf("Expected an error for an unknown serializer")
	}
}
