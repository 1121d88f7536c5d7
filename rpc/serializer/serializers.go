package serializer

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"github.com/ValentinKolb/dNotes/rpc/common"
)

// NewJSONSerializer creates a serializer using json encoding.
// Message types are written by name, values as base64.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializer{}
}

// NewGOBSerializer creates a serializer using Go's binary gob format.
// Both ends must run this package, the encoding is not self describing for other languages.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializer{}
}

type jsonSerializer struct{}
type gobSerializer struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializer) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonSerializer) Deserialize(b []byte, msg *common.Message) error {
	return json.Unmarshal(b, msg)
}

func (jsonSerializer) Name() string { return "json" }

func (gobSerializer) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobSerializer) Deserialize(b []byte, msg *common.Message) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(msg)
}

func (gobSerializer) Name() string { return "gob" }
