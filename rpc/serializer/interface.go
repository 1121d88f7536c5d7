package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dNotes/rpc/common"
	"sort"
	"strings"
)

// IRPCSerializer is the interface for all Message serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into the given Message
	Deserialize(b []byte, msg *common.Message) error
	// Name is the name the serializer is selected by (see FromName)
	Name() string
}

var registry = map[string]func() IRPCSerializer{
	"json": NewJSONSerializer,
	"gob":  NewGOBSerializer,
}

// FromName returns the serializer registered under name ("json" or "gob").
func FromName(name string) (IRPCSerializer, error) {
	if factory, ok := registry[name]; ok {
		return factory(), nil
	}

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown serializer %q, must be one of %s", name, strings.Join(names, ", "))
}
