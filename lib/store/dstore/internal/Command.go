package internal

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dNotes/lib/db"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTSet    CommandType = iota // Insert or replace an entry.
	CommandTHSet                      // Set a named field of an entry.
	CommandTDelete                    // Delete an entry.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTSet:
		return "Set"
	case CommandTHSet:
		return "HSet"
	case CommandTDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTSet:
		return db.FeatureSet, nil
	case CommandTHSet:
		return db.FeatureHash, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type  CommandType
	Key   string
	Field string // only used for CommandTHSet
	Value []byte
}

// headerSize is Type + KeyLen + FieldLen
const headerSize = 1 + 4 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Key) + len(command.Field) + len(command.Value)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for key length (big endian),
// 4 bytes for field length (big endian),
// N bytes for key data,
// N bytes for field data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint32(result[1:5], uint32(len(command.Key)))
	binary.BigEndian.PutUint32(result[5:9], uint32(len(command.Field)))

	offset := headerSize
	offset += copy(result[offset:], command.Key)
	offset += copy(result[offset:], command.Field)
	copy(result[offset:], command.Value)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	keyLen := int(binary.BigEndian.Uint32(data[1:5]))
	fieldLen := int(binary.BigEndian.Uint32(data[5:9]))

	if len(data) < headerSize+keyLen+fieldLen {
		return fmt.Errorf("data too short for key of length %d and field of length %d", keyLen, fieldLen)
	}

	offset := headerSize
	command.Key = string(data[offset : offset+keyLen])
	offset += keyLen
	command.Field = string(data[offset : offset+fieldLen])
	offset += fieldLen

	if len(data) > offset {
		command.Value = make([]byte, len(data)-offset)
		copy(command.Value, data[offset:])
	} else {
		command.Value = nil
	}

	return nil
}
