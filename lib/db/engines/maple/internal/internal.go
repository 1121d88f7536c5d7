package internal

import (
	"github.com/ValentinKolb/dNotes/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (value with named fields and metadata)
// --------------------------------------------------------------------------

// Entry stores the value of a key together with its named fields
type Entry struct {
	Value  []byte            // Plain value (Set / Get)
	Fields map[string][]byte // Named fields (HSet / HGet), nil if unused
	Index  uint64            // Write index when this entry was created/updated
}

// SizeBytes returns an estimate of the memory used by the entry payload
func (e Entry) SizeBytes() int {
	size := len(e.Value) + 8
	for name, val := range e.Fields {
		size += len(name) + len(val)
	}
	return size
}

// WithField returns a copy of the entry with the field set.
// The field map is copied so readers of the old entry never observe the write.
func (e Entry) WithField(field string, value []byte, index uint64) Entry {
	fields := make(map[string][]byte, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[field] = value
	return Entry{
		Value:  e.Value,
		Fields: fields,
		Index:  index,
	}
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of active entries
}

// NewShard creates a new, empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// GetShard returns the appropriate shard for a given key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard(key string, seed uint64, shards []*Shard) *Shard {
	return shards[util.ShardIndex(key, seed, len(shards))]
}
