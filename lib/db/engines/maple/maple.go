package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dNotes/lib/db"
	"github.com/ValentinKolb/dNotes/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dNotes/lib/db/util"
	"io"
	"runtime"
	"strings"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Database version (4 = string keys with fields)
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory database with sharded data
type mapleImpl struct {
	numShards int               // Number of shards
	seed      uint64            // Seed for hash function
	shards    []*internal.Shard // Array of shards
	currIndex atomic.Uint64     // Current logical timestamp
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    newShards(opts.NumShards),
	}
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := 0; i < n; i++ {
		shards[i] = internal.NewShard()
	}
	return shards
}

// getShard returns the shard responsible for key
func (maple *mapleImpl) getShard(key string) *internal.Shard {
	return internal.GetShard(key, maple.seed, maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or replaces the entry for key.
// Writes with an index lower than the stored entry's index are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIndex uint64) {
	maple.SetWriteIdx(writeIndex)

	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.getShard(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && writeIndex < old.Index {
			return old, false // stale write
		}
		return internal.Entry{Value: valueCopy, Index: writeIndex}, false
	})
}

// HSet sets one field on the entry for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) HSet(key, field string, value []byte, writeIndex uint64) {
	maple.SetWriteIdx(writeIndex)

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.getShard(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && writeIndex < old.Index {
			return old, false // stale write
		}
		return old.WithField(field, valueCopy, writeIndex), false
	})
}

// Delete removes the entry with the specified key and reports whether it existed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIndex uint64) bool {
	maple.SetWriteIdx(writeIndex)

	deleted := false
	maple.getShard(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return old, true // nothing to delete, don't create the entry
		}
		if writeIndex < old.Index {
			return old, false // stale delete
		}
		deleted = true
		return old, true
	})
	return deleted
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get returns a copy of the plain value stored for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool) {
	entry, ok := maple.getShard(key).Data.Load(key)
	if !ok {
		return nil, false
	}
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	return value, true
}

// HGet returns a copy of one field of the entry for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) HGet(key, field string) ([]byte, bool) {
	entry, ok := maple.getShard(key).Data.Load(key)
	if !ok {
		return nil, false
	}
	val, ok := entry.Fields[field]
	if !ok {
		return nil, false
	}
	value := make([]byte, len(val))
	copy(value, val)
	return value, true
}

// Has reports whether an entry exists for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	_, ok := maple.getShard(key).Data.Load(key)
	return ok
}

// Keys returns every key starting with prefix.
// The result is a fuzzy view: concurrent writes may or may not be included.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Keys(prefix string) []string {
	keys := make([]string, 0)
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, _ internal.Entry) bool {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return true
		})
	}
	return keys
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer
// Concurrent reading and writing is allowed during Save operation (fuzzy snapshot).
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load.
func (maple *mapleImpl) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	type entryToSave struct {
		key   string
		entry internal.Entry
	}

	var entries []entryToSave
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			// entries are never mutated in place, so keeping the reference is safe
			entries = append(entries, entryToSave{key, entry})
			return true
		})
	}

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, maple.seed); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, maple.currIndex.Load()); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, item := range entries {
		if err := writeBytes(bw, []byte(item.key)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}
		if err := writeBytes(bw, item.entry.Value); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Fields))); err != nil {
			return err
		}
		for name, val := range item.entry.Fields {
			if err := writeBytes(bw, []byte(name)); err != nil {
				return err
			}
			if err := writeBytes(bw, val); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// Load restores a database from the reader. All current entries are replaced.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var seed, writeIdx, count uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// Build the new shards before swapping so a corrupt file leaves the db untouched
	shards := newShards(maple.numShards)
	for i := uint64(0); i < count; i++ {
		key, err := readBytes(br)
		if err != nil {
			return err
		}
		var entry internal.Entry
		if err := binary.Read(br, binary.LittleEndian, &entry.Index); err != nil {
			return err
		}
		if entry.Value, err = readBytes(br); err != nil {
			return err
		}
		var fieldCount uint32
		if err := binary.Read(br, binary.LittleEndian, &fieldCount); err != nil {
			return err
		}
		if fieldCount > 0 {
			entry.Fields = make(map[string][]byte, fieldCount)
		}
		for j := uint32(0); j < fieldCount; j++ {
			name, err := readBytes(br)
			if err != nil {
				return err
			}
			val, err := readBytes(br)
			if err != nil {
				return err
			}
			entry.Fields[string(name)] = val
		}
		internal.GetShard(string(key), seed, shards).Data.Store(string(key), entry)
	}

	maple.seed = seed
	maple.shards = shards
	maple.currIndex.Store(writeIdx)
	return nil
}

// writeBytes writes a length prefixed byte slice
func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes reads a length prefixed byte slice
func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// --------------------------------------------------------------------------
// Info and Feature Support
// --------------------------------------------------------------------------

// GetInfo returns an estimate of the database state.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	keys, size := 0, 0
	perShard := make([]int, len(maple.shards))
	for i, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			keys++
			perShard[i]++
			size += len(key) + entry.SizeBytes()
			return true
		})
	}

	return db.DatabaseInfo{
		Keys:      keys,
		SizeBytes: size,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
			db.FeatureKeys, db.FeatureHash, db.FeatureSave, db.FeatureLoad,
		},
		Metadata: map[string]interface{}{
			"shards":      maple.numShards,
			"keysByShard": perShard,
			"writeIndex":  maple.currIndex.Load(),
		},
	}
}

// SupportsFeature reports whether all requested features are supported (maple supports all of them)
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	all := db.FeatureSet | db.FeatureGet | db.FeatureDelete | db.FeatureHas |
		db.FeatureKeys | db.FeatureHash | db.FeatureSave | db.FeatureLoad
	return feature&all == feature
}

// Close releases the data held by the database
func (maple *mapleImpl) Close() error {
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
	return nil
}

// --------------------------------------------------------------------------
// Write Index Operations
// --------------------------------------------------------------------------

// SetWriteIdx advances the logical clock, lower values are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		curr := maple.currIndex.Load()
		if newIdx <= curr || maple.currIndex.CompareAndSwap(curr, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current logical clock
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
