package notestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/notes/protocol"
	"strings"
	"sync"
)

// Prefix is the namespace of note keys in the store.
const Prefix = "note:"

var (
	// ErrNotFound is returned when a key disappeared between listing and fetching it.
	ErrNotFound = errors.New("note not found")
	// ErrNotDecodable is returned when a stored value is not a valid note.
	ErrNotDecodable = errors.New("stored value is not a note")
)

// Key returns the store key of a note id.
func Key(id string) string {
	return Prefix + id
}

// ID returns the note id of a store key.
func ID(key string) string {
	return strings.TrimPrefix(key, Prefix)
}

// Store adapts a store.IStore to notes. It is shared by all sessions.
//
// With a guard every single backend call runs under one mutex, which is
// needed for backends that must not be used concurrently. The lock is never
// held across more than one call, so a listing followed by fetches can
// interleave with other sessions.
type Store struct {
	backend store.IStore
	guard   *sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithGuard serializes all calls to the backend.
func WithGuard() Option {
	return func(s *Store) {
		s.guard = &sync.Mutex{}
	}
}

// New creates a Store on top of backend.
func New(backend store.IStore, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Guarded reports whether backend calls are serialized.
func (s *Store) Guarded() bool {
	return s.guard != nil
}

func (s *Store) lock() func() {
	if s.guard == nil {
		return func() {}
	}
	s.guard.Lock()
	return s.guard.Unlock
}

// --------------------------------------------------------------------------
// Note operations
// --------------------------------------------------------------------------

// Keys returns the store keys of all notes in store enumeration order.
func (s *Store) Keys() ([]string, error) {
	unlock := s.lock()
	defer unlock()
	return s.backend.Keys(Prefix)
}

// Load fetches and decodes the note stored under key.
func (s *Store) Load(key string) (protocol.Note, error) {
	unlock := s.lock()
	raw, ok, err := s.backend.Get(key)
	unlock()

	if err != nil {
		return protocol.Note{}, err
	}
	if !ok {
		return protocol.Note{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	var note protocol.Note
	if err := json.Unmarshal(raw, &note); err != nil {
		return protocol.Note{}, fmt.Errorf("%w: %s: %v", ErrNotDecodable, key, err)
	}
	return note, nil
}

// Save writes the note under its key, replacing any previous value.
func (s *Store) Save(note protocol.Note) error {
	raw, err := json.Marshal(note)
	if err != nil {
		return err
	}

	unlock := s.lock()
	defer unlock()
	return s.backend.Set(Key(note.ID), raw)
}

// Remove deletes the note with the given id and reports whether it existed.
func (s *Store) Remove(id string) (bool, error) {
	unlock := s.lock()
	defer unlock()
	return s.backend.Delete(Key(id))
}

// --------------------------------------------------------------------------
// Record fields (user records)
// --------------------------------------------------------------------------

// Field returns a single field of a record, e.g. the wsToken of user:<name>.
func (s *Store) Field(key, field string) ([]byte, bool, error) {
	unlock := s.lock()
	defer unlock()
	return s.backend.HGet(key, field)
}

// SetField sets a single field of a record.
func (s *Store) SetField(key, field string, value []byte) error {
	unlock := s.lock()
	defer unlock()
	return s.backend.HSet(key, field, value)
}

// Exists reports whether a record exists.
func (s *Store) Exists(key string) (bool, error) {
	unlock := s.lock()
	defer unlock()
	return s.backend.Has(key)
}
