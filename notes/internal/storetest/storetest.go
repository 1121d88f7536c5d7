// Package storetest provides a store.IStore for tests of the notes packages.
// It is a local maple store with injectable failures and call accounting.
package storetest

import (
	"github.com/ValentinKolb/dNotes/lib/db"
	"github.com/ValentinKolb/dNotes/lib/db/engines/maple"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/ValentinKolb/dNotes/lib/store/lstore"
	"sync"
	"sync/atomic"
	"time"
)

// Store wraps a local store. Set the Fail* fields to make the matching
// operation return that error.
type Store struct {
	store.IStore

	mu         sync.Mutex
	FailKeys   error
	FailGet    error
	FailSet    error
	FailDelete error
	FailHGet   error

	// BeforeGet runs before every Get, e.g. to delete the key concurrently
	BeforeGet func(key string)

	// Delay is added to every call, which makes overlapping calls observable
	Delay time.Duration

	calls      atomic.Int64
	noteReads  atomic.Int64
	inFlight   atomic.Int32
	overlapped atomic.Bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		IStore: lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }),
	}
}

func (s *Store) enter() func() {
	s.calls.Add(1)
	if s.inFlight.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	return func() { s.inFlight.Add(-1) }
}

func (s *Store) fault(f *error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *f
}

// SetFault sets one of the Fail* fields under the lock
func (s *Store) SetFault(f *error, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*f = err
}

// Calls is the number of store calls made so far.
func (s *Store) Calls() int64 { return s.calls.Load() }

// NoteReads is the number of Keys and Get calls, the reads that touch notes.
func (s *Store) NoteReads() int64 { return s.noteReads.Load() }

// Overlapped reports whether two calls were ever in flight at the same time.
func (s *Store) Overlapped() bool { return s.overlapped.Load() }

// --------------------------------------------------------------------------
// store.IStore
// --------------------------------------------------------------------------

func (s *Store) Keys(prefix string) ([]string, error) {
	defer s.enter()()
	s.noteReads.Add(1)
	if err := s.fault(&s.FailKeys); err != nil {
		return nil, err
	}
	return s.IStore.Keys(prefix)
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	defer s.enter()()
	s.noteReads.Add(1)
	if s.BeforeGet != nil {
		s.BeforeGet(key)
	}
	if err := s.fault(&s.FailGet); err != nil {
		return nil, false, err
	}
	return s.IStore.Get(key)
}

func (s *Store) Set(key string, value []byte) error {
	defer s.enter()()
	if err := s.fault(&s.FailSet); err != nil {
		return err
	}
	return s.IStore.Set(key, value)
}

func (s *Store) Delete(key string) (bool, error) {
	defer s.enter()()
	if err := s.fault(&s.FailDelete); err != nil {
		return false, err
	}
	return s.IStore.Delete(key)
}

func (s *Store) HGet(key, field string) ([]byte, bool, error) {
	defer s.enter()()
	if err := s.fault(&s.FailHGet); err != nil {
		return nil, false, err
	}
	return s.IStore.HGet(key, field)
}

func (s *Store) HSet(key, field string, value []byte) error {
	defer s.enter()()
	return s.IStore.HSet(key, field, value)
}

func (s *Store) Has(key string) (bool, error) {
	defer s.enter()()
	return s.IStore.Has(key)
}
