package lstore

import (
	"fmt"
	"github.com/ValentinKolb/dNotes/lib/db"
	"github.com/ValentinKolb/dNotes/lib/store"
	"os"
	"path/filepath"
	"sync/atomic"
)

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// The returned store also implements store.ISnapshotter.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}
	s.db.Set(key, value, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) HSet(key, field string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureHash) {
		return store.NewError(store.RetCUnsupportedOperation, "HSet operation is not supported")
	}
	s.db.HSet(key, field, value, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Delete(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	return s.db.Delete(key, s.incAndGetIndex()), nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok := s.db.Get(key)
	return val, ok, nil
}

func (s *storeImpl) HGet(key, field string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureHash) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "HGet operation is not supported")
	}
	val, ok := s.db.HGet(key, field)
	return val, ok, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	return s.db.Has(key), nil
}

func (s *storeImpl) Keys(prefix string) ([]string, error) {
	if !s.db.SupportsFeature(db.FeatureKeys) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "Keys operation is not supported")
	}
	return s.db.Keys(prefix), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

// --------------------------------------------------------------------------
// Snapshot Methods (docu see store.ISnapshotter)
// --------------------------------------------------------------------------

func (s *storeImpl) Snapshot(path string) error {
	if !s.db.SupportsFeature(db.FeatureSave) {
		return store.NewError(store.RetCUnsupportedOperation, "Save operation is not supported")
	}

	// write to a temp file in the same directory and rename it, so a crash never leaves a torn snapshot
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.db.Save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *storeImpl) Restore(path string) error {
	if !s.db.SupportsFeature(db.FeatureLoad) {
		return store.NewError(store.RetCUnsupportedOperation, "Load operation is not supported")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.db.Load(f); err != nil {
		return fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}

	// continue counting from the restored write index
	idx := s.db.WriteIdx()
	for {
		curr := s.index.Load()
		if idx <= curr || s.index.CompareAndSwap(curr, idx) {
			return nil
		}
	}
}
