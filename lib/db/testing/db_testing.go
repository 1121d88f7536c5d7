package testing

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/dNotes/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("Hash", func(t *testing.T) {
			testHash(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, 0)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 0)

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = database.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("caller-owned")
	database.Set("copy-key", input, 0)
	input[0] = 'X'
	if stored, _ := database.Get("copy-key"); !bytes.Equal(stored, []byte("caller-owned")) {
		t.Errorf("Set should copy the value, got %s", stored)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("delete-key", []byte("value"), 1)

	if !database.Delete("delete-key", 2) {
		t.Errorf("Expected Delete to report a removed key")
	}
	if _, exists := database.Get("delete-key"); exists {
		t.Errorf("Key should not exist after Delete")
	}

	// deleting an absent key is not an error, it just reports false (twice)
	if database.Delete("delete-key", 3) {
		t.Errorf("Expected second Delete to report nothing removed")
	}
	if database.Delete("never-existed", 4) {
		t.Errorf("Expected Delete of unknown key to report nothing removed")
	}

	// the key can be recreated after deletion
	database.Set("delete-key", []byte("again"), 5)
	if val, exists := database.Get("delete-key"); !exists || string(val) != "again" {
		t.Errorf("Expected recreated key, got %s (exists=%v)", val, exists)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureDelete)

	if database.Has("has-key") {
		t.Errorf("Has should return false for unknown key")
	}

	database.Set("has-key", []byte("v"), 1)
	if !database.Has("has-key") {
		t.Errorf("Has should return true after Set")
	}

	database.Delete("has-key", 2)
	if database.Has("has-key") {
		t.Errorf("Has should return false after Delete")
	}
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureKeys|db.FeatureDelete)

	if keys := database.Keys("note:"); len(keys) != 0 {
		t.Errorf("Expected no keys in empty database, got %v", keys)
	}

	for i := 0; i < 50; i++ {
		database.Set(fmt.Sprintf("note:%d", i), []byte("n"), uint64(i+1))
	}
	database.Set("user:alice", []byte("u"), 100)
	database.Set("notes-without-colon", []byte("x"), 101)

	keys := database.Keys("note:")
	if len(keys) != 50 {
		t.Fatalf("Expected 50 keys with prefix note:, got %d", len(keys))
	}
	sort.Strings(keys)
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			t.Errorf("Key %s enumerated twice", k)
		}
		seen[k] = true
	}
	for i := 0; i < 50; i++ {
		if !seen[fmt.Sprintf("note:%d", i)] {
			t.Errorf("Expected note:%d in enumeration", i)
		}
	}

	database.Delete("note:7", 200)
	if keys := database.Keys("note:"); len(keys) != 49 {
		t.Errorf("Expected 49 keys after delete, got %d", len(keys))
	}

	if keys := database.Keys(""); len(keys) != 51 {
		t.Errorf("Expected empty prefix to enumerate all 51 keys, got %d", len(keys))
	}
}

func testHash(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureHash)

	if _, ok := database.HGet("user:bob", "wsToken"); ok {
		t.Errorf("HGet on unknown key should not load")
	}

	database.HSet("user:bob", "passwordHash", []byte("hash"), 1)
	database.HSet("user:bob", "wsToken", []byte("token-1"), 2)

	if val, ok := database.HGet("user:bob", "wsToken"); !ok || string(val) != "token-1" {
		t.Errorf("Expected token-1, got %s (ok=%v)", val, ok)
	}
	if val, ok := database.HGet("user:bob", "passwordHash"); !ok || string(val) != "hash" {
		t.Errorf("HSet of a second field must keep the first one, got %s (ok=%v)", val, ok)
	}
	if _, ok := database.HGet("user:bob", "missing"); ok {
		t.Errorf("HGet of a missing field should not load")
	}

	database.HSet("user:bob", "wsToken", []byte("token-2"), 3)
	if val, _ := database.HGet("user:bob", "wsToken"); string(val) != "token-2" {
		t.Errorf("Expected overwritten field token-2, got %s", val)
	}

	// Set replaces the whole entry including its fields
	database.Set("user:bob", []byte("plain"), 4)
	if _, ok := database.HGet("user:bob", "wsToken"); ok {
		t.Errorf("Set should drop the fields of the entry")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		database.Set(fmt.Sprintf("save-load-test-key-%d", i), []byte(fmt.Sprintf("save-load-test-value-%d", i)), uint64(i))
	}
	if database.SupportsFeature(db.FeatureHash) {
		database.HSet("user:carol", "wsToken", []byte("tok"), uint64(numEntries))
	}

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	// existing entries of the target must be replaced
	database2.Set("stale-key", []byte("stale"), 0)

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		expected := []byte(fmt.Sprintf("save-load-test-value-%d", i))

		actual, exists := database2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if !bytes.Equal(actual, expected) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expected, actual)
		}
	}

	if database2.SupportsFeature(db.FeatureHash) {
		if val, ok := database2.HGet("user:carol", "wsToken"); !ok || string(val) != "tok" {
			t.Errorf("Expected field to survive Save/Load, got %s (ok=%v)", val, ok)
		}
	}

	if _, exists := database2.Get("stale-key"); exists {
		t.Errorf("Load should replace the previous contents")
	}

	if database2.WriteIdx() < database.WriteIdx() {
		t.Errorf("Load should restore the write index (%d < %d)", database2.WriteIdx(), database.WriteIdx())
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	// empty key
	database.Set("", []byte("empty-key-value"), 0)
	if val, exists := database.Get(""); !exists || string(val) != "empty-key-value" {
		t.Errorf("Empty key should be a valid key, got %s (exists=%v)", val, exists)
	}

	// empty value
	database.Set("empty-value", []byte{}, 0)
	if val, exists := database.Get("empty-value"); !exists || len(val) != 0 {
		t.Errorf("Empty value should be stored, got %v (exists=%v)", val, exists)
	}

	// nil value
	database.Set("nil-value", nil, 0)
	if _, exists := database.Get("nil-value"); !exists {
		t.Errorf("Nil value should be stored as empty value")
	}

	// large value
	large := make([]byte, 1024*1024)
	for i := range large {
		large[i] = byte(i % 256)
	}
	database.Set("large-value", large, 0)
	if val, _ := database.Get("large-value"); !bytes.Equal(val, large) {
		t.Errorf("Large value was not stored correctly")
	}

	// unicode keys
	database.Set("note:ümlaut-📝", []byte("unicode"), 0)
	if val, exists := database.Get("note:ümlaut-📝"); !exists || string(val) != "unicode" {
		t.Errorf("Unicode key should round trip")
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete|db.FeatureKeys)

	numWorkers := 8
	opsPerWorker := 1_000

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("note:%d-%d", workerId, i%100)
				switch i % 10 {
				case 0, 1, 2, 3, 4, 5, 6:
					database.Set(key, []byte(fmt.Sprintf("v-%d", i)), 0)
				case 7, 8:
					database.Get(key)
					database.Keys("note:")
				case 9:
					database.Delete(key, 0)
				}
			}
		}(w)
	}

	wg.Wait()

	// every enumerated key must be readable once the writers are done
	for _, key := range database.Keys("note:") {
		if _, ok := database.Get(key); !ok {
			t.Errorf("Consistency error: key %s enumerated but not readable", key)
		}
	}
}
