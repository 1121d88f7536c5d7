package notestore

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dNotes/notes/internal/storetest"
	"github.com/ValentinKolb/dNotes/notes/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNamespace(t *testing.T) {
	assert.Equal(t, "note:n1", Key("n1"))
	assert.Equal(t, "note:", Key(""))
	assert.Equal(t, "n1", ID("note:n1"))
}

func TestSaveLoadRemove(t *testing.T) {
	backend := storetest.New()
	s := New(backend)

	note := protocol.Note{ID: "n1", Content: "hi", Updated: "t0"}
	require.NoError(t, s.Save(note))

	raw, ok, err := backend.IStore.Get("note:n1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"n1","content":"hi","updated":"t0"}`, string(raw))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"note:n1"}, keys)

	loaded, err := s.Load("note:n1")
	require.NoError(t, err)
	assert.Equal(t, note, loaded)

	removed, err := s.Remove("n1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove("n1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestKeysOnlyListsNotes(t *testing.T) {
	backend := storetest.New()
	s := New(backend)

	require.NoError(t, s.Save(protocol.Note{ID: "a"}))
	require.NoError(t, s.SetField("user:bob", "wsToken", []byte("tok")))
	require.NoError(t, backend.IStore.Set("notes", []byte("not a note key")))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"note:a"}, keys)
}

func TestLoadErrors(t *testing.T) {
	backend := storetest.New()
	s := New(backend)

	_, err := s.Load("note:missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.IStore.Set("note:broken", []byte("{not json")))
	_, err = s.Load("note:broken")
	assert.ErrorIs(t, err, ErrNotDecodable)

	boom := errors.New("connection lost")
	backend.SetFault(&backend.FailGet, boom)
	_, err = s.Load("note:any")
	assert.ErrorIs(t, err, boom)
}

func TestFieldAccess(t *testing.T) {
	s := New(storetest.New())

	_, ok, err := s.Field("user:bob", "wsToken")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetField("user:bob", "wsToken", []byte("tok")))
	val, ok, err := s.Field("user:bob", "wsToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", string(val))

	exists, err := s.Exists("user:bob")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGuardSerializesCalls(t *testing.T) {
	backend := storetest.New()
	backend.Delay = 2 * time.Millisecond
	s := New(backend, WithGuard())
	require.True(t, s.Guarded())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_ = s.Save(protocol.Note{ID: string(rune('a' + i))})
				_, _ = s.Keys()
			}
		}(i)
	}
	wg.Wait()

	assert.False(t, backend.Overlapped(), "guarded store must never run two backend calls at once")
}

func TestUnguardedCallsMayOverlap(t *testing.T) {
	backend := storetest.New()
	backend.Delay = 5 * time.Millisecond
	s := New(backend)
	require.False(t, s.Guarded())

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = s.Keys()
		}()
	}
	close(start)
	wg.Wait()

	assert.True(t, backend.Overlapped())
}
