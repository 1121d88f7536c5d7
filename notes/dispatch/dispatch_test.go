package dispatch

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dNotes/notes/internal/storetest"
	"github.com/ValentinKolb/dNotes/notes/notestore"
	"github.com/ValentinKolb/dNotes/notes/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("connection lost")

func newDispatcher() (*Dispatcher, *storetest.Store) {
	backend := storetest.New()
	return New(notestore.New(backend)), backend
}

func TestSetThenGet(t *testing.T) {
	d, _ := newDispatcher()

	assert.Equal(t, protocol.NewStatus(protocol.StatusOK), d.Set(protocol.Note{ID: "n1", Content: "hi", Updated: "t0"}))

	resp := d.Get()
	require.IsType(t, protocol.Listing{}, resp)
	assert.Equal(t, protocol.Listing{{ID: "n1", Content: "hi", Updated: "t0"}}, resp)
}

func TestGetEmpty(t *testing.T) {
	d, _ := newDispatcher()

	resp := d.Get()
	require.IsType(t, protocol.Listing{}, resp)
	raw, err := protocol.Encode(resp)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestSetOverwrites(t *testing.T) {
	d, _ := newDispatcher()

	d.Set(protocol.Note{ID: "n1", Content: "first"})
	d.Set(protocol.Note{ID: "n1", Content: "second"})

	assert.Equal(t, protocol.Listing{{ID: "n1", Content: "second"}}, d.Get())
}

func TestSetIsFullReplace(t *testing.T) {
	d, _ := newDispatcher()

	d.Set(protocol.Note{ID: "n1", Content: "c", Updated: "t0"})
	d.Set(protocol.Note{ID: "n1"})

	assert.Equal(t, protocol.Listing{{ID: "n1"}}, d.Get())
}

func TestDeleteAbsentIsNotFound(t *testing.T) {
	d, _ := newDispatcher()

	want := protocol.Status{Code: protocol.StatusNotFound, Message: MsgNotFound}
	assert.Equal(t, want, d.Delete("ghost"))
	assert.Equal(t, want, d.Delete("ghost"))
}

func TestDeleteExisting(t *testing.T) {
	d, _ := newDispatcher()

	d.Set(protocol.Note{ID: "n1"})
	assert.Equal(t, protocol.NewStatus(protocol.StatusOK), d.Delete("n1"))
	assert.Equal(t, protocol.Listing{}, d.Get())
}

func TestEmptyIDIsAValidKey(t *testing.T) {
	d, backend := newDispatcher()

	assert.Equal(t, protocol.NewStatus(protocol.StatusOK), d.Set(protocol.Note{ID: ""}))
	_, ok, err := backend.IStore.Get("note:")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreFailures(t *testing.T) {
	tests := []struct {
		name  string
		fault func(*storetest.Store) *error
		run   func(*Dispatcher) protocol.Response
		want  protocol.Status
	}{
		{
			name:  "get list fails",
			fault: func(s *storetest.Store) *error { return &s.FailKeys },
			run:   (*Dispatcher).Get,
			want:  protocol.Status{Code: protocol.StatusError, Message: MsgGetFailed},
		},
		{
			name:  "get fetch fails",
			fault: func(s *storetest.Store) *error { return &s.FailGet },
			run:   (*Dispatcher).Get,
			want:  protocol.Status{Code: protocol.StatusError, Message: MsgGetFailed},
		},
		{
			name:  "set fails",
			fault: func(s *storetest.Store) *error { return &s.FailSet },
			run:   func(d *Dispatcher) protocol.Response { return d.Set(protocol.Note{ID: "x"}) },
			want:  protocol.Status{Code: protocol.StatusError, Message: MsgSetFailed},
		},
		{
			name:  "delete fails",
			fault: func(s *storetest.Store) *error { return &s.FailDelete },
			run:   func(d *Dispatcher) protocol.Response { return d.Delete("n1") },
			want:  protocol.Status{Code: protocol.StatusError, Message: MsgDeleteFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, backend := newDispatcher()
			require.NoError(t, backend.IStore.Set("note:n1", []byte(`{"id":"n1"}`)))

			backend.SetFault(tt.fault(backend), errBackend)
			assert.Equal(t, tt.want, tt.run(d))
		})
	}
}

func TestGetFailsOnUndecodableNote(t *testing.T) {
	d, backend := newDispatcher()
	d.Set(protocol.Note{ID: "good"})
	require.NoError(t, backend.IStore.Set("note:bad", []byte("not json")))

	assert.Equal(t, protocol.Status{Code: protocol.StatusError, Message: MsgGetFailed}, d.Get())
}

func TestGetFailsWhenNoteVanishes(t *testing.T) {
	d, backend := newDispatcher()
	d.Set(protocol.Note{ID: "a"})
	d.Set(protocol.Note{ID: "b"})

	// a concurrent delete between listing and fetching
	backend.BeforeGet = func(key string) {
		_, _ = backend.IStore.Delete(key)
	}

	assert.Equal(t, protocol.Status{Code: protocol.StatusError, Message: MsgGetFailed}, d.Get())
}
