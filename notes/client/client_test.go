package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/dNotes/notes/auth"
	"github.com/ValentinKolb/dNotes/notes/internal/storetest"
	"github.com/ValentinKolb/dNotes/notes/protocol"
	"github.com/ValentinKolb/dNotes/notes/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, config server.Config) (string, *storetest.Store) {
	t.Helper()
	backend := storetest.New()
	s, err := server.New(config, backend)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws", backend
}

func TestClientCommands(t *testing.T) {
	endpoint, _ := startServer(t, server.Config{})

	c, err := Dial(context.Background(), endpoint, Options{})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(protocol.Note{ID: "1", Content: "first"}))
	require.NoError(t, c.Set(protocol.Note{ID: "2", Content: "second", Updated: "2024-01-01"}))

	notes, err := c.Get()
	require.NoError(t, err)
	assert.ElementsMatch(t, []protocol.Note{
		{ID: "1", Content: "first"},
		{ID: "2", Content: "second", Updated: "2024-01-01"},
	}, notes)

	require.NoError(t, c.Delete("1"))
	err = c.Delete("1")
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, "server responded with 404: Note not found")
}

func TestClientStaticToken(t *testing.T) {
	endpoint, _ := startServer(t, server.Config{AuthMode: auth.ModeStatic, AuthToken: "tok"})

	c, err := Dial(context.Background(), endpoint, Options{Token: "bad"})
	require.NoError(t, err, "the upgrade succeeds, the rejection comes as close frame")
	// usually ErrUnauthorized, a reset connection may win the race against the close frame
	_, err = c.Get()
	assert.Error(t, err)
	c.Close()

	c, err = Dial(context.Background(), endpoint, Options{Token: "tok"})
	require.NoError(t, err)
	defer c.Close()
	notes, err := c.Get()
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestClientUserToken(t *testing.T) {
	endpoint, backend := startServer(t, server.Config{AuthMode: auth.ModeUser})
	require.NoError(t, backend.IStore.HSet(auth.UserKey("alice"), auth.TokenField, []byte("t-1")))

	c, err := Dial(context.Background(), endpoint, Options{Username: "alice", UserToken: "t-1"})
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Set(protocol.Note{ID: "x"}))
}

func TestDialInvalidEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", Options{})
	assert.Error(t, err)
}
