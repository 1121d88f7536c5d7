package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dNotes/lib/db"
	"github.com/ValentinKolb/dNotes/lib/db/engines/maple"
	"github.com/ValentinKolb/dNotes/lib/store/lstore"
	"github.com/ValentinKolb/dNotes/notes/account"
	"github.com/ValentinKolb/dNotes/notes/auth"
	"github.com/ValentinKolb/dNotes/notes/internal/storetest"
	"github.com/ValentinKolb/dNotes/notes/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = account.HashParams{Iterations: 1, MemoryKiB: 64, Parallelism: 1, KeyLength: 16, SaltLength: 16}

func startServer(t *testing.T, config Config) (*httptest.Server, *storetest.Store, *Server) {
	t.Helper()
	backend := storetest.New()
	config.HashParams = testParams
	s, err := New(config, backend)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, backend, s
}

func dial(t *testing.T, ts *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// roundTrip sends one text frame and returns the response frame
func roundTrip(t *testing.T, conn *websocket.Conn, msg string) string {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, typ)
	return string(data)
}

func requireClosedWith(t *testing.T, conn *websocket.Conn, code int, reason string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, code, closeErr.Code)
	assert.Equal(t, reason, closeErr.Text)
}

func TestNoteScenario(t *testing.T) {
	ts, _, _ := startServer(t, Config{})
	conn := dial(t, ts, "", nil)

	assert.JSONEq(t, `{"response":200}`,
		roundTrip(t, conn, `{"command":"Set","note":{"id":"a","content":"hi","updated":"t1"}}`))
	assert.JSONEq(t, `[{"id":"a","content":"hi","updated":"t1"}]`,
		roundTrip(t, conn, `{"command":"Get"}`))
	assert.JSONEq(t, `{"response":200}`,
		roundTrip(t, conn, `{"command":"Delete","note":{"id":"a"}}`))
	assert.JSONEq(t, `{"response":404,"message":"Note not found"}`,
		roundTrip(t, conn, `{"command":"Delete","note":{"id":"a"}}`))
	assert.Equal(t, `[]`, roundTrip(t, conn, `{"command":"Get"}`))
}

func TestSetOverwritesAndConnectionsShareTheStore(t *testing.T) {
	ts, _, _ := startServer(t, Config{Guard: true})
	first := dial(t, ts, "", nil)
	second := dial(t, ts, "", nil)

	roundTrip(t, first, `{"command":"Set","note":{"id":"n","content":"v1"}}`)
	roundTrip(t, second, `{"command":"Set","note":{"id":"n","content":"v2"}}`)

	assert.JSONEq(t, `[{"id":"n","content":"v2"}]`, roundTrip(t, first, `{"command":"Get"}`))
}

func TestInvalidMessagesKeepTheConnectionOpen(t *testing.T) {
	ts, backend, _ := startServer(t, Config{})
	conn := dial(t, ts, "", nil)

	resp := roundTrip(t, conn, `{"command":"Frobnicate"}`)
	assert.Contains(t, resp, `"response":400`)
	assert.Contains(t, resp, `"message"`)

	assert.JSONEq(t, `{"response":400,"message":"Note is required"}`, roundTrip(t, conn, `{"command":"Set"}`))
	assert.JSONEq(t, `{"response":400,"message":"Note is required"}`, roundTrip(t, conn, `{"command":"Delete"}`))
	assert.Zero(t, backend.Calls(), "rejected messages must not reach the store")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":400}`, string(data))

	assert.Equal(t, `[]`, roundTrip(t, conn, `{"command":"Get"}`))
}

func TestStaticGate(t *testing.T) {
	ts, _, _ := startServer(t, Config{AuthMode: auth.ModeStatic, AuthToken: "s3cret"})

	rejected := dial(t, ts, "token=wrong", nil)
	requireClosedWith(t, rejected, session.CloseUnauthorized, session.CloseReasonUnauthorized)

	admitted := dial(t, ts, "token=s3cret", nil)
	assert.Equal(t, `[]`, roundTrip(t, admitted, `{"command":"Get"}`))
}

func TestUserGateWithoutCookie(t *testing.T) {
	ts, backend, s := startServer(t, Config{AuthMode: auth.ModeUser})
	require.NoError(t, backend.IStore.Set("note:secret", []byte(`{"id":"secret"}`)))
	require.NoError(t, backend.IStore.HSet(auth.UserKey("alice"), auth.TokenField, []byte("tok")))

	conn := dial(t, ts, "username=alice", nil)
	requireClosedWith(t, conn, session.CloseUnauthorized, session.CloseReasonUnauthorized)

	assert.Zero(t, backend.NoteReads(), "no note may be read before the gate admits the session")
	assert.Zero(t, s.Metrics().ActiveSessions())
}

func TestAccountLoginThenConnect(t *testing.T) {
	ts, _, _ := startServer(t, Config{AuthMode: auth.ModeUser, OpenSignup: true})
	creds := url.Values{"username": {"alice"}, "password": {"pw"}}

	resp, err := http.PostForm(ts.URL+"/account/signup", creds)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.PostForm(ts.URL+"/account/login", creds)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	header := http.Header{}
	header.Set("Cookie", (&http.Cookie{Name: auth.CookieName, Value: token}).String())

	conn := dial(t, ts, "username=alice", header)
	assert.JSONEq(t, `{"response":200}`, roundTrip(t, conn, `{"command":"Set","note":{"id":"1"}}`))

	other := dial(t, ts, "username=bob", header)
	requireClosedWith(t, other, session.CloseUnauthorized, session.CloseReasonUnauthorized)
}

func TestAnonymousSignupIsRejected(t *testing.T) {
	ts, backend, _ := startServer(t, Config{AuthMode: auth.ModeUser})
	require.NoError(t, backend.IStore.Set("note:secret", []byte(`{"id":"secret","content":"owner only"}`)))
	creds := url.Values{"username": {"stranger"}, "password": {"pw"}}

	resp, err := http.PostForm(ts.URL+"/account/signup", creds)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.PostForm(ts.URL+"/account/login", creds)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, backend.NoteReads())
}

func TestLogoutRevokesWebSocketAccess(t *testing.T) {
	ts, _, _ := startServer(t, Config{AuthMode: auth.ModeUser, OpenSignup: true})
	creds := url.Values{"username": {"alice"}, "password": {"pw"}}

	resp, err := http.PostForm(ts.URL+"/account/signup", creds)
	require.NoError(t, err)
	resp.Body.Close()
	resp, err = http.PostForm(ts.URL+"/account/login", creds)
	require.NoError(t, err)
	resp.Body.Close()
	require.Len(t, resp.Cookies(), 1)
	cookie := resp.Cookies()[0]

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/account/profile?username=alice", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"username":"alice"}`, string(body))

	req, err = http.NewRequest(http.MethodPost, ts.URL+"/account/logout?username=alice", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	header := http.Header{}
	header.Set("Cookie", cookie.String())
	conn := dial(t, ts, "username=alice", header)
	requireClosedWith(t, conn, session.CloseUnauthorized, session.CloseReasonUnauthorized)
}

func TestAccountRoutesOnlyInUserMode(t *testing.T) {
	ts, _, _ := startServer(t, Config{})

	resp, err := http.PostForm(ts.URL+"/account/signup", url.Values{"username": {"a"}, "password": {"b"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIndexHealthAndMetrics(t *testing.T) {
	ts, _, _ := startServer(t, Config{Metrics: true})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "📝")

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conn := dial(t, ts, "", nil)
	roundTrip(t, conn, `{"command":"Get"}`)

	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `dnotes_commands_total{command="Get",status="200"} 1`)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMetricsDisabled(t *testing.T) {
	ts, _, _ := startServer(t, Config{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAllowedOrigins(t *testing.T) {
	u := func(ts *httptest.Server) string { return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" }
	withOrigin := func(origin string) http.Header {
		h := http.Header{}
		h.Set("Origin", origin)
		return h
	}

	// same origin only by default
	ts, _, _ := startServer(t, Config{})
	_, resp, err := websocket.DefaultDialer.Dial(u(ts), withOrigin("http://localhost:5173"))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ts, _, _ = startServer(t, Config{AllowedOrigins: []string{"http://localhost:5173/"}})
	conn, _, err := websocket.DefaultDialer.Dial(u(ts), withOrigin("http://localhost:5173"))
	require.NoError(t, err)
	assert.Equal(t, `[]`, roundTrip(t, conn, `{"command":"Get"}`))
	conn.Close()

	_, resp, err = websocket.DefaultDialer.Dial(u(ts), withOrigin("http://evil.example"))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ts, _, _ = startServer(t, Config{AllowedOrigins: []string{"*"}})
	conn, _, err = websocket.DefaultDialer.Dial(u(ts), withOrigin("http://evil.example"))
	require.NoError(t, err)
	conn.Close()
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	ts, _, _ := startServer(t, Config{MaxMessageSize: 128})
	conn := dial(t, ts, "", nil)

	big := `{"command":"Set","note":{"id":"x","content":"` + strings.Repeat("a", 1024) + `"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))
	requireClosedWith(t, conn, websocket.CloseMessageTooBig, "")
}

func TestNoSessionsAfterShutdownStarted(t *testing.T) {
	ts, _, s := startServer(t, Config{})
	conn := dial(t, ts, "", nil)
	roundTrip(t, conn, `{"command":"Get"}`)

	s.closeSessions()
	requireClosedWith(t, conn, websocket.CloseGoingAway, "server shutdown")

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	_, err = New(Config{AuthMode: auth.ModeStatic}, storetest.New())
	assert.Error(t, err, "static mode needs a token")

	_, err = New(Config{AuthMode: "oauth"}, storetest.New())
	assert.Error(t, err)

	_, err = New(Config{SnapshotFile: "notes.snap"}, storetest.New())
	assert.Error(t, err, "the test store cannot snapshot")

	_, err = New(Config{AllowedOrigins: []string{"localhost:5173"}}, storetest.New())
	assert.Error(t, err, "origins need a scheme")
}

func TestRunWritesAndRestoresSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.snap")
	newLocal := func() *Server {
		s, err := New(Config{Endpoint: "127.0.0.1:0", SnapshotFile: path},
			lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }))
		require.NoError(t, err)
		return s
	}

	first := newLocal()
	require.NoError(t, first.backend.Set("note:kept", []byte(`{"id":"kept","content":"x"}`)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, err := os.Stat(path)
	require.NoError(t, err, "shutdown must write the snapshot")

	second := newLocal()
	require.NoError(t, second.restore())
	raw, ok, err := second.backend.Get("note:kept")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"kept","content":"x"}`, string(raw))
}

func TestRestoreWithoutSnapshotStartsEmpty(t *testing.T) {
	s, err := New(Config{SnapshotFile: filepath.Join(t.TempDir(), "missing.snap")},
		lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }))
	require.NoError(t, err)
	assert.NoError(t, s.restore())
}
