package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ValentinKolb/dNotes/notes/auth"
	"github.com/ValentinKolb/dNotes/notes/internal/storetest"
	"github.com/ValentinKolb/dNotes/notes/notestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters, the defaults take too long for a test suite
var testParams = HashParams{Iterations: 1, MemoryKiB: 64, Parallelism: 1, KeyLength: 16, SaltLength: 16}

func newServiceOn(t *testing.T, users UserStore, openSignup bool) *Service {
	t.Helper()
	gate, err := auth.New(auth.ModeUser, "", users)
	require.NoError(t, err)
	svc, err := New(users, gate, Config{Params: testParams, OpenSignup: openSignup})
	require.NoError(t, err)
	return svc
}

func newService(t *testing.T, openSignup bool) (*Service, *storetest.Store) {
	t.Helper()
	backend := storetest.New()
	return newServiceOn(t, notestore.New(backend), openSignup), backend
}

// failingHashWrites fails every write of the password hash
type failingHashWrites struct {
	UserStore
}

func (f failingHashWrites) SetField(key, field string, value []byte) error {
	if field == FieldPasswordHash {
		return errors.New("write failed")
	}
	return f.UserStore.SetField(key, field, value)
}

func TestHashPassword(t *testing.T) {
	hash, salt, err := testParams.HashPassword("secret")
	require.NoError(t, err)

	assert.True(t, testParams.VerifyPassword("secret", hash, salt))
	assert.False(t, testParams.VerifyPassword("Secret", hash, salt))
	assert.False(t, testParams.VerifyPassword("secret", hash, "not base64!"))

	hash2, salt2, err := testParams.HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, salt, salt2, "every hash needs its own salt")
	assert.NotEqual(t, hash, hash2)
}

func TestNewRequiresUserGate(t *testing.T) {
	gate, err := auth.New(auth.ModeNone, "", nil)
	require.NoError(t, err)
	_, err = New(notestore.New(storetest.New()), gate, Config{Params: testParams})
	assert.Error(t, err)

	_, err = New(notestore.New(storetest.New()), nil, Config{Params: testParams})
	assert.Error(t, err)
}

func TestSignupAndLogin(t *testing.T) {
	svc, backend := newService(t, false)

	require.NoError(t, svc.Signup("alice", "pw"))
	assert.ErrorIs(t, svc.Signup("alice", "other"), ErrUserExists)

	_, ok, err := backend.IStore.HGet(auth.UserKey("alice"), FieldPasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("bob", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := svc.Login("alice", "pw")
	require.NoError(t, err)
	stored, ok, err := backend.IStore.HGet(auth.UserKey("alice"), auth.TokenField)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, token, string(stored))

	// a second login replaces the token
	token2, err := svc.Login("alice", "pw")
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestFailedSignupDoesNotBlockTheName(t *testing.T) {
	backend := storetest.New()
	users := notestore.New(backend)

	broken := newServiceOn(t, failingHashWrites{users}, true)
	assert.Error(t, broken.Signup("alice", "pw"))

	_, ok, err := backend.IStore.HGet(auth.UserKey("alice"), FieldPasswordHash)
	require.NoError(t, err)
	assert.False(t, ok, "a failed signup must not leave a password hash")

	svc := newServiceOn(t, users, true)
	require.NoError(t, svc.Signup("alice", "pw"))
	_, err = svc.Login("alice", "pw")
	assert.NoError(t, err)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, backend := newService(t, false)
	require.NoError(t, svc.Signup("alice", "pw"))
	_, err := svc.Login("alice", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Logout("alice"))
	stored, _, err := backend.IStore.HGet(auth.UserKey("alice"), auth.TokenField)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestMissingCredentials(t *testing.T) {
	svc, _ := newService(t, false)

	assert.ErrorIs(t, svc.Signup("", "pw"), ErrMissingCredentials)
	assert.ErrorIs(t, svc.Signup("alice", ""), ErrMissingCredentials)
	_, err := svc.Login("", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestStoreFailure(t *testing.T) {
	svc, backend := newService(t, false)
	require.NoError(t, svc.Signup("alice", "pw"))

	boom := errors.New("store down")
	backend.SetFault(&backend.FailHGet, boom)
	_, err := svc.Login("alice", "pw")
	assert.ErrorIs(t, err, boom)
}

// --------------------------------------------------------------------------
// HTTP
// --------------------------------------------------------------------------

func request(t *testing.T, h http.Handler, method, path string, form url.Values, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOpenSignupHandlers(t *testing.T) {
	svc, _ := newService(t, true)
	h := svc.Routes()
	creds := url.Values{"username": {"alice"}, "password": {"pw"}}

	rec := request(t, h, http.MethodPost, "/signup", creds, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = request(t, h, http.MethodPost, "/signup", creds, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = request(t, h, http.MethodPost, "/signup", url.Values{"username": {"bob"}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = request(t, h, http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"nope"}}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = request(t, h, http.MethodPost, "/login", creds, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "alice", body.Username)
	assert.NotEmpty(t, body.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Equal(t, body.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSignupNeedsLoggedInUser(t *testing.T) {
	svc, _ := newService(t, false)
	h := svc.Routes()
	require.NoError(t, svc.Signup("alice", "pw"))

	rec := request(t, h, http.MethodPost, "/signup", url.Values{"username": {"mallory"}, "password": {"pw"}}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, err := svc.Login("mallory", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "the anonymous signup must not create a user")

	token, err := svc.Login("alice", "pw")
	require.NoError(t, err)

	rec = request(t, h, http.MethodPost, "/signup?username=alice", url.Values{"username": {"bob"}, "password": {"pw"}}, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(t, h, http.MethodPost, "/signup?username=alice", url.Values{"username": {"bob"}, "password": {"pw"}}, token)
	assert.Equal(t, http.StatusCreated, rec.Code)
	_, err = svc.Login("bob", "pw")
	assert.NoError(t, err)
}

func TestProfileAndLogout(t *testing.T) {
	svc, _ := newService(t, false)
	h := svc.Routes()
	require.NoError(t, svc.Signup("alice", "pw"))
	token, err := svc.Login("alice", "pw")
	require.NoError(t, err)

	rec := request(t, h, http.MethodGet, "/profile?username=alice", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = request(t, h, http.MethodGet, "/profile?username=alice", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile profileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	assert.Equal(t, "alice", profile.Username)

	rec = request(t, h, http.MethodPost, "/logout?username=alice", nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)

	// the token is revoked
	rec = request(t, h, http.MethodGet, "/profile?username=alice", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginWithJSONBody(t *testing.T) {
	svc, _ := newService(t, false)
	require.NoError(t, svc.Signup("alice", "pw"))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	svc.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
