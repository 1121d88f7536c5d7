package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"net/http"
)

var log = logger.GetLogger("auth")

const (
	// CookieName carries the per-user WebSocket token issued at login.
	CookieName = "__Host.__ws"
	// TokenField is the field of a user record holding the WebSocket token.
	TokenField = "wsToken"
	// UserPrefix is the namespace of user records.
	UserPrefix = "user:"

	// TokenParam and UserParam are the query parameters of the upgrade request.
	TokenParam = "token"
	UserParam  = "username"
)

// ErrUnauthorized is returned for every rejected connection. The wrapped
// message names the cause for the server log, clients never see it.
var ErrUnauthorized = errors.New("unauthorized")

// Mode selects the gate.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeStatic Mode = "static"
	ModeUser   Mode = "user"
)

// UserKey returns the store key of a user record.
func UserKey(username string) string {
	return UserPrefix + username
}

// Gate decides once per connection, before the message loop, whether it may proceed.
type Gate interface {
	// Admit checks the upgrade request and returns nil or an error wrapping ErrUnauthorized.
	// Store failures are returned as is.
	Admit(r *http.Request) error
	Mode() Mode
}

// TokenStore gives access to user record fields.
type TokenStore interface {
	Field(key, field string) ([]byte, bool, error)
}

// New creates the gate for mode. token is only used by ModeStatic and store only by ModeUser.
func New(mode Mode, token string, store TokenStore) (Gate, error) {
	switch mode {
	case ModeNone, "":
		return noneGate{}, nil
	case ModeStatic:
		if token == "" {
			return nil, fmt.Errorf("auth mode %s requires a token", mode)
		}
		return staticGate{token: []byte(token)}, nil
	case ModeUser:
		if store == nil {
			return nil, fmt.Errorf("auth mode %s requires a store", mode)
		}
		return userGate{store: store}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q, must be one of none, static, user", mode)
	}
}

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Gates
// --------------------------------------------------------------------------

// noneGate admits everybody
type noneGate struct{}

func (noneGate) Admit(*http.Request) error { return nil }
func (noneGate) Mode() Mode                { return ModeNone }

// staticGate compares the token query parameter against one process wide secret
type staticGate struct {
	token []byte
}

func (g staticGate) Admit(r *http.Request) error {
	presented := r.URL.Query().Get(TokenParam)
	if presented == "" {
		return reject("no token presented")
	}
	if subtle.ConstantTimeCompare([]byte(presented), g.token) != 1 {
		return reject("token mismatch")
	}
	return nil
}

func (staticGate) Mode() Mode { return ModeStatic }

// userGate compares the token cookie against the wsToken stored for the user
type userGate struct {
	store TokenStore
}

func (g userGate) Admit(r *http.Request) error {
	username := r.URL.Query().Get(UserParam)
	if username == "" {
		return reject("no username presented")
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return reject("no token cookie presented by user %q", username)
	}

	stored, ok, err := g.store.Field(UserKey(username), TokenField)
	if err != nil {
		log.Errorf("failed to load token of user %q: %v", username, err)
		return err
	}
	if !ok || len(stored) == 0 {
		return reject("no token stored for user %q", username)
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), stored) != 1 {
		return reject("token mismatch for user %q", username)
	}
	return nil
}

func (userGate) Mode() Mode { return ModeUser }
