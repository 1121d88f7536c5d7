package account

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/dNotes/notes/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"mime"
	"net/http"
)

var log = logger.GetLogger("account")

// Fields of a user record besides auth.TokenField.
const (
	FieldPasswordHash = "passwordHash"
	FieldSalt         = "salt"
)

// UserStore is the access to user records the account handlers need.
type UserStore interface {
	Field(key, field string) ([]byte, bool, error)
	SetField(key, field string, value []byte) error
}

// Config of the account service.
type Config struct {
	// Params are the Argon2id parameters for new and checked passwords
	Params HashParams
	// OpenSignup lets anonymous clients create accounts. Without it only a
	// logged in user can sign up new users.
	OpenSignup bool
}

// Service issues per-user WebSocket tokens.
type Service struct {
	store      UserStore
	gate       auth.Gate
	params     HashParams
	openSignup bool
}

// New creates the account service. gate must be the user gate, it guards
// profile, logout and (unless OpenSignup is set) signup.
func New(store UserStore, gate auth.Gate, config Config) (*Service, error) {
	if gate == nil || gate.Mode() != auth.ModeUser {
		return nil, errors.New("accounts require the user auth gate")
	}
	return &Service{
		store:      store,
		gate:       gate,
		params:     config.Params,
		openSignup: config.OpenSignup,
	}, nil
}

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Signup creates user:<username> with a password hash and salt.
//
// A user exists once its password hash is written, so the salt goes first and
// a failed signup never leaves a record that blocks the name. Two concurrent
// signups for the same name can both pass the check, the later write wins:
// the store has no compare-and-set.
func (s *Service) Signup(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	key := auth.UserKey(username)
	_, exists, err := s.store.Field(key, FieldPasswordHash)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}

	hash, salt, err := s.params.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.SetField(key, FieldSalt, []byte(salt)); err != nil {
		return err
	}
	return s.store.SetField(key, FieldPasswordHash, []byte(hash))
}

// Login checks the password and stores a new WebSocket token on the user record.
// Any previously issued token stops working.
func (s *Service) Login(username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrMissingCredentials
	}

	key := auth.UserKey(username)
	hash, okHash, err := s.store.Field(key, FieldPasswordHash)
	if err != nil {
		return "", err
	}
	salt, okSalt, err := s.store.Field(key, FieldSalt)
	if err != nil {
		return "", err
	}
	if !okHash || !okSalt || !s.params.VerifyPassword(password, string(hash), string(salt)) {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.store.SetField(key, auth.TokenField, []byte(token)); err != nil {
		return "", err
	}
	return token, nil
}

// Logout revokes the WebSocket token of the user. The user gate rejects an empty token.
func (s *Service) Logout(username string) error {
	return s.store.SetField(auth.UserKey(username), auth.TokenField, []byte{})
}

// --------------------------------------------------------------------------
// HTTP handlers
// --------------------------------------------------------------------------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type profileResponse struct {
	Username string `json:"username"`
}

type userCtxKey struct{}

// Routes mounts POST /signup, POST /login, GET /profile and POST /logout.
// Profile and logout identify the user like the WebSocket endpoint: the
// username query parameter plus the token cookie.
func (s *Service) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		if !s.openSignup {
			r.Use(s.requireUser)
		}
		r.Post("/signup", s.handleSignup)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/profile", s.handleProfile)
		r.Post("/logout", s.handleLogout)
	})
	return r
}

// requireUser admits requests that pass the user gate
func (s *Service) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.gate.Admit(r)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrUnauthorized):
			log.Infof("%s %s rejected: %v", r.Method, r.URL.Path, err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		default:
			log.Errorf("%s %s: auth check failed: %v", r.Method, r.URL.Path, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		username := r.URL.Query().Get(auth.UserParam)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, username)))
	})
}

func userFrom(r *http.Request) string {
	username, _ := r.Context().Value(userCtxKey{}).(string)
	return username
}

// readCredentials accepts a JSON body or a form
func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&c)
		return c, err
	}
	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.Username = r.PostForm.Get("username")
	c.Password = r.PostForm.Get("password")
	return c, nil
}

func (s *Service) handleSignup(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch err := s.Signup(c.Username, c.Password); {
	case err == nil:
		if by := userFrom(r); by != "" {
			log.Infof("user %q registered user %q", by, c.Username)
		} else {
			log.Infof("registered user %q", c.Username)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("User registered successfully."))
	case errors.Is(err, ErrMissingCredentials):
		http.Error(w, "Username and password are required.", http.StatusBadRequest)
	case errors.Is(err, ErrUserExists):
		http.Error(w, "User already exists.", http.StatusConflict)
	default:
		log.Errorf("signup of %q failed: %v", c.Username, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.Login(c.Username, c.Password)
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingCredentials):
		http.Error(w, "Username and password are required.", http.StatusBadRequest)
		return
	case errors.Is(err, ErrInvalidCredentials):
		log.Infof("failed login for %q", c.Username)
		http.Error(w, "Invalid username or password.", http.StatusUnauthorized)
		return
	default:
		log.Errorf("login of %q failed: %v", c.Username, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	log.Infof("user %q logged in", c.Username)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loginResponse{Username: c.Username, Token: token})
}

func (s *Service) handleProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(profileResponse{Username: userFrom(r)})
}

func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	username := userFrom(r)
	if err := s.Logout(username); err != nil {
		log.Errorf("logout of %q failed: %v", username, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	log.Infof("user %q logged out", username)
	w.WriteHeader(http.StatusNoContent)
}
