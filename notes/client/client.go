package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNotes/notes/auth"
	"github.com/ValentinKolb/dNotes/notes/protocol"
	"github.com/ValentinKolb/dNotes/notes/session"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"net/http"
	"net/url"
	"time"
)

var log = logger.GetLogger("cli")

// Options for Dial. Token is used for the static gate, Username and UserToken for the user gate.
type Options struct {
	Token     string
	Username  string
	UserToken string
	Timeout   time.Duration
}

// StatusError is returned for every status response other than 200.
type StatusError struct {
	Status protocol.Status
}

func (e *StatusError) Error() string {
	if e.Status.Message == "" {
		return fmt.Sprintf("server responded with %d", e.Status.Code)
	}
	return fmt.Sprintf("server responded with %d: %s", e.Status.Code, e.Status.Message)
}

// IsNotFound reports whether err is a 404 status.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status.Code == protocol.StatusNotFound
}

// Client speaks the note protocol over one WebSocket connection.
// It is not safe for concurrent use, requests are strictly sequential.
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// Dial connects to the /ws endpoint at endpoint (ws:// or wss:// URL).
func Dial(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	q := u.Query()
	if opts.Token != "" {
		q.Set(auth.TokenParam, opts.Token)
	}
	if opts.Username != "" {
		q.Set(auth.UserParam, opts.Username)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if opts.UserToken != "" {
		header.Set("Cookie", (&http.Cookie{Name: auth.CookieName, Value: opts.UserToken}).String())
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", u.Redacted(), err)
	}
	log.Debugf("connected to %s", u.Redacted())

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Get returns all notes.
func (c *Client) Get() ([]protocol.Note, error) {
	resp, err := c.do(protocol.Request{Command: protocol.CommandGet})
	if err != nil {
		return nil, err
	}
	listing, ok := resp.(protocol.Listing)
	if !ok {
		return nil, statusError(resp)
	}
	return listing, nil
}

// Set creates or replaces a note.
func (c *Client) Set(note protocol.Note) error {
	resp, err := c.do(protocol.Request{Command: protocol.CommandSet, Note: &note})
	if err != nil {
		return err
	}
	return statusError(resp)
}

// Delete removes the note with id. A missing note is reported by IsNotFound.
func (c *Client) Delete(id string) error {
	resp, err := c.do(protocol.Request{Command: protocol.CommandDelete, Note: &protocol.Note{ID: id}})
	if err != nil {
		return err
	}
	return statusError(resp)
}

// Close sends a normal close frame and closes the connection.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *Client) do(req protocol.Request) (protocol.Response, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return nil, err
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == session.CloseUnauthorized {
			return nil, fmt.Errorf("%w: connection rejected by server", auth.ErrUnauthorized)
		}
		return nil, err
	}
	return protocol.DecodeResponse(data)
}

// statusError turns a non-200 response into a *StatusError
func statusError(resp protocol.Response) error {
	st, ok := resp.(protocol.Status)
	if !ok {
		return fmt.Errorf("unexpected listing response")
	}
	if st.Code != protocol.StatusOK {
		return &StatusError{Status: st}
	}
	return nil
}
