package session

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNotes/notes/auth"
	"github.com/ValentinKolb/dNotes/notes/dispatch"
	"github.com/ValentinKolb/dNotes/notes/metrics"
	"github.com/ValentinKolb/dNotes/notes/protocol"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"net/http"
	"time"
)

var log = logger.GetLogger("session")

const (
	// CloseUnauthorized is the close code sent when the auth gate rejects a connection.
	CloseUnauthorized = 4401
	// CloseReasonUnauthorized is the close reason sent with CloseUnauthorized.
	CloseReasonUnauthorized = "unauthorized"

	// MsgNoteRequired is sent when Set or Delete comes without a note.
	MsgNoteRequired = "Note is required"

	// DefaultMaxMessageSize bounds a single inbound frame. A larger frame ends the session.
	DefaultMaxMessageSize int64 = 1 << 20

	controlWriteWait = 5 * time.Second
)

// Conn is the part of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// State of a session.
type State uint8

const (
	StateUnauthenticated State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Handler holds what is shared by all sessions.
type Handler struct {
	Gate       auth.Gate
	Dispatcher *dispatch.Dispatcher
	Metrics    *metrics.Metrics

	// MaxMessageSize overrides DefaultMaxMessageSize when > 0
	MaxMessageSize int64
}

// Session is the lifetime of a single connection.
type Session struct {
	handler *Handler
	conn    Conn
	remote  string
	state   State
}

// New creates a session for an upgraded connection.
// remote is only used for logging.
func (h *Handler) New(conn Conn, remote string) *Session {
	limit := h.MaxMessageSize
	if limit <= 0 {
		limit = DefaultMaxMessageSize
	}
	conn.SetReadLimit(limit)

	state := StateActive
	if h.Gate != nil && h.Gate.Mode() != auth.ModeNone {
		state = StateUnauthenticated
	}
	return &Session{handler: h, conn: conn, remote: remote, state: state}
}

// State returns the current state of the session.
func (s *Session) State() State {
	return s.state
}

// Serve authenticates the connection using the upgrade request r and then runs
// the message loop until the peer closes or the transport fails.
// The connection is closed when Serve returns. A clean close returns nil.
func (s *Session) Serve(r *http.Request) error {
	defer func() {
		s.state = StateClosed
		_ = s.conn.Close()
	}()

	if s.state == StateUnauthenticated {
		if err := s.authenticate(r); err != nil {
			return err
		}
	}

	s.handler.Metrics.SessionOpened()
	defer s.handler.Metrics.SessionClosed()

	log.Infof("session %s active", s.remote)
	return s.loop()
}

func (s *Session) authenticate(r *http.Request) error {
	err := s.handler.Gate.Admit(r)
	if err == nil {
		s.state = StateActive
		return nil
	}

	s.handler.Metrics.SessionRejected()

	code, reason := CloseUnauthorized, CloseReasonUnauthorized
	if errors.Is(err, auth.ErrUnauthorized) {
		log.Warningf("session %s rejected: %v", s.remote, err)
	} else {
		code, reason = websocket.CloseInternalServerErr, "internal error"
		log.Errorf("session %s: auth check failed: %v", s.remote, err)
	}

	msg := websocket.FormatCloseMessage(code, reason)
	if werr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait)); werr != nil {
		log.Debugf("session %s: failed to send close frame: %v", s.remote, werr)
	}
	return err
}

func (s *Session) loop() error {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Infof("session %s closed by peer", s.remote)
				return nil
			}
			log.Infof("session %s ended: %v", s.remote, err)
			return err
		}

		var resp protocol.Response
		var command string

		if msgType != websocket.TextMessage {
			log.Debugf("session %s: rejected non-text frame of type %d", s.remote, msgType)
			resp = protocol.NewStatus(protocol.StatusBadRequest)
		} else if req, err := protocol.Decode(data); err != nil {
			log.Errorf("session %s: failed to decode message: %v", s.remote, err)
			resp = protocol.Status{Code: protocol.StatusBadRequest, Message: err.Error()}
		} else {
			command = req.Command.String()
			resp = s.handle(req)
		}

		if err := s.send(resp); err != nil {
			log.Infof("session %s: failed to send response: %v", s.remote, err)
			return err
		}
		s.handler.Metrics.CommandHandled(command, statusOf(resp))
	}
}

// handle runs a decoded request, Set and Delete must carry a note
func (s *Session) handle(req protocol.Request) protocol.Response {
	d := s.handler.Dispatcher
	switch req.Command {
	case protocol.CommandGet:
		return d.Get()
	case protocol.CommandSet:
		if req.Note == nil {
			return protocol.Status{Code: protocol.StatusBadRequest, Message: MsgNoteRequired}
		}
		return d.Set(*req.Note)
	case protocol.CommandDelete:
		if req.Note == nil {
			return protocol.Status{Code: protocol.StatusBadRequest, Message: MsgNoteRequired}
		}
		return d.Delete(req.Note.ID)
	default:
		return protocol.Status{Code: protocol.StatusBadRequest, Message: fmt.Sprintf("unknown command %s", req.Command)}
	}
}

func (s *Session) send(resp protocol.Response) error {
	raw, err := protocol.Encode(resp)
	if err != nil {
		log.Errorf("session %s: failed to encode response: %v", s.remote, err)
		raw, _ = protocol.Encode(protocol.NewStatus(protocol.StatusError))
	}
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

func statusOf(resp protocol.Response) uint16 {
	if st, ok := resp.(protocol.Status); ok {
		return st.Code
	}
	return protocol.StatusOK
}
