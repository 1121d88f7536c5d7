package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Note
// --------------------------------------------------------------------------

// Note is a single note as exchanged with clients and persisted in the store.
// Updated is supplied by the client and never interpreted.
type Note struct {
	ID      string `json:"id"`
	Content string `json:"content,omitempty"`
	Updated string `json:"updated,omitempty"`
}

// UnmarshalJSON requires the id field, all other fields are optional.
func (n *Note) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      *string `json:"id"`
		Content string  `json:"content"`
		Updated string  `json:"updated"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID == nil {
		return fmt.Errorf("missing field `id`")
	}
	*n = Note{ID: *raw.ID, Content: raw.Content, Updated: raw.Updated}
	return nil
}

// --------------------------------------------------------------------------
// Command
// --------------------------------------------------------------------------

// Command is the closed set of operations a client can request.
type Command uint8

const (
	CommandGet Command = iota + 1
	CommandSet
	CommandDelete
)

func (c Command) String() string {
	switch c {
	case CommandGet:
		return "Get"
	case CommandSet:
		return "Set"
	case CommandDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

func (c Command) MarshalJSON() ([]byte, error) {
	switch c {
	case CommandGet, CommandSet, CommandDelete:
		return json.Marshal(c.String())
	default:
		return nil, fmt.Errorf("unknown command %d", uint8(c))
	}
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("command must be a string: %w", err)
	}
	switch s {
	case "Get":
		*c = CommandGet
	case "Set":
		*c = CommandSet
	case "Delete":
		*c = CommandDelete
	default:
		return fmt.Errorf("unknown command %q, expected one of `Get`, `Set`, `Delete`", s)
	}
	return nil
}

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

// Request is a decoded inbound message. Note is nil when the client omitted it.
type Request struct {
	Command Command `json:"command"`
	Note    *Note   `json:"note,omitempty"`
}

// DecodeError is returned by Decode, its message is sent back to the client.
type DecodeError struct {
	Msg string
}

func (e *DecodeError) Error() string {
	return e.Msg
}

// Decode parses a text frame into a Request.
// Any error is a *DecodeError and nothing of the frame is applied.
func Decode(raw []byte) (Request, error) {
	var req struct {
		Command *Command `json:"command"`
		Note    *Note    `json:"note"`
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&req); err != nil {
		return Request{}, &DecodeError{Msg: err.Error()}
	}
	if dec.More() {
		return Request{}, &DecodeError{Msg: "trailing data after message"}
	}
	if req.Command == nil {
		return Request{}, &DecodeError{Msg: "missing field `command`"}
	}
	return Request{Command: *req.Command, Note: req.Note}, nil
}

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// Response is either a Status or a Listing.
type Response interface {
	isResponse()
}

// Status is the single outcome form {"response": code, "message"?: text}.
type Status struct {
	Code    uint16 `json:"response"`
	Message string `json:"message,omitempty"`
}

// Listing is the reply to Get, encoded as a bare array of notes.
type Listing []Note

func (Status) isResponse()  {}
func (Listing) isResponse() {}

// Status codes used on the wire.
const (
	StatusOK         uint16 = 200
	StatusBadRequest uint16 = 400
	StatusNotFound   uint16 = 404
	StatusError      uint16 = 500
)

// NewStatus returns a Status without message.
func NewStatus(code uint16) Status {
	return Status{Code: code}
}

// Encode serializes a Response. A nil Listing is encoded as [].
func Encode(resp Response) ([]byte, error) {
	switch r := resp.(type) {
	case Status:
		return json.Marshal(r)
	case Listing:
		if r == nil {
			r = Listing{}
		}
		return json.Marshal([]Note(r))
	default:
		return nil, fmt.Errorf("unsupported response type %T", resp)
	}
}

// DecodeResponse parses a response frame as sent by Encode.
// A JSON array is a Listing, an object is a Status.
func DecodeResponse(raw []byte) (Response, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.New("empty response")
	}

	if trimmed[0] == '[' {
		var listing Listing
		if err := json.Unmarshal(trimmed, &listing); err != nil {
			return nil, err
		}
		if listing == nil {
			listing = Listing{}
		}
		return listing, nil
	}

	var status Status
	if err := json.Unmarshal(trimmed, &status); err != nil {
		return nil, err
	}
	if status.Code == 0 {
		return nil, errors.New("response has no status code")
	}
	return status, nil
}
