package dispatch

import (
	"errors"
	"github.com/ValentinKolb/dNotes/notes/notestore"
	"github.com/ValentinKolb/dNotes/notes/protocol"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("notes")

// Messages sent with a 500 status. The cause is only logged.
const (
	MsgGetFailed    = "An error occurred while retrieving the notes"
	MsgSetFailed    = "An error occurred while saving the note"
	MsgDeleteFailed = "An error occurred while deleting the note"
	MsgNotFound     = "Note not found"
)

// Store is what the dispatcher needs from the note store.
type Store interface {
	Keys() ([]string, error)
	Load(key string) (protocol.Note, error)
	Save(note protocol.Note) error
	Remove(id string) (bool, error)
}

// Dispatcher executes commands against a Store and turns every outcome into a Response.
// It holds no state and is shared by all sessions.
type Dispatcher struct {
	store Store
}

// New creates a Dispatcher.
func New(store Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Get lists all notes. Any failure aborts the listing, no partial result is returned.
func (d *Dispatcher) Get() protocol.Response {
	keys, err := d.store.Keys()
	if err != nil {
		log.Errorf("Get: failed to list notes: %v", err)
		return protocol.Status{Code: protocol.StatusError, Message: MsgGetFailed}
	}

	notes := make(protocol.Listing, 0, len(keys))
	for _, key := range keys {
		note, err := d.store.Load(key)
		if err != nil {
			if errors.Is(err, notestore.ErrNotFound) {
				log.Errorf("Get: note %q vanished while listing", notestore.ID(key))
			} else {
				log.Errorf("Get: failed to load note %q: %v", notestore.ID(key), err)
			}
			return protocol.Status{Code: protocol.StatusError, Message: MsgGetFailed}
		}
		notes = append(notes, note)
	}

	log.Debugf("Get: returned %d notes", len(notes))
	return notes
}

// Set stores the note, replacing any note with the same id.
func (d *Dispatcher) Set(note protocol.Note) protocol.Response {
	if err := d.store.Save(note); err != nil {
		log.Errorf("Set: failed to save note %q: %v", note.ID, err)
		return protocol.Status{Code: protocol.StatusError, Message: MsgSetFailed}
	}
	log.Infof("Saved note: %q", note.ID)
	return protocol.NewStatus(protocol.StatusOK)
}

// Delete removes the note with the given id. A missing note is answered with 404.
func (d *Dispatcher) Delete(id string) protocol.Response {
	removed, err := d.store.Remove(id)
	if err != nil {
		log.Errorf("Delete: failed to delete note %q: %v", id, err)
		return protocol.Status{Code: protocol.StatusError, Message: MsgDeleteFailed}
	}
	if !removed {
		log.Infof("Delete: note %q does not exist", id)
		return protocol.Status{Code: protocol.StatusNotFound, Message: MsgNotFound}
	}
	log.Infof("Deleted note: %q", id)
	return protocol.NewStatus(protocol.StatusOK)
}
