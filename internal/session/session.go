// Package session keeps the active table of each upload session.
//
// Every session owns exactly one table slot. An upload replaces the slot, an
// accepted transformation replaces it again, and the slot is dropped when the
// session expires. Slots are never shared between sessions.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tablefix/internal/table"
)

// ErrNotFound is returned when a session has no table, either because
// nothing was uploaded yet or because the session expired.
var ErrNotFound = errors.New("session not found")

// ErrInvalidID is returned for session ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid session id")

// State is the content of one session slot.
type State struct {
	Table     table.Table `json:"table"`
	Filename  string      `json:"filename"`
	Ext       string      `json:"extension"`
	Encoding  string      `json:"encoding,omitempty"`
	DatasetID uuid.UUID   `json:"dataset_id"`
	Revision  int         `json:"revision"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store holds session state keyed by session id.
type Store interface {
	// Get returns the state for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*State, error)

	// Put replaces the state for id and refreshes its expiry.
	Put(ctx context.Context, id string, st *State) error

	// Delete drops the state for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// ValidateID checks that id looks like a session id issued by NewID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
