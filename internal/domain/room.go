package domain

import (
	"time"

	"github.com/google/uuid"
)

// Room is a collaboration session. The live roster is not part of this
// record: it exists only in memory, keyed by connection, and is rebuilt
// from clients that rejoin after a restart. The store holds everything
// that must survive a crash: the latest board snapshot, the ever-joined
// audit set and the chat log.
type Room struct {
	ID            uuid.UUID `json:"-"`
	PublicID      string    `json:"room_id"`
	Name          string    `json:"name"`
	HostID        uuid.UUID `json:"host_id"`
	Active        bool      `json:"active"`
	BoardSnapshot []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
