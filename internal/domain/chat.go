package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one immutable text entry in a room's chat log. Messages
// reference their room by public id on purpose: rooms are hard-deleted by
// the TTL reaper and the chat cascade runs separately off the deletion
// feed, so a foreign key would fight the reaper.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	RoomID     string    `json:"room_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`

	// Seq breaks created_at ties in insertion order.
	Seq int64 `json:"-"`
}
