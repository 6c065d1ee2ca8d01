package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/inkboard/inkboard/internal/domain"
)

// ErrDuplicateKey is returned by Create operations that hit a uniqueness
// constraint, so callers can retry with a fresh id.
var ErrDuplicateKey = errors.New("duplicate key")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type RoomRepository interface {
	// Create inserts the room together with its host's ever-joined row.
	// Either both are visible afterwards or neither is.
	Create(ctx context.Context, room *domain.Room) error
	GetByPublicID(ctx context.Context, publicID string) (*domain.Room, error)
	SetInactive(ctx context.Context, publicID string) error
	SaveBoardSnapshot(ctx context.Context, publicID string, blob []byte) error
	// AddMember records an identity in the room's ever-joined set.
	// Re-adding an existing member is a no-op.
	AddMember(ctx context.Context, publicID string, userID uuid.UUID) error
	ListMembers(ctx context.Context, publicID string) ([]uuid.UUID, error)
	// DeleteExpired removes rooms whose expires_at has passed and returns
	// how many were reaped. Deletions surface on the deletion feed.
	DeleteExpired(ctx context.Context) (int64, error)
}

type ChatRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	// ListByRoom returns the room's messages ordered by created_at
	// ascending, insertion order breaking ties.
	ListByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
}

// BoardCache holds the live board blob per room. Get returns (nil, nil)
// on a cache miss.
type BoardCache interface {
	Set(ctx context.Context, roomID string, blob []byte) error
	Get(ctx context.Context, roomID string) ([]byte, error)
	Delete(ctx context.Context, roomID string) error
}

// DeletionFeed streams the public ids of rooms removed from the store.
// Watch blocks, invoking handle once per deleted room, until the feed
// breaks or ctx is cancelled; the caller restarts it with backoff.
type DeletionFeed interface {
	Watch(ctx context.Context, handle func(roomID string)) error
}
