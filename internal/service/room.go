package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inkboard/inkboard/internal/domain"
	"github.com/inkboard/inkboard/internal/repository"
)

// Room ids are generated independently of any counter, so creation
// retries on the (unlikely) collision instead of coordinating.
const roomIDAttempts = 5

// emptyBoard is what a fresh room's snapshot deserializes to.
var emptyBoard = []byte("{}")

// RoomService is the room directory: it creates rooms and looks up active
// ones. Inactive and nonexistent rooms are indistinguishable to callers.
type RoomService struct {
	rooms repository.RoomRepository
	ttl   time.Duration
	log   *logrus.Entry
}

func NewRoomService(rooms repository.RoomRepository, ttl time.Duration) *RoomService {
	return &RoomService{
		rooms: rooms,
		ttl:   ttl,
		log:   logrus.WithField("component", "room_service"),
	}
}

// Create allocates a fresh public id and inserts an active room owned by
// host, with the host already in the ever-joined set. The TTL is fixed at
// creation; it does not slide on activity.
func (s *RoomService) Create(ctx context.Context, name string, host *domain.User) (*domain.Room, error) {
	now := time.Now()
	room := &domain.Room{
		ID:            uuid.New(),
		Name:          name,
		HostID:        host.ID,
		Active:        true,
		BoardSnapshot: emptyBoard,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	for attempt := 0; attempt < roomIDAttempts; attempt++ {
		room.PublicID = NewRoomID()
		err := s.rooms.Create(ctx, room)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"room_id": room.PublicID,
				"host_id": host.ID,
			}).Info("room created")
			return room, nil
		}
		if errors.Is(err, repository.ErrDuplicateKey) {
			s.log.WithField("room_id", room.PublicID).Warn("room id collision, regenerating")
			room.ID = uuid.New()
			continue
		}
		return nil, fmt.Errorf("%w: creating room: %v", ErrStoreUnavailable, err)
	}
	return nil, fmt.Errorf("%w: exhausted room id attempts", ErrStoreUnavailable)
}

// FindActive looks up a room by public id, restricted to active rooms.
func (s *RoomService) FindActive(ctx context.Context, publicID string) (*domain.Room, error) {
	room, err := s.rooms.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, fmt.Errorf("%w: finding room %s: %v", ErrStoreUnavailable, publicID, err)
	}
	if room == nil {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, publicID)
	}
	if !room.Active {
		// Closed rooms are read-only history; callers see NotFound.
		return nil, fmt.Errorf("%w: %s is closed", ErrRoomNotFound, publicID)
	}
	return room, nil
}

// Close marks the room inactive. Terminal: a closed room never reopens.
func (s *RoomService) Close(ctx context.Context, publicID string) error {
	if err := s.rooms.SetInactive(ctx, publicID); err != nil {
		return fmt.Errorf("%w: closing room %s: %v", ErrStoreUnavailable, publicID, err)
	}
	s.log.WithField("room_id", publicID).Info("room closed")
	return nil
}

// RecordJoin adds the identity to the room's ever-joined set. The set
// only grows; rejoining is a no-op at the store level.
func (s *RoomService) RecordJoin(ctx context.Context, publicID string, userID uuid.UUID) error {
	if err := s.rooms.AddMember(ctx, publicID, userID); err != nil {
		return fmt.Errorf("%w: recording join for %s: %v", ErrStoreUnavailable, publicID, err)
	}
	return nil
}

const roomIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewRoomID returns a short URL-safe public room id, e.g. "rm_ab12cd34".
func NewRoomID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; nothing sensible can continue from there.
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = roomIDAlphabet[int(b)%len(roomIDAlphabet)]
	}
	return "rm_" + string(buf)
}
