package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/inkboard/inkboard/internal/domain"
)

// In-memory repository fakes shared by the service tests.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	err   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

type fakeRoomRepo struct {
	mu         sync.Mutex
	rooms      map[string]*domain.Room
	members    map[string][]uuid.UUID
	triedIDs   []string
	createErrs []error // popped one per Create call
	saveErrs   []error // popped one per SaveBoardSnapshot call
	saveCount  int
	lastBlob   []byte
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		rooms:   make(map[string]*domain.Room),
		members: make(map[string][]uuid.UUID),
	}
}

func (r *fakeRoomRepo) popCreateErr() error {
	if len(r.createErrs) == 0 {
		return nil
	}
	err := r.createErrs[0]
	r.createErrs = r.createErrs[1:]
	return err
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triedIDs = append(r.triedIDs, room.PublicID)
	if err := r.popCreateErr(); err != nil {
		return err
	}
	cp := *room
	r.rooms[room.PublicID] = &cp
	r.members[room.PublicID] = []uuid.UUID{room.HostID}
	return nil
}

func (r *fakeRoomRepo) GetByPublicID(ctx context.Context, publicID string) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[publicID]
	if !ok {
		return nil, nil
	}
	cp := *room
	return &cp, nil
}

func (r *fakeRoomRepo) SetInactive(ctx context.Context, publicID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[publicID]; ok {
		room.Active = false
	}
	return nil
}

func (r *fakeRoomRepo) SaveBoardSnapshot(ctx context.Context, publicID string, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saveErrs) > 0 {
		err := r.saveErrs[0]
		r.saveErrs = r.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	r.saveCount++
	r.lastBlob = append([]byte(nil), blob...)
	if room, ok := r.rooms[publicID]; ok {
		room.BoardSnapshot = r.lastBlob
	}
	return nil
}

func (r *fakeRoomRepo) AddMember(ctx context.Context, publicID string, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.members[publicID] {
		if id == userID {
			return nil
		}
	}
	r.members[publicID] = append(r.members[publicID], userID)
	return nil
}

func (r *fakeRoomRepo) ListMembers(ctx context.Context, publicID string) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.members[publicID]...), nil
}

func (r *fakeRoomRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func (r *fakeRoomRepo) snapshotWrites() (int, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveCount, r.lastBlob
}

type fakeChatRepo struct {
	mu        sync.Mutex
	byRoom    map[string][]domain.ChatMessage
	deleted   []string
	createErr error
	seq       int64
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{byRoom: make(map[string][]domain.ChatMessage)}
}

func (r *fakeChatRepo) Create(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	msg.Seq = r.seq
	r.byRoom[msg.RoomID] = append(r.byRoom[msg.RoomID], *msg)
	return nil
}

func (r *fakeChatRepo) ListByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChatMessage(nil), r.byRoom[roomID]...), nil
}

func (r *fakeChatRepo) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.byRoom[roomID]))
	delete(r.byRoom, roomID)
	r.deleted = append(r.deleted, roomID)
	return n, nil
}

func (r *fakeChatRepo) deletedRooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

type fakeBoardCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBoardCache() *fakeBoardCache {
	return &fakeBoardCache{data: make(map[string][]byte)}
}

func (c *fakeBoardCache) Set(ctx context.Context, roomID string, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[roomID] = append([]byte(nil), blob...)
	return nil
}

func (c *fakeBoardCache) Get(ctx context.Context, roomID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[roomID], nil
}

func (c *fakeBoardCache) Delete(ctx context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, roomID)
	return nil
}

func (c *fakeBoardCache) get(roomID string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[roomID]
}
