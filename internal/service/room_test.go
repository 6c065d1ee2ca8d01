package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkboard/inkboard/internal/domain"
	"github.com/inkboard/inkboard/internal/repository"
)

func testHost() *domain.User {
	return &domain.User{ID: uuid.New(), Username: "host", DisplayName: "Host"}
}

func TestNewRoomID_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewRoomID()
		require.Len(t, id, 11)
		require.True(t, strings.HasPrefix(id, "rm_"), "id %q must carry the rm_ prefix", id)
		for _, r := range id[3:] {
			require.Contains(t, roomIDAlphabet, string(r))
		}
		require.False(t, seen[id], "id %q generated twice in 1000 draws", id)
		seen[id] = true
	}
}

func TestRoomService_Create(t *testing.T) {
	repo := newFakeRoomRepo()
	svc := NewRoomService(repo, 30*24*time.Hour)
	host := testHost()

	before := time.Now()
	room, err := svc.Create(context.Background(), "Standup", host)
	require.NoError(t, err)

	assert.True(t, room.Active)
	assert.Equal(t, "Standup", room.Name)
	assert.Equal(t, host.ID, room.HostID)
	assert.Equal(t, []byte("{}"), room.BoardSnapshot)
	assert.WithinDuration(t, before.Add(30*24*time.Hour), room.ExpiresAt, 5*time.Second)

	members, err := repo.ListMembers(context.Background(), room.PublicID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{host.ID}, members)
}

func TestRoomService_Create_RetriesOnIDCollision(t *testing.T) {
	repo := newFakeRoomRepo()
	repo.createErrs = []error{repository.ErrDuplicateKey, repository.ErrDuplicateKey}
	svc := NewRoomService(repo, time.Hour)

	room, err := svc.Create(context.Background(), "Standup", testHost())
	require.NoError(t, err)

	require.Len(t, repo.triedIDs, 3)
	assert.NotEqual(t, repo.triedIDs[0], repo.triedIDs[2])
	assert.Equal(t, repo.triedIDs[2], room.PublicID)
}

func TestRoomService_Create_StoreFailure(t *testing.T) {
	repo := newFakeRoomRepo()
	repo.createErrs = []error{assert.AnError}
	svc := NewRoomService(repo, time.Hour)

	_, err := svc.Create(context.Background(), "Standup", testHost())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	// No retry on a non-collision failure.
	assert.Len(t, repo.triedIDs, 1)
}

func TestRoomService_FindActive(t *testing.T) {
	repo := newFakeRoomRepo()
	svc := NewRoomService(repo, time.Hour)
	room, err := svc.Create(context.Background(), "Standup", testHost())
	require.NoError(t, err)

	found, err := svc.FindActive(context.Background(), room.PublicID)
	require.NoError(t, err)
	assert.Equal(t, room.PublicID, found.PublicID)
}

func TestRoomService_FindActive_Missing(t *testing.T) {
	svc := NewRoomService(newFakeRoomRepo(), time.Hour)

	_, err := svc.FindActive(context.Background(), "rm_missing0")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_FindActive_ClosedRoomReportsNotFound(t *testing.T) {
	repo := newFakeRoomRepo()
	svc := NewRoomService(repo, time.Hour)
	room, err := svc.Create(context.Background(), "Standup", testHost())
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background(), room.PublicID))

	_, err = svc.FindActive(context.Background(), room.PublicID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_RecordJoin_Idempotent(t *testing.T) {
	repo := newFakeRoomRepo()
	svc := NewRoomService(repo, time.Hour)
	host := testHost()
	room, err := svc.Create(context.Background(), "Standup", host)
	require.NoError(t, err)

	guest := uuid.New()
	require.NoError(t, svc.RecordJoin(context.Background(), room.PublicID, guest))
	require.NoError(t, svc.RecordJoin(context.Background(), room.PublicID, guest))

	members, err := repo.ListMembers(context.Background(), room.PublicID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{host.ID, guest}, members)
}
