package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkboard/inkboard/internal/domain"
)

func newTestBoardSync(repo *fakeRoomRepo, cache *fakeBoardCache) *BoardSync {
	s := NewBoardSync(repo, cache, 10*time.Millisecond)
	s.backoffMin = time.Millisecond
	s.backoffMax = 5 * time.Millisecond
	return s
}

func TestBoardSync_PersistsLatest(t *testing.T) {
	repo := newFakeRoomRepo()
	cache := newFakeBoardCache()
	s := newTestBoardSync(repo, cache)
	defer s.Close()

	s.Submit("rm_test0001", []byte(`{"shapes":["rect1"]}`))

	require.Eventually(t, func() bool {
		n, blob := repo.snapshotWrites()
		return n == 1 && string(blob) == `{"shapes":["rect1"]}`
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, `{"shapes":["rect1"]}`, string(cache.get("rm_test0001")))
}

func TestBoardSync_CoalescesBursts(t *testing.T) {
	repo := newFakeRoomRepo()
	cache := newFakeBoardCache()
	s := newTestBoardSync(repo, cache)
	defer s.Close()

	const updates = 50
	var last string
	for i := 0; i < updates; i++ {
		last = fmt.Sprintf(`{"rev":%d}`, i)
		s.Submit("rm_test0001", []byte(last))
	}

	require.Eventually(t, func() bool {
		_, blob := repo.snapshotWrites()
		return string(blob) == last
	}, time.Second, 5*time.Millisecond)

	n, _ := repo.snapshotWrites()
	assert.Less(t, n, updates, "a burst must collapse to fewer writes than updates")
}

func TestBoardSync_RetriesSilently(t *testing.T) {
	repo := newFakeRoomRepo()
	repo.saveErrs = []error{assert.AnError, assert.AnError}
	cache := newFakeBoardCache()
	s := newTestBoardSync(repo, cache)
	defer s.Close()

	s.Submit("rm_test0001", []byte(`{"rev":1}`))

	require.Eventually(t, func() bool {
		n, blob := repo.snapshotWrites()
		return n == 1 && string(blob) == `{"rev":1}`
	}, time.Second, 5*time.Millisecond)
}

func TestBoardSync_Current(t *testing.T) {
	repo := newFakeRoomRepo()
	cache := newFakeBoardCache()
	s := newTestBoardSync(repo, cache)
	defer s.Close()

	room := &domain.Room{PublicID: "rm_test0001", BoardSnapshot: []byte(`{"from":"store"}`)}

	// Store fallback when the cache is cold.
	assert.Equal(t, `{"from":"store"}`, string(s.Current(context.Background(), room)))

	// Cache wins once warm.
	require.NoError(t, cache.Set(context.Background(), room.PublicID, []byte(`{"from":"cache"}`)))
	assert.Equal(t, `{"from":"cache"}`, string(s.Current(context.Background(), room)))

	// A room with no snapshot anywhere is an empty board.
	blank := &domain.Room{PublicID: "rm_blank001"}
	assert.Equal(t, "{}", string(s.Current(context.Background(), blank)))
}

func TestBoardSync_ForgetDropsCache(t *testing.T) {
	repo := newFakeRoomRepo()
	cache := newFakeBoardCache()
	s := newTestBoardSync(repo, cache)
	defer s.Close()

	s.Submit("rm_test0001", []byte(`{"rev":1}`))
	require.Eventually(t, func() bool {
		return cache.get("rm_test0001") != nil
	}, time.Second, 5*time.Millisecond)

	s.Forget("rm_test0001")
	assert.Nil(t, cache.get("rm_test0001"))
}
