package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inkboard/inkboard/internal/domain"
	"github.com/inkboard/inkboard/internal/repository"
)

const (
	persistTimeout    = 5 * time.Second
	persistBackoffMin = time.Second
	persistBackoffMax = 30 * time.Second
)

// BoardSync persists board snapshots behind the broadcast path. Each room
// gets its own writer goroutine fed through a one-slot channel, so bursts
// of updates coalesce to the latest blob before anything is written.
// Persistence failures are retried silently with backoff and never
// surface to the sender: by the time we are here, the edit has already
// been delivered to the other participants.
type BoardSync struct {
	rooms      repository.RoomRepository
	cache      repository.BoardCache
	flushEvery time.Duration
	backoffMin time.Duration
	backoffMax time.Duration
	log        *logrus.Entry

	mu      sync.Mutex
	writers map[string]chan []byte
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewBoardSync(rooms repository.RoomRepository, cache repository.BoardCache, flushEvery time.Duration) *BoardSync {
	return &BoardSync{
		rooms:      rooms,
		cache:      cache,
		flushEvery: flushEvery,
		backoffMin: persistBackoffMin,
		backoffMax: persistBackoffMax,
		log:        logrus.WithField("component", "board_sync"),
		writers:    make(map[string]chan []byte),
		done:       make(chan struct{}),
	}
}

// Submit hands the latest board blob for roomID to its writer. It never
// blocks: if an older blob is still queued it is replaced, which is the
// coalescing the broadcast path relies on.
func (s *BoardSync) Submit(roomID string, blob []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	updates, ok := s.writers[roomID]
	if !ok {
		updates = make(chan []byte, 1)
		s.writers[roomID] = updates
		s.wg.Add(1)
		go s.run(roomID, updates)
	}

	select {
	case updates <- blob:
	default:
		// Drop the stale queued blob, keep the newest.
		select {
		case <-updates:
		default:
		}
		updates <- blob
	}
}

// Current returns the freshest known board blob for a room: the cache if
// it has one, otherwise the room row's snapshot, otherwise an empty board.
func (s *BoardSync) Current(ctx context.Context, room *domain.Room) []byte {
	blob, err := s.cache.Get(ctx, room.PublicID)
	if err != nil {
		s.log.WithError(err).WithField("room_id", room.PublicID).Warn("board cache read failed, using store snapshot")
	}
	if blob == nil {
		blob = room.BoardSnapshot
	}
	if len(blob) == 0 {
		blob = emptyBoard
	}
	return blob
}

// Forget stops the room's writer and drops its cache entry. Called when a
// room closes or is reaped; any unflushed blob is discarded with it.
func (s *BoardSync) Forget(roomID string) {
	s.mu.Lock()
	if updates, ok := s.writers[roomID]; ok {
		delete(s.writers, roomID)
		close(updates)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, roomID); err != nil {
		s.log.WithError(err).WithField("room_id", roomID).Warn("failed to drop board cache entry")
	}
}

// Close stops all writers. Queued blobs are abandoned; the last flushed
// snapshot is what reconnecting clients will see.
func (s *BoardSync) Close() {
	s.mu.Lock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *BoardSync) run(roomID string, updates chan []byte) {
	defer s.wg.Done()
	log := s.log.WithField("room_id", roomID)

	for {
		select {
		case blob, ok := <-updates:
			if !ok {
				return
			}
			// Let the burst settle, then take whatever is newest.
			select {
			case <-time.After(s.flushEvery):
			case <-s.done:
				return
			}
			select {
			case newer, ok := <-updates:
				if ok {
					blob = newer
				}
			default:
			}
			s.persist(log, roomID, blob)
		case <-s.done:
			return
		}
	}
}

func (s *BoardSync) persist(log *logrus.Entry, roomID string, blob []byte) {
	backoff := s.backoffMin
	for {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := s.cache.Set(ctx, roomID, blob); err != nil {
			log.WithError(err).Warn("board cache write failed")
		}
		err := s.rooms.SaveBoardSnapshot(ctx, roomID, blob)
		cancel()
		if err == nil {
			log.WithField("size", len(blob)).Debug("board snapshot persisted")
			return
		}

		log.WithError(err).WithField("retry_in", backoff).Warn("board snapshot write failed, retrying")
		select {
		case <-time.After(backoff):
		case <-s.done:
			return
		}
		if backoff < s.backoffMax {
			backoff *= 2
		}
	}
}
