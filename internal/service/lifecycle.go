package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inkboard/inkboard/internal/repository"
)

const (
	watchBackoffMin = time.Second
	watchBackoffMax = time.Minute
)

// Lifecycle is the cleanup supervisor for store-level expiry. The store
// reaps rooms past their TTL on its own; this watches the deletion feed
// and performs the cascade a foreign key would have given us: dropping
// the dead room's chat messages and its board cache entry. A broken feed
// is reconnected with backoff — a deletion missed while disconnected
// leaves orphaned chat rows, which is degraded but not corrupt.
type Lifecycle struct {
	feed   repository.DeletionFeed
	chat   repository.ChatRepository
	boards *BoardSync
	log    *logrus.Entry

	backoffMin time.Duration
	backoffMax time.Duration
}

func NewLifecycle(feed repository.DeletionFeed, chat repository.ChatRepository, boards *BoardSync) *Lifecycle {
	return &Lifecycle{
		feed:       feed,
		chat:       chat,
		boards:     boards,
		log:        logrus.WithField("component", "lifecycle"),
		backoffMin: watchBackoffMin,
		backoffMax: watchBackoffMax,
	}
}

// Run watches the deletion feed until ctx is cancelled, restarting the
// watch with capped exponential backoff whenever it breaks.
func (l *Lifecycle) Run(ctx context.Context) error {
	backoff := l.backoffMin
	for {
		started := time.Now()
		err := l.feed.Watch(ctx, l.cascade)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > l.backoffMax {
			backoff = l.backoffMin
		}
		l.log.WithError(err).WithField("retry_in", backoff).Warn("deletion feed broke, reconnecting")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff < l.backoffMax {
			backoff *= 2
		} else {
			backoff = l.backoffMax
		}
	}
}

func (l *Lifecycle) cascade(roomID string) {
	log := l.log.WithField("room_id", roomID)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	deleted, err := l.chat.DeleteByRoom(ctx, roomID)
	if err != nil {
		// The next reaped room will not retry this one; orphans stay
		// until the room id is seen again. Accepted degraded state.
		log.WithError(err).Error("chat cascade failed for reaped room")
	} else {
		log.WithField("messages", deleted).Info("chat log removed for reaped room")
	}

	l.boards.Forget(roomID)
}
