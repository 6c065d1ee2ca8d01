package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// roomDeletedChannel is raised by the AFTER DELETE trigger on rooms
// (schema.sql) with the deleted room's public_id as payload.
const roomDeletedChannel = "room_deleted"

// DeletionFeed surfaces room deletions via Postgres LISTEN/NOTIFY. It
// implements repository.DeletionFeed: Watch blocks on a dedicated
// connection and hands every deleted room id to handle. Any error ends
// the watch; the lifecycle supervisor reconnects with backoff.
type DeletionFeed struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

func NewDeletionFeed(pool *pgxpool.Pool) *DeletionFeed {
	return &DeletionFeed{
		pool: pool,
		log:  logrus.WithField("component", "deletion_feed"),
	}
}

func (f *DeletionFeed) Watch(ctx context.Context, handle func(roomID string)) error {
	poolConn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring listen connection: %w", err)
	}
	// The connection carries LISTEN state, so it must not go back into
	// the pool. Hijack it and close it when the watch ends.
	conn := poolConn.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+roomDeletedChannel); err != nil {
		return fmt.Errorf("listening on %s: %w", roomDeletedChannel, err)
	}
	f.log.Info("watching room deletions")

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("waiting for notification: %w", err)
		}
		if notification.Payload == "" {
			f.log.Warn("room deletion notification with empty payload")
			continue
		}
		handle(notification.Payload)
	}
}
