package redisboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// BoardCache keeps each room's live board blob in Redis so joiners can be
// served without waiting on the coalesced Postgres writeback. The store
// row remains the source of truth after a crash; this is the hot copy.
type BoardCache struct {
	client    *redis.Client
	keyPrefix string
}

func NewBoardCache(client *redis.Client, keyPrefix string) *BoardCache {
	if keyPrefix == "" {
		keyPrefix = "ink:"
	}
	return &BoardCache{client: client, keyPrefix: keyPrefix}
}

func (c *BoardCache) boardKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:board", c.keyPrefix, roomID)
}

func (c *BoardCache) Set(ctx context.Context, roomID string, blob []byte) error {
	if err := c.client.Set(ctx, c.boardKey(roomID), blob, 0).Err(); err != nil {
		return fmt.Errorf("redis: setting board for room %s: %w", roomID, err)
	}
	return nil
}

func (c *BoardCache) Get(ctx context.Context, roomID string) ([]byte, error) {
	blob, err := c.client.Get(ctx, c.boardKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: getting board for room %s: %w", roomID, err)
	}
	return blob, nil
}

func (c *BoardCache) Delete(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, c.boardKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis: deleting board for room %s: %w", roomID, err)
	}
	return nil
}
