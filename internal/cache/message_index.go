package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const messageKeyPrefix = "message:"

// MessageIndex maps carrier message ids to stored message ids so delivery
// callbacks can skip the database lookup.
type MessageIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMessageIndex(client *redis.Client, ttl time.Duration) *MessageIndex {
	return &MessageIndex{client: client, ttl: ttl}
}

// Put records carrierID -> messageID.
func (i *MessageIndex) Put(ctx context.Context, carrierID string, messageID uuid.UUID) error {
	if err := i.client.Set(ctx, messageKeyPrefix+carrierID, messageID.String(), i.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache message id: %w", err)
	}
	return nil
}

// Get returns the message id for carrierID. ok is false on a cache miss.
func (i *MessageIndex) Get(ctx context.Context, carrierID string) (uuid.UUID, bool, error) {
	val, err := i.client.Get(ctx, messageKeyPrefix+carrierID).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to read cached message id: %w", err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		// Corrupt entries are treated as a miss and dropped.
		i.client.Del(ctx, messageKeyPrefix+carrierID)
		return uuid.Nil, false, nil
	}
	return id, true, nil
}
