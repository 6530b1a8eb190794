package ledger

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sentKeyPrefix = "digest:sent:"

	DefaultSentTTL = 48 * time.Hour
)

// RedisLedger remembers which users already received the digest for a given day.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultSentTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) WasSent(ctx context.Context, day time.Time, userID string) (bool, error) {
	n, err := l.client.Exists(ctx, sentKey(day, userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSent keeps the first message ID recorded for the day.
func (l *RedisLedger) MarkSent(ctx context.Context, day time.Time, userID, messageID string) error {
	return l.client.SetNX(ctx, sentKey(day, userID), messageID, l.ttl).Err()
}

func sentKey(day time.Time, userID string) string {
	return sentKeyPrefix + day.UTC().Format("2006-01-02") + ":" + userID
}
