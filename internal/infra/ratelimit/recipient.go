package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"unicast/internal/domain/messaging"

	"github.com/redis/go-redis/v9"
)

var _ messaging.RecipientLimiter = (*RedisSendCap)(nil)

// RedisSendCap enforces the per-destination send cap using Redis sorted
// sets as a sliding one-hour window: each delivered message is a member
// scored by its timestamp. The cap is keyed by destination address, so
// a user's email and phone count separately.
type RedisSendCap struct {
	client     *redis.Client
	maxPerHour int
	window     time.Duration
}

// NewRedisSendCap creates a new Redis-backed send cap.
func NewRedisSendCap(redisAddr, password string, db int, maxPerHour int) *RedisSendCap {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	return &RedisSendCap{
		client:     client,
		maxPerHour: maxPerHour,
		window:     time.Hour,
	}
}

// Allow checks whether another message may be sent to the destination,
// and records the attempt when it may.
func (r *RedisSendCap) Allow(ctx context.Context, destination string) (bool, error) {
	key := fmt.Sprintf("unicast:sendcap:%s", destination)
	now := time.Now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()

	// Drop entries that fell out of the sliding window, then count the rest.
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("checking send cap: %w", err)
	}

	if countCmd.Val() >= int64(r.maxPerHour) {
		return false, nil
	}

	// Unique member to avoid collisions between concurrent cells.
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(randBytes)),
	}

	pipe2 := r.client.Pipeline()
	pipe2.ZAdd(ctx, key, member)
	pipe2.Expire(ctx, key, r.window+time.Minute) // TTL slightly longer than the window

	if _, err := pipe2.Exec(ctx); err != nil {
		return false, fmt.Errorf("recording send cap entry: %w", err)
	}

	return true, nil
}

// Close closes the Redis connection.
func (r *RedisSendCap) Close() error {
	return r.client.Close()
}
