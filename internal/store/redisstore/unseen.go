package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "unseen:"

// UnseenCounter keeps per-recipient unseen counts in a Redis hash keyed by sender.
type UnseenCounter struct {
	client *redis.Client
}

// Dial parses url, connects and verifies the server with a ping.
func Dial(ctx context.Context, url string) (*UnseenCounter, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &UnseenCounter{client: c}, nil
}

// New wraps an existing client.
func New(client *redis.Client) *UnseenCounter {
	return &UnseenCounter{client: client}
}

func key(recipientID string) string {
	return keyPrefix + recipientID
}

// Increment adds one to the count of unseen messages from senderID to recipientID.
func (u *UnseenCounter) Increment(ctx context.Context, recipientID, senderID string) (int64, error) {
	n, err := u.client.HIncrBy(ctx, key(recipientID), senderID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: hincrby: %w", err)
	}
	return n, nil
}

// Reset drops the count for the pair.
func (u *UnseenCounter) Reset(ctx context.Context, recipientID, senderID string) error {
	if err := u.client.HDel(ctx, key(recipientID), senderID).Err(); err != nil {
		return fmt.Errorf("redis: hdel: %w", err)
	}
	return nil
}

// Summary returns sender -> count for recipientID. Missing keys yield an empty map.
func (u *UnseenCounter) Summary(ctx context.Context, recipientID string) (map[string]int64, error) {
	raw, err := u.client.HGetAll(ctx, key(recipientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: hgetall: %w", err)
	}
	out := make(map[string]int64, len(raw))
	for sender, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: parse count for %s: %w", sender, err)
		}
		if n > 0 {
			out[sender] = n
		}
	}
	return out, nil
}

// Ping checks the connection.
func (u *UnseenCounter) Ping(ctx context.Context) error {
	return u.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (u *UnseenCounter) Close() error {
	return u.client.Close()
}
