// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for finished game records.
const DefaultQueueName = "wordrope_results"

// Reasons a game can end.
const (
	ReasonCompleted = "completed"
	ReasonForfeit   = "forfeit"
)

// GameResultRecord is the summary of a finished game that the historian persists.
type GameResultRecord struct {
	GameID       string `json:"game_id"`
	Creator      string `json:"creator"`
	Joiner       string `json:"joiner"`
	Winner       string `json:"winner,omitempty"`
	RopePosition int    `json:"rope_position"`
	CreatorScore int    `json:"creator_score"`
	JoinerScore  int    `json:"joiner_score"`
	RoundsPlayed int    `json:"rounds_played"`
	MaxRounds    int    `json:"max_rounds"`
	Reason       string `json:"reason"`
	FinishedAt   int64  `json:"finished_at"` // epoch millis
}

// Pusher is the slice of the Redis client the publisher needs.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ResultPublisher pushes finished game records onto a Redis list for the historian.
type ResultPublisher struct {
	client Pusher
	queue  string
}

// NewResultPublisher returns a publisher writing to queue, or DefaultQueueName when queue is empty.
func NewResultPublisher(client Pusher, queue string) *ResultPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ResultPublisher{client: client, queue: queue}
}

// Publish serializes the record to JSON, then pushes it to the Redis queue.
func (p *ResultPublisher) Publish(ctx context.Context, record GameResultRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal GameResultRecord: %w", err)
	}
	if err := p.client.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// Connect opens a Redis client and checks it with a PING.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}
