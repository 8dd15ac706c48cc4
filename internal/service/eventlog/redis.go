package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// streamSlack widens range queries because stream IDs use the Redis clock.
const streamSlack = time.Minute

// RedisStore appends events to a Redis stream.
type RedisStore struct {
	client *redis.Client
	stream string
}

func NewRedisStore(ctx context.Context, redisURL, stream string) (*RedisStore, error) {
	if redisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if stream == "" {
		stream = "portfolio_events"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, stream), nil
}

// NewRedisStoreWithClient uses an existing client. Close closes it.
func NewRedisStoreWithClient(client *redis.Client, stream string) *RedisStore {
	return &RedisStore{client: client, stream: stream}
}

func (s *RedisStore) Append(ctx context.Context, e Event) error {
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: eventFields(e),
	}).Err(); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, since, until time.Time) ([]Event, error) {
	start, end := "-", "+"
	if !since.IsZero() {
		start = strconv.FormatInt(since.Add(-streamSlack).UnixMilli(), 10)
	}
	if !until.IsZero() {
		end = strconv.FormatInt(until.Add(streamSlack).UnixMilli(), 10)
	}

	msgs, err := s.client.XRange(ctx, s.stream, start, end).Result()
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	out := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		e, err := eventFromFields(msg.Values)
		if err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
		}
		if inRange(e.CreatedAt, since, until) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func eventFields(e Event) map[string]any {
	return map[string]any{
		"id":         strconv.FormatInt(e.ID, 10),
		"session_id": e.SessionID,
		"event_type": e.EventType,
		"timestamp":  e.Timestamp,
		"user_agent": e.UserAgent,
		"referrer":   e.Referrer,
		"created_at": strconv.FormatInt(e.CreatedAt.UnixNano(), 10),
	}
}

func eventFromFields(values map[string]any) (Event, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	id, err := strconv.ParseInt(str("id"), 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("invalid id: %w", err)
	}
	created, err := strconv.ParseInt(str("created_at"), 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("invalid created_at: %w", err)
	}

	return Event{
		ID:        id,
		SessionID: str("session_id"),
		EventType: str("event_type"),
		Timestamp: str("timestamp"),
		UserAgent: str("user_agent"),
		Referrer:  str("referrer"),
		CreatedAt: time.Unix(0, created).UTC(),
	}, nil
}
