// Package stream provides the Redis Streams transport for inbound reply
// jobs.
package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// StreamInboundReplies carries analyze-reply jobs from ingestion to the
	// worker pool.
	StreamInboundReplies = "replies:inbound"
)

// NewClient creates a Redis client from a URL and verifies connectivity.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisStream wraps one consumer group over Redis Streams.
type RedisStream struct {
	client *redis.Client
	group  string
	log    zerolog.Logger
}

func NewRedisStream(client *redis.Client, group string, log zerolog.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		group:  group,
		log:    log.With().Str("component", "redis_stream").Logger(),
	}
}

func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": jsonData},
	}).Result()
}

// Consume reads new entries for this consumer and hands them to the handler.
// Entries are acknowledged only after the handler returns nil; failed entries
// stay pending and are reclaimed by the pending processor.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, count int, block time.Duration, handler func(id string, data []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    int64(count),
			Block:    block,
		}).Result()

		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				s.log.Error().Err(err).Str("stream", stream).Msg("stream read error")
				time.Sleep(time.Second)
			}
			continue
		}

		for _, st := range streams {
			for _, msg := range st.Messages {
				data, ok := msg.Values["data"].(string)
				if !ok {
					s.log.Warn().Str("id", msg.ID).Msg("entry missing data field, acknowledging")
					s.client.XAck(ctx, st.Stream, s.group, msg.ID)
					continue
				}

				if err := handler(msg.ID, []byte(data)); err != nil {
					s.log.Error().Err(err).Str("id", msg.ID).Msg("handler error, leaving pending")
					continue
				}

				s.client.XAck(ctx, st.Stream, s.group, msg.ID)
			}
		}
	}
}

// ClaimPending claims entries that have been pending longer than minIdle and
// hands them to the handler. Entries past maxRetries are moved to a DLQ
// stream (dlq:<stream>) and acknowledged.
func (s *RedisStream) ClaimPending(ctx context.Context, stream, consumer string, minIdle time.Duration, maxRetries int, handler func(id string, data []byte) error) {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  s.group,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Error().Err(err).Str("stream", stream).Msg("error reading pending entries")
		}
		return
	}

	for _, p := range pending {
		if p.Idle < minIdle {
			continue
		}

		if int(p.RetryCount) >= maxRetries {
			s.log.Warn().
				Str("stream", stream).
				Str("id", p.ID).
				Int64("retries", p.RetryCount).
				Msg("entry exceeded max retries, moving to DLQ")
			if err := s.moveToDLQ(ctx, stream, p.ID); err != nil {
				s.log.Error().Err(err).Str("id", p.ID).Msg("error moving entry to DLQ")
			}
			s.client.XAck(ctx, stream, s.group, p.ID)
			continue
		}

		claimed, err := s.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   stream,
			Group:    s.group,
			Consumer: consumer,
			MinIdle:  minIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			s.log.Error().Err(err).Str("id", p.ID).Msg("error claiming entry")
			continue
		}

		for _, msg := range claimed {
			data, ok := msg.Values["data"].(string)
			if !ok {
				s.client.XAck(ctx, stream, s.group, msg.ID)
				continue
			}
			if err := handler(msg.ID, []byte(data)); err != nil {
				s.log.Error().Err(err).Str("id", msg.ID).Msg("error reprocessing pending entry")
				continue
			}
			s.client.XAck(ctx, stream, s.group, msg.ID)
		}
	}
}

// moveToDLQ copies a poisoned entry into dlq:<stream> with failure metadata.
func (s *RedisStream) moveToDLQ(ctx context.Context, stream, msgID string) error {
	messages, err := s.client.XRange(ctx, stream, msgID, msgID).Result()
	if err != nil {
		return fmt.Errorf("failed to read entry for DLQ: %w", err)
	}
	if len(messages) == 0 {
		return fmt.Errorf("entry %s not found in stream %s", msgID, stream)
	}

	dlqData := map[string]any{
		"original_stream": stream,
		"original_id":     msgID,
		"failed_at":       time.Now().UTC().Format(time.RFC3339),
		"group":           s.group,
	}
	for k, v := range messages[0].Values {
		dlqData["original_"+k] = v
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: "dlq:" + stream,
		Values: dlqData,
	}).Err()
}

// Ack acknowledges one entry.
func (s *RedisStream) Ack(ctx context.Context, stream, id string) error {
	return s.client.XAck(ctx, stream, s.group, id).Err()
}

// Pending returns the pending-entry count for a stream.
func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}
