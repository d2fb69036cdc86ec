package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"apptrack_worker/adapter/in/worker"
)

// ConsumerConfig tunes the stream consumer.
type ConsumerConfig struct {
	BatchSize            int
	Block                time.Duration
	PendingCheckInterval time.Duration
	PendingIdleTime      time.Duration
	MaxRetries           int
}

// DefaultConsumerConfig returns sensible defaults.
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		BatchSize:            10,
		Block:                5 * time.Second,
		PendingCheckInterval: 30 * time.Second,
		PendingIdleTime:      2 * time.Minute,
		MaxRetries:           3,
	}
}

// Consumer pulls analyze-reply jobs off the inbound stream and feeds the
// worker pool. Entries are acknowledged once the pool accepts them; retries
// and the in-process DLQ are the pool's responsibility from that point on.
type Consumer struct {
	stream *RedisStream
	pool   *worker.Pool
	name   string
	config *ConsumerConfig
	log    zerolog.Logger
}

func NewConsumer(stream *RedisStream, pool *worker.Pool, name string, config *ConsumerConfig, log zerolog.Logger) *Consumer {
	if config == nil {
		config = DefaultConsumerConfig()
	}
	return &Consumer{
		stream: stream,
		pool:   pool,
		name:   name,
		config: config,
		log:    log.With().Str("component", "stream_consumer").Logger(),
	}
}

// Start creates the consumer group and launches the consume and pending
// reclaim loops. It returns immediately; both loops stop with ctx.
func (c *Consumer) Start(ctx context.Context) {
	if err := c.stream.CreateGroup(ctx, StreamInboundReplies); err != nil {
		c.log.Error().Err(err).Str("stream", StreamInboundReplies).Msg("failed to create consumer group")
	}

	go c.stream.Consume(ctx, StreamInboundReplies, c.name, c.config.BatchSize, c.config.Block, c.dispatch)
	go c.reclaimLoop(ctx)

	c.log.Info().
		Str("stream", StreamInboundReplies).
		Str("consumer", c.name).
		Msg("stream consumer started")
}

// reclaimLoop periodically re-drives entries stuck in the pending list, for
// example after a worker crash before acknowledging.
func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.PendingCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.stream.ClaimPending(ctx, StreamInboundReplies, c.name,
				c.config.PendingIdleTime, c.config.MaxRetries, c.dispatch)
		}
	}
}

// dispatch decodes one stream entry and submits it to the worker pool.
func (c *Consumer) dispatch(id string, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		c.log.Error().Err(err).Str("entry_id", id).Msg("failed to unmarshal job")
		// Undecodable entries can never succeed; ack them away.
		return nil
	}

	msg := &worker.Message{
		ID:        job.ID,
		Type:      job.Type,
		Payload:   job.Payload,
		CreatedAt: job.CreatedAt,
	}

	if !c.pool.Submit(msg) {
		return fmt.Errorf("pool rejected job %s", job.ID)
	}
	return nil
}
