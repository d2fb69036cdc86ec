package worker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newIdlePool(t *testing.T) *Pool {
	t.Helper()
	return NewPool(nil, &PoolConfig{
		Workers:        1,
		QueueSize:      10,
		JobTimeout:     time.Second,
		BatchSize:      1,
		WorkerChanSize: 1,
		MaxRetries:     1,
		RatePerSecond:  100,
	}, zerolog.Nop())
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	p := newIdlePool(t)

	if p.Submit(NewMessage(JobAnalyzeReply, nil)) {
		t.Error("Submit() = true on a pool that was never started")
	}
}

func TestPoolToDLQDeliversMessage(t *testing.T) {
	p := newIdlePool(t)
	p.started = true

	msg := NewMessage(JobAnalyzeReply, map[string]any{"message_id": "msg-1"})
	p.toDLQ(msg)

	select {
	case got := <-p.dlq:
		if got.ID != msg.ID {
			t.Errorf("DLQ message ID = %s, want %s", got.ID, msg.ID)
		}
	default:
		t.Error("permanently failed job did not reach the DLQ")
	}
}

func TestPoolToDLQAfterStopDoesNotPanic(t *testing.T) {
	p := newIdlePool(t)

	// started stays false, as after Stop. The DLQ channel may already be
	// closed at that point, so toDLQ must not touch it.
	close(p.dlq)
	p.toDLQ(NewMessage(JobAnalyzeReply, nil))
}

func TestRateLimiterExhaustsTokens(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("first two requests should be allowed")
	}
	if rl.Allow() {
		t.Error("third request allowed, want rate limited")
	}
}
