// Package snowflake generates time-sortable 64-bit IDs for tasks, reminders
// and history entries without any coordination between workers.
//
// Layout (64 bits): 1 sign bit, 41 bits of milliseconds since the custom
// epoch, 10 bits of worker ID, 12 bits of per-millisecond sequence.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Custom epoch: 2024-01-01 00:00:00 UTC
	epoch int64 = 1704067200000

	workerIDBits = 10
	sequenceBits = 12

	maxWorkerID = (1 << workerIDBits) - 1 // 1023
	maxSequence = (1 << sequenceBits) - 1 // 4095

	timestampShift = workerIDBits + sequenceBits
	workerIDShift  = sequenceBits
)

var (
	ErrInvalidWorkerID = errors.New("worker ID must be between 0 and 1023")
	ErrClockMovedBack  = errors.New("clock moved backwards")
)

// Generator generates unique snowflake IDs.
type Generator struct {
	mu       sync.Mutex
	workerID int64
	sequence int64
	lastTime int64
}

// NewGenerator creates a generator for the given worker ID (0-1023).
func NewGenerator(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	return &Generator{workerID: workerID}, nil
}

// Generate returns a new unique ID. IDs are strictly increasing per
// generator; the sequence rolls the timestamp forward when a millisecond
// is exhausted.
func (g *Generator) Generate() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := currentTimeMillis()
	if now < g.lastTime {
		return 0, ErrClockMovedBack
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond, wait for the next.
			for now <= g.lastTime {
				now = currentTimeMillis()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	id := ((now - epoch) << timestampShift) |
		(g.workerID << workerIDShift) |
		g.sequence
	return id, nil
}

// MustGenerate returns a new ID, falling back to a raw timestamp if the
// clock moved backwards. Used where an ID failure must not abort the
// surrounding state update.
func (g *Generator) MustGenerate() int64 {
	id, err := g.Generate()
	if err != nil {
		return time.Now().UnixNano()
	}
	return id
}

func currentTimeMillis() int64 {
	return time.Now().UnixMilli()
}
