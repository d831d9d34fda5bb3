// Package feed is the engine's boundary to the outside: where boxes
// come from and where robot status and counters go. Any reliable
// ordered transport can sit behind these interfaces; the in-process
// channel implementation below is the default.
package feed

import (
	"context"

	"mangoline.dev/internal/sim/belt"
)

// ErrClosed reports that the box stream is exhausted. The engine treats
// it as a clean end of run.
var ErrClosed = belt.ErrStreamClosed

// BoxSource hands boxes to the engine in belt order.
type BoxSource interface {
	// Next blocks for the next box. Returns ErrClosed when the stream
	// ends; any other error is a per-box transport failure and the
	// caller may keep calling Next.
	Next(ctx context.Context) (*belt.Box, error)
	// TryNext is the non-blocking variant.
	TryNext() (*belt.Box, bool)
}

// StatusSink receives robot status transitions and counter deltas.
// Implementations must not block the caller for long; the engine calls
// these from robot goroutines.
type StatusSink interface {
	PublishRobotStatus(robotID int, state belt.RobotState, labelsPlaced int)
	PublishStats(delta belt.StatsDelta)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) PublishRobotStatus(int, belt.RobotState, int) {}
func (NopSink) PublishStats(belt.StatsDelta)                 {}

// ChannelFeed is the in-process transport: the generator sends on one
// end, the engine receives on the other.
type ChannelFeed struct {
	ch chan *belt.Box
}

func NewChannelFeed(buffer int) *ChannelFeed {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelFeed{ch: make(chan *belt.Box, buffer)}
}

// Send queues a box for the engine. Returns false once the feed is
// closed; a failed send does not poison the stream.
func (f *ChannelFeed) Send(ctx context.Context, b *belt.Box) bool {
	select {
	case f.ch <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream. Safe to call once, by the sending side.
func (f *ChannelFeed) Close() { close(f.ch) }

func (f *ChannelFeed) Next(ctx context.Context) (*belt.Box, error) {
	select {
	case b, ok := <-f.ch:
		if !ok {
			return nil, ErrClosed
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *ChannelFeed) TryNext() (*belt.Box, bool) {
	select {
	case b, ok := <-f.ch:
		if !ok {
			return nil, false
		}
		return b, true
	default:
		return nil, false
	}
}
