package compute

import (
	"context"
	"sync/atomic"
)

// frameChannel is a bounded queue of frames bound to the lifetime of a
// context. Send and Receive give up when either their own context or the
// channel's context is done. The underlying channel is never closed, so a
// Send racing Close cannot panic.
type frameChannel[T any] struct {
	frames   chan T
	ctx      context.Context
	capacity int
	closed   atomic.Bool
}

func newFrameChannel[T any](ctx context.Context, capacity int) *frameChannel[T] {
	return &frameChannel[T]{
		frames:   make(chan T, capacity),
		ctx:      ctx,
		capacity: capacity,
	}
}

func (fc *frameChannel[T]) Send(ctx context.Context, frame T) error {
	if fc.closed.Load() {
		return ErrClosed
	}
	select {
	case fc.frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-fc.ctx.Done():
		return ErrClosed
	}
}

func (fc *frameChannel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case frame := <-fc.frames:
		return frame, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-fc.ctx.Done():
		var zero T
		return zero, ErrClosed
	}
}

// Close marks the channel closed. It reports whether this call closed it.
func (fc *frameChannel[T]) Close() bool {
	return fc.closed.CompareAndSwap(false, true)
}

func (fc *frameChannel[T]) IsClosed() bool {
	return fc.closed.Load()
}

func (fc *frameChannel[T]) Capacity() int {
	return fc.capacity
}

func (fc *frameChannel[T]) Len() int {
	return len(fc.frames)
}
