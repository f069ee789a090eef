// Package broadcast implements a bounded multi-producer, multi-consumer
// fan-out channel.
//
// Published values are written into a fixed-size ring shared by every
// receiver. Each Receiver keeps its own read sequence, so a slow receiver
// never blocks the publisher or other receivers: when the ring wraps past
// an unread value, the next Recv reports a *LaggedError and the receiver
// resumes at the oldest value still retained.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned by Recv once the broadcaster is closed and the
	// receiver has drained what was published before, or once the receiver
	// itself is closed.
	ErrClosed = errors.New("broadcast: closed")
	// ErrLagged matches every *LaggedError via errors.Is.
	ErrLagged = errors.New("broadcast: receiver lagged")
)

// LaggedError reports that Missed values were overwritten before the
// receiver read them. The receiver stays usable.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("broadcast: receiver lagged, %d values skipped", e.Missed)
}

func (e *LaggedError) Is(target error) bool { return target == ErrLagged }

// Broadcaster delivers every published value to every receiver subscribed
// at the time of publishing. The zero value is not usable; call New.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	buf       []T
	next      uint64 // sequence of the next published value
	receivers int
	closed    bool
	// closed and replaced on every publish and on Close
	wake chan struct{}
}

// New returns a broadcaster retaining up to capacity unread values.
func New[T any](capacity int) *Broadcaster[T] {
	if capacity <= 0 {
		panic("broadcast: capacity must be positive")
	}
	return &Broadcaster[T]{
		buf:  make([]T, capacity),
		wake: make(chan struct{}),
	}
}

// Publish makes v visible to the current receivers and returns how many
// there are. With no receivers, or after Close, v is dropped and Publish
// returns 0. Publish never waits on receivers.
func (b *Broadcaster[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.receivers == 0 {
		return 0
	}
	b.buf[b.next%uint64(len(b.buf))] = v
	b.next++
	b.notifyLocked()

	return b.receivers
}

// Subscribe returns a receiver positioned after the last published value.
// Subscribing to a closed broadcaster yields a receiver that reports
// ErrClosed immediately.
func (b *Broadcaster[T]) Subscribe() *Receiver[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &Receiver[T]{b: b, pos: b.next}
	if b.closed {
		r.done = true
		return r
	}
	b.receivers++
	return r
}

// Close shuts the broadcaster down and wakes every waiting receiver.
// It is safe to call more than once.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.notifyLocked()
}

// Receivers reports the number of live receivers.
func (b *Broadcaster[T]) Receivers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receivers
}

// Cap is the ring capacity.
func (b *Broadcaster[T]) Cap() int { return len(b.buf) }

func (b *Broadcaster[T]) notifyLocked() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// Receiver is one independent read cursor. Its position is guarded by the
// broadcaster's lock, so a Receiver may be shared between goroutines,
// although each value is then seen by only one of them.
type Receiver[T any] struct {
	b    *Broadcaster[T]
	pos  uint64
	done bool
}

// Recv returns the next value in publish order. It blocks until a value is
// published, the broadcaster is closed, or ctx is done.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	b := r.b

	for {
		b.mu.Lock()
		if r.done {
			b.mu.Unlock()
			return zero, ErrClosed
		}

		if r.pos < b.next {
			capacity := uint64(len(b.buf))
			if b.next-r.pos > capacity {
				oldest := b.next - capacity
				missed := oldest - r.pos
				r.pos = oldest
				b.mu.Unlock()
				return zero, &LaggedError{Missed: missed}
			}
			v := b.buf[r.pos%capacity]
			r.pos++
			b.mu.Unlock()
			return v, nil
		}

		if b.closed {
			r.releaseLocked()
			b.mu.Unlock()
			return zero, ErrClosed
		}

		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close releases the receiver. Further Recv calls return ErrClosed.
func (r *Receiver[T]) Close() {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	r.releaseLocked()
}

func (r *Receiver[T]) releaseLocked() {
	if r.done {
		return
	}
	r.done = true
	r.b.receivers--
}
