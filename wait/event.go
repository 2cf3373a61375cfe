// Copyright (c) 2019-2022 Wibowo Arindrarto <contact@arindrarto.dev>
// SPDX-License-Identifier: BSD-3-Clause

package wait

import (
	"context"
	"sync"
	"time"

	"golang.org/x/xerrors"
)

// NoTimeout is the timeout sentinel for waiting without any time limit. Any negative duration is
// treated the same way.
const NoTimeout time.Duration = -1

// Handler is the bare callback registered with an event source.
type Handler func()

// TypedHandler is the callback shape for event sources that deliver a sender and a data payload
// with each notification. The payload plays no role in the wait functions; only the fact that the
// event fired matters.
type TypedHandler[T any] func(sender any, data T)

// outcome enumerates the possible winners of a single wait race.
type outcome int

const (
	pending outcome = iota
	fired
	timedOut
	canceled
)

// latch is a single-assignment container for the race outcome. The first resolve call settles it;
// later calls are no-ops.
type latch struct {
	once sync.Once
	done chan struct{}
	out  outcome
}

func newLatch() *latch {
	return &latch{done: make(chan struct{})}
}

// resolve attempts to settle the latch with the given outcome. When resolve returns, the latch is
// guaranteed to be settled, though not necessarily by this call.
func (l *latch) resolve(out outcome) {
	l.once.Do(func() {
		l.out = out
		close(l.done)
	})
}

// ForEvent registers a handler with an event source through subscribe, then blocks until the
// handler is invoked, the timeout elapses, or ctx is canceled. It returns true if the event fired
// first and false if the timeout elapsed first; a cancellation surfaces as a *CanceledError
// instead of a boolean result, and an error from subscribe itself is propagated as-is.
//
// subscribe is called exactly once, and the registered handler is removed via unsubscribe exactly
// once on every exit path. The handler passed to unsubscribe is the same value that was passed to
// subscribe. If two triggers land at the same instant the winner is picked nondeterministically;
// exactly one outcome is produced either way.
func ForEvent(
	ctx context.Context,
	subscribe func(Handler) error,
	unsubscribe func(Handler),
	timeout time.Duration,
) (bool, error) {
	return await(ctx, timeout, func(fire func()) (func(), error) {
		handler := Handler(fire)
		if err := subscribe(handler); err != nil {
			return nil, err
		}
		return func() { unsubscribe(handler) }, nil
	})
}

// ForEventForever is ForEvent without any time limit; it resolves only when the event fires or
// ctx is canceled.
func ForEventForever(
	ctx context.Context,
	subscribe func(Handler) error,
	unsubscribe func(Handler),
) (bool, error) {
	return ForEvent(ctx, subscribe, unsubscribe, NoTimeout)
}

// ForTypedEvent is ForEvent for event sources whose handlers take a sender and a data payload.
// The payload is discarded; the wait still resolves to a plain boolean.
func ForTypedEvent[T any](
	ctx context.Context,
	subscribe func(TypedHandler[T]) error,
	unsubscribe func(TypedHandler[T]),
	timeout time.Duration,
) (bool, error) {
	return await(ctx, timeout, func(fire func()) (func(), error) {
		handler := TypedHandler[T](func(any, T) { fire() })
		if err := subscribe(handler); err != nil {
			return nil, err
		}
		return func() { unsubscribe(handler) }, nil
	})
}

// ForTypedEventForever is ForTypedEvent without any time limit.
func ForTypedEventForever[T any](
	ctx context.Context,
	subscribe func(TypedHandler[T]) error,
	unsubscribe func(TypedHandler[T]),
) (bool, error) {
	return ForTypedEvent(ctx, subscribe, unsubscribe, NoTimeout)
}

// await implements the race shared by all wait shapes. register must subscribe a handler that
// calls fire when the notification is delivered, and return the matching removal function. The
// removal function is invoked at most once, no matter how many paths reach it.
func await(
	ctx context.Context,
	timeout time.Duration,
	register func(fire func()) (remove func(), err error),
) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &CanceledError{Reason: err}
	}

	l := newLatch()

	remove, err := register(func() { l.resolve(fired) })
	if err != nil {
		return false, xerrors.Errorf("wait: subscribe: %w", err)
	}

	var removed sync.Once
	cleanup := func() { removed.Do(remove) }
	// The defer covers panics and future early returns; the regular flow below has already
	// cleaned up by the time it returns.
	defer cleanup()

	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-l.done:
	case <-expired:
		l.resolve(timedOut)
	case <-ctx.Done():
		l.resolve(canceled)
	}
	cleanup()

	switch l.out {
	case fired:
		return true, nil
	case timedOut:
		return false, nil
	default:
		return false, &CanceledError{Reason: ctx.Err()}
	}
}
