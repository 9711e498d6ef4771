// Package promise implements a single-assignment value with a callback
// chain: the deferred-value primitive that batch mode resolves once its
// multi-get comes back. There is no rejection state — the batch driver is
// synchronous and raises on failure, so a Promise only ever represents a
// successful deferred value.
package promise

import "github.com/shardis/shardis/cerrors"

// Promise holds a value that starts absent and is assigned exactly once.
type Promise[T any] struct {
	value     T
	resolved  bool
	callbacks []func(T)
}

// New returns a pending promise.
func New[T any]() *Promise[T] {
	return &Promise[T]{}
}

// Resolve transitions the promise to resolved and invokes every registered
// callback, in registration order, with value. Resolving an already
// resolved promise is an error.
func (p *Promise[T]) Resolve(value T) error {
	if p.resolved {
		return cerrors.ErrDoubleResolve
	}
	p.value = value
	p.resolved = true
	for _, cb := range p.callbacks {
		cb(value)
	}
	p.callbacks = nil
	return nil
}

// Then registers a callback to run with the resolved value. If the promise
// is already resolved, the callback fires immediately, synchronously.
func (p *Promise[T]) Then(onResolve func(T)) *Promise[T] {
	if onResolve == nil {
		return p
	}
	if p.resolved {
		onResolve(p.value)
		return p
	}
	p.callbacks = append(p.callbacks, onResolve)
	return p
}

// IsPending reports whether the promise has not yet been resolved.
func (p *Promise[T]) IsPending() bool { return !p.resolved }

// IsResolved reports whether the promise has been resolved.
func (p *Promise[T]) IsResolved() bool { return p.resolved }

// Value returns the resolved value, or the zero value of T while pending.
func (p *Promise[T]) Value() T { return p.value }
