// Package project owns the authoritative document table.
//
// All reads and writes of the table happen on a single goroutine, the owner.
// Other goroutines reach it only by handing a task to Owner.Do and waiting for
// it to finish; what they get back (snapshots) is immutable.
package project

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrOwnerReentry is returned when a task running on the owner tries to
	// marshal more work onto the owner. Waiting would deadlock.
	ErrOwnerReentry = errors.New("project: owner task cannot wait on the owner")

	// ErrOwnerStopped is returned when the owner is no longer running.
	ErrOwnerStopped = errors.New("project: owner stopped")
)

type ownerKey struct{}

// IsOwnerContext reports whether ctx belongs to a task running on an owner.
func IsOwnerContext(ctx context.Context) bool {
	return ctx.Value(ownerKey{}) != nil
}

type task struct {
	name string
	fn   func(ctx context.Context)
	done chan struct{}
}

// Owner runs tasks one at a time on a single goroutine.
type Owner struct {
	tasks    chan task
	stopped  chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewOwner creates an owner whose queue holds queueSize pending tasks.
func NewOwner(queueSize int, logger *zap.Logger) *Owner {
	if queueSize < 0 {
		queueSize = 0
	}
	return &Owner{
		tasks:   make(chan task, queueSize),
		stopped: make(chan struct{}),
		logger:  logger.With(zap.String("component", "project-owner")),
	}
}

// Run processes tasks until ctx is done. It must be called exactly once.
func (o *Owner) Run(ctx context.Context) {
	defer o.stopOnce.Do(func() { close(o.stopped) })

	ownerCtx := context.WithValue(ctx, ownerKey{}, o)
	o.logger.Debug("Owner started")

	for {
		select {
		case <-ctx.Done():
			o.logger.Debug("Owner stopped", zap.Error(ctx.Err()))
			return
		case t := <-o.tasks:
			o.run(ownerCtx, t)
		}
	}
}

func (o *Owner) run(ctx context.Context, t task) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Owner task panicked",
				zap.String("task", t.name),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	t.fn(ctx)
}

// Do runs fn on the owner and blocks the caller until fn returns.
// Waiting for a free queue slot honours ctx; once fn is dispatched it runs to
// completion. Calling Do from an owner task returns ErrOwnerReentry.
func (o *Owner) Do(ctx context.Context, name string, fn func(ctx context.Context)) error {
	if IsOwnerContext(ctx) {
		o.logger.Error("Owner re-entry detected", zap.String("task", name))
		return ErrOwnerReentry
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t := task{name: name, fn: fn, done: make(chan struct{})}
	select {
	case o.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrOwnerStopped
	}

	select {
	case <-t.done:
		return nil
	case <-o.stopped:
		// The task may have finished right before the owner exited.
		select {
		case <-t.done:
			return nil
		default:
			return ErrOwnerStopped
		}
	}
}

// Stopped returns a channel closed once Run has returned.
func (o *Owner) Stopped() <-chan struct{} {
	return o.stopped
}
