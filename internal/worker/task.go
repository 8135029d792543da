// Package worker runs pipeline tasks in process: a partitioned queue for the
// daemon, an inline dispatcher for the CLI and a periodic scheduler.
package worker

import (
	"context"
	"errors"
	"time"
)

// ErrStopped is returned by Dispatch after the queue was stopped.
var ErrStopped = errors.New("worker: queue stopped")

// Task is a unit of work. Tasks with the same partition key never run
// concurrently on one queue.
type Task interface {
	Kind() string
	PartitionKey() string
}

// HandlerFunc processes one task. Retrying is up to the handler.
type HandlerFunc func(ctx context.Context, task Task) error

// Dispatcher accepts tasks for later or immediate processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task, opts ...DispatchOption) error
}

// Router is a Dispatcher that handlers can be registered on.
type Router interface {
	Dispatcher
	Handle(kind string, fn HandlerFunc)
}

type dispatchOptions struct {
	delay time.Duration
}

// DispatchOption tunes a single Dispatch call.
type DispatchOption func(*dispatchOptions)

// WithDelay postpones the task.
func WithDelay(d time.Duration) DispatchOption {
	return func(o *dispatchOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

func applyOptions(opts []DispatchOption) dispatchOptions {
	var o dispatchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Delay returns the delay requested by opts. Dispatchers outside this package
// use it to honor WithDelay.
func Delay(opts ...DispatchOption) time.Duration {
	return applyOptions(opts).delay
}
