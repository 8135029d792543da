package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Inline runs tasks synchronously in the caller. Delayed tasks are dropped,
// the next scheduled poll picks the work up again.
type Inline struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
}

// NewInline builds an inline dispatcher.
func NewInline(logger *zap.Logger) *Inline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inline{logger: logger.Named("inline"), handlers: make(map[string][]HandlerFunc)}
}

func (d *Inline) Handle(kind string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], fn)
}

func (d *Inline) Dispatch(ctx context.Context, task Task, opts ...DispatchOption) error {
	if o := applyOptions(opts); o.delay > 0 {
		d.logger.Info("delayed task skipped", zap.String("kind", task.Kind()), zap.Duration("delay", o.delay))
		return nil
	}
	d.mu.RLock()
	handlers := d.handlers[task.Kind()]
	d.mu.RUnlock()

	var errs []error
	for _, fn := range handlers {
		if err := safeCall(ctx, fn, task); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Router = (*Inline)(nil)
