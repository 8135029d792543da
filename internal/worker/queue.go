package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/config"
)

const (
	defaultPartitions = 8
	defaultBuffer     = 256
	drainPoll         = 20 * time.Millisecond
)

// Queue is an in-memory task transport. Tasks are hashed by partition key
// onto sequential workers. Pending tasks are lost when the process exits.
// Partitions are unbounded, so a handler may dispatch into its own partition.
type Queue struct {
	logger     *zap.Logger
	partitions []*partition

	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	timers   map[*time.Timer]struct{}
	stopped  bool

	inflight atomic.Int64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewQueue builds a queue sized by configuration.
func NewQueue(cfg config.QueueConfig, logger *zap.Logger) *Queue {
	n := cfg.Partitions
	if n <= 0 {
		n = defaultPartitions
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		logger:     logger.Named("queue"),
		partitions: make([]*partition, n),
		handlers:   make(map[string][]HandlerFunc),
		timers:     make(map[*time.Timer]struct{}),
		done:       make(chan struct{}),
	}
	for i := range q.partitions {
		q.partitions[i] = newPartition(buffer)
	}
	return q
}

// Handle registers fn for a task kind. Several handlers may share a kind.
func (q *Queue) Handle(kind string, fn HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = append(q.handlers[kind], fn)
}

// Dispatch enqueues task, or arms a timer when a delay is given.
func (q *Queue) Dispatch(ctx context.Context, task Task, opts ...DispatchOption) error {
	o := applyOptions(opts)
	if o.delay > 0 {
		return q.schedule(task, o.delay)
	}
	return q.enqueue(ctx, task)
}

func (q *Queue) schedule(task Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrStopped
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()
		if err := q.enqueue(context.Background(), task); err != nil {
			q.logger.Warn("delayed task dropped", zap.String("kind", task.Kind()), zap.Error(err))
		}
	})
	q.timers[timer] = struct{}{}
	return nil
}

// enqueue never blocks on a busy partition.
func (q *Queue) enqueue(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrStopped
	}
	q.inflight.Add(1)
	q.partitions[q.partition(task.PartitionKey())].push(task)
	return nil
}

func (q *Queue) partition(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(q.partitions)))
}

// Start launches one worker per partition. Handlers receive ctx.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i, p := range q.partitions {
			q.wg.Add(1)
			go q.work(ctx, i, p)
		}
		q.logger.Info("queue started", zap.Int("partitions", len(q.partitions)))
	})
}

// Stop cancels pending timers and waits for running tasks. Queued tasks
// that have not started are dropped.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		for timer := range q.timers {
			timer.Stop()
		}
		q.timers = map[*time.Timer]struct{}{}
		q.mu.Unlock()

		close(q.done)
		q.wg.Wait()
		q.logger.Info("queue stopped")
	})
}

// Drain blocks until no task is queued or running. Armed delay timers are
// not waited for. Call it before Stop.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for q.inflight.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Pending returns the number of armed delay timers.
func (q *Queue) Pending() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.timers)
}

func (q *Queue) work(ctx context.Context, index int, p *partition) {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case <-ctx.Done():
			return
		default:
		}
		task, ok := p.pop()
		if !ok {
			select {
			case <-q.done:
				return
			case <-ctx.Done():
				return
			case <-p.notify:
			}
			continue
		}
		q.run(ctx, index, task)
	}
}

func (q *Queue) run(ctx context.Context, partition int, task Task) {
	defer q.inflight.Add(-1)
	q.mu.RLock()
	handlers := q.handlers[task.Kind()]
	q.mu.RUnlock()

	if len(handlers) == 0 {
		q.logger.Warn("no handler for task", zap.String("kind", task.Kind()))
		return
	}
	for _, fn := range handlers {
		if err := safeCall(ctx, fn, task); err != nil {
			q.logger.Error("task failed",
				zap.String("kind", task.Kind()),
				zap.String("partition_key", task.PartitionKey()),
				zap.Int("partition", partition),
				zap.Error(err),
			)
		}
	}
}

func safeCall(ctx context.Context, fn HandlerFunc, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, task)
}

// partition is a FIFO of tasks served by one worker.
type partition struct {
	mu     sync.Mutex
	tasks  []Task
	notify chan struct{}
}

func newPartition(capacity int) *partition {
	return &partition{tasks: make([]Task, 0, capacity), notify: make(chan struct{}, 1)}
}

func (p *partition) push(task Task) {
	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *partition) pop() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tasks) == 0 {
		return nil, false
	}
	task := p.tasks[0]
	p.tasks[0] = nil
	p.tasks = p.tasks[1:]
	return task, true
}

var _ Router = (*Queue)(nil)
