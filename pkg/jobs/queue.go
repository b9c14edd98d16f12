package jobs

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Queue errors returned by Enqueue.
var (
	ErrNotRunning = errors.New("queue not running")
	ErrFull       = errors.New("queue full")
)

// Task wraps a value of type T with its delivery bookkeeping.
type Task[T any] struct {
	ID         string
	Value      T
	Attempt    int
	EnqueuedAt time.Time
}

// Handler processes one task. A returned error schedules a retry.
type Handler[T any] func(context.Context, Task[T]) error

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay is the first backoff step; each retry doubles it up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Logger        *zap.Logger
}

// Stats is a point-in-time view of queue throughput.
type Stats struct {
	Pending   int    `json:"pending"`
	Processed uint64 `json:"processed"`
	Retried   uint64 `json:"retried"`
	Exhausted uint64 `json:"exhausted"`
}

// Queue is an in-memory work queue served by a fixed pool of goroutines. Enqueue never
// blocks: a full buffer is reported to the caller, who decides whether to run inline.
type Queue[T any] struct {
	name      string
	handler   Handler[T]
	exhausted func(Task[T], error)
	cfg       QueueConfig
	logger    *zap.Logger

	tasks    chan Task[T]
	inflight sync.WaitGroup
	workers  sync.WaitGroup

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool

	processed atomic.Uint64
	retried   atomic.Uint64
	dead      atomic.Uint64
}

// NewQueue builds a stopped queue. onExhausted, when set, receives tasks that failed
// MaxRetries+1 times.
func NewQueue[T any](name string, handler Handler[T], onExhausted func(Task[T], error), cfg QueueConfig) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = 30 * cfg.RetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:      name,
		handler:   handler,
		exhausted: onExhausted,
		cfg:       cfg,
		logger:    cfg.Logger.With(zap.String("queue", name)),
		tasks:     make(chan Task[T], cfg.BufferSize),
	}
}

// Start launches the workers. Calling Start on a running queue is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.workers.Add(1)
		go q.work()
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("buffer", q.cfg.BufferSize))
}

// Enqueue hands a task to the workers. It fails with ErrNotRunning or ErrFull.
func (q *Queue[T]) Enqueue(id string, value T) error {
	return q.push(Task[T]{ID: id, Value: value, EnqueuedAt: time.Now().UTC()})
}

func (q *Queue[T]) push(task Task[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}
	q.inflight.Add(1)
	select {
	case q.tasks <- task:
		return nil
	default:
		q.inflight.Done()
		return fmt.Errorf("%s: %w", q.name, ErrFull)
	}
}

// Stop refuses new tasks, waits until queued tasks and pending retries settle or ctx
// expires, then stops the workers.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(drained)
	}()
	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("%s: drain interrupted with %d pending: %w", q.name, len(q.tasks), ctx.Err())
	}
	q.cancel()
	q.workers.Wait()
	q.logger.Info("queue stopped", zap.Uint64("processed", q.processed.Load()))
	return err
}

// Stats reports queue depth and counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Pending:   len(q.tasks),
		Processed: q.processed.Load(),
		Retried:   q.retried.Load(),
		Exhausted: q.dead.Load(),
	}
}

func (q *Queue[T]) work() {
	defer q.workers.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.run(task); err != nil {
				q.retry(task, err)
			} else {
				q.processed.Add(1)
			}
			q.inflight.Done()
		}
	}
}

func (q *Queue[T]) run(task Task[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.ID, r)
		}
	}()
	return q.handler(q.ctx, task)
}

// retry reschedules a failed task after its backoff. The inflight count is held across
// the wait so Stop does not return while a retry is pending.
func (q *Queue[T]) retry(task Task[T], cause error) {
	task.Attempt++
	if task.Attempt > q.cfg.MaxRetries {
		q.dead.Add(1)
		q.logger.Error("task exhausted retries", zap.String("task_id", task.ID), zap.Int("attempts", task.Attempt), zap.Error(cause))
		if q.exhausted != nil {
			q.exhausted(task, cause)
		}
		return
	}
	q.retried.Add(1)
	delay := q.backoff(task.Attempt)
	q.logger.Warn("task failed, retrying", zap.String("task_id", task.ID), zap.Int("attempt", task.Attempt), zap.Duration("delay", delay), zap.Error(cause))

	q.inflight.Add(1)
	go func() {
		defer q.inflight.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
		}
		q.inflight.Add(1)
		select {
		case q.tasks <- task:
		case <-q.ctx.Done():
			q.inflight.Done()
		}
	}()
}

// backoff doubles RetryDelay per attempt, caps it and adds up to 20% jitter.
func (q *Queue[T]) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay << uint(attempt-1)
	if delay <= 0 || delay > q.cfg.MaxRetryDelay {
		delay = q.cfg.MaxRetryDelay
	}
	return delay + time.Duration(rand.Int63n(int64(delay)/5+1))
}
