package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/editor-bridge/errors"
)

type queueKey struct{}

// task is one unit of work. done is nil for fire-and-forget posts.
type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Queue is an owning execution context: every task submitted to it runs
// on one goroutine, in submission order. Objects with thread affinity do
// all their work through their Queue.
type Queue struct {
	name    string
	logger  *zap.Logger
	onError func(error)

	mu      sync.Mutex
	pending []task
	stopped bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithName names the queue in log output.
func WithName(name string) Option {
	return func(q *Queue) { q.name = name }
}

// WithLogger overrides the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithErrorHandler receives errors and recovered panics from posted tasks.
func WithErrorHandler(fn func(error)) Option {
	return func(q *Queue) { q.onError = fn }
}

// New creates a Queue and starts its goroutine.
func New(opts ...Option) *Queue {
	q := &Queue{
		name: "queue",
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = Logger()
	}
	q.logger = q.logger.With(zap.String("queue", q.name))
	go q.loop()
	return q
}

// OnQueue reports whether ctx belongs to a task running on q.
func OnQueue(ctx context.Context, q *Queue) bool {
	owner := Current(ctx)
	return owner != nil && owner == q
}

// Current returns the queue running the task ctx belongs to, or nil.
func Current(ctx context.Context) *Queue {
	if ctx == nil {
		return nil
	}
	q, _ := ctx.Value(queueKey{}).(*Queue)
	return q
}

// Post schedules fn and returns immediately. It reports false if the queue
// has been stopped.
func (q *Queue) Post(fn func()) bool {
	return q.enqueue(task{
		ctx: context.Background(),
		fn: func(context.Context) error {
			fn()
			return nil
		},
	})
}

// PostContext schedules fn with a context marked as running on q.
func (q *Queue) PostContext(ctx context.Context, fn func(context.Context) error) bool {
	return q.enqueue(task{ctx: ctx, fn: fn})
}

// Do runs fn on the queue and waits for it. A panic in fn is returned as
// an error unless it is a critical runtime fault. When ctx already belongs
// to a task on q, fn runs inline. Cancelling ctx stops the wait but not
// the task.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	if OnQueue(ctx, q) {
		return q.execute(ctx, fn)
	}

	done := make(chan error, 1)
	if !q.enqueue(task{ctx: ctx, fn: fn, done: done}) {
		return errors.Disposed(errors.PhaseDispatch, q.name)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the goroutine down after the task in progress. Tasks still
// pending are dropped; their Do callers receive a disposed error. Stop is
// idempotent and safe to call from a task. Use Wait to block until the
// goroutine has exited.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	close(q.quit)
	for _, t := range dropped {
		if t.done != nil {
			t.done <- errors.Disposed(errors.PhaseDispatch, q.name)
		}
	}
	if len(dropped) > 0 {
		q.logger.Debug("dropped pending tasks on stop", zap.Int("count", len(dropped)))
	}
}

// Wait blocks until the queue goroutine has exited.
func (q *Queue) Wait() {
	<-q.done
}

// Stopped reports whether Stop has been called.
func (q *Queue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

func (q *Queue) enqueue(t task) bool {
	if t.ctx == nil {
		t.ctx = context.Background()
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) loop() {
	defer close(q.done)

	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for i, t := range batch {
			select {
			case <-q.quit:
				q.fail(batch[i:])
				return
			default:
			}

			err := q.execute(t.ctx, t.fn)
			if t.done != nil {
				t.done <- err
			} else if err != nil {
				q.report(err)
			}
		}

		if len(batch) > 0 {
			continue
		}

		select {
		case <-q.wake:
		case <-q.quit:
			return
		}
	}
}

func (q *Queue) fail(rest []task) {
	for _, t := range rest {
		if t.done != nil {
			t.done <- errors.Disposed(errors.PhaseDispatch, q.name)
		}
	}
}

// execute runs fn with a context marked as on-queue. Panics become errors
// except critical runtime faults, which are re-raised.
func (q *Queue) execute(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if errors.IsCritical(r) {
				panic(r)
			}
			err = errors.Panic(errors.PhaseDispatch, q.name, r)
		}
	}()
	if !OnQueue(ctx, q) {
		ctx = context.WithValue(ctx, queueKey{}, q)
	}
	return fn(ctx)
}

func (q *Queue) report(err error) {
	q.logger.Error("posted task failed", zap.Error(err))
	if q.onError != nil {
		q.onError(err)
	}
}
