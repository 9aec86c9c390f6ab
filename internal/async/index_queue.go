// Package async runs index deliveries off the request path.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/docforge/internal/sink"
)

var (
	ErrQueueFull   = errors.New("index queue full")
	ErrQueueClosed = errors.New("index queue closed")
)

// IndexQueue delivers entries to a sink with a fixed worker pool. Failed
// deliveries are retried with linear backoff, then dead-lettered.
type IndexQueue struct {
	sink     sink.Sink
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	attempts int
	backoff  time.Duration
	onDead   func(sink.Entry, error)

	ch   chan sink.Entry
	wg   sync.WaitGroup
	once sync.Once
	stop chan struct{}

	mu     sync.Mutex
	closed bool

	delivered atomic.Int64
	dead      atomic.Int64
}

type Option func(*IndexQueue)

func WithWorkers(n int) Option {
	return func(q *IndexQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *IndexQueue) {
		if n > 0 {
			q.ch = make(chan sink.Entry, n)
		}
	}
}

// WithAttemptTimeout bounds a single delivery attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(q *IndexQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithRetries sets the total number of delivery attempts per entry.
func WithRetries(n int) Option {
	return func(q *IndexQueue) {
		if n > 0 {
			q.attempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt k waits k*d before the next one.
func WithBackoff(d time.Duration) Option {
	return func(q *IndexQueue) {
		if d >= 0 {
			q.backoff = d
		}
	}
}

// WithDeadLetter registers a hook called after an entry is given up on.
func WithDeadLetter(fn func(sink.Entry, error)) Option {
	return func(q *IndexQueue) { q.onDead = fn }
}

func NewIndexQueue(s sink.Sink, logger *slog.Logger, opts ...Option) *IndexQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &IndexQueue{
		sink:     s,
		logger:   logger,
		workers:  2,
		timeout:  2 * time.Minute,
		attempts: 3,
		backoff:  2 * time.Second,
		ch:       make(chan sink.Entry, 256),
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *IndexQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("index worker started", "worker_id", workerID)
				for e := range q.ch {
					q.deliver(workerID, e)
				}
				q.logger.Debug("index worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *IndexQueue) deliver(workerID int, e sink.Entry) {
	var err error
	for attempt := 1; attempt <= q.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err = q.sink.Index(ctx, e)
		cancel()
		if err == nil {
			q.delivered.Add(1)
			q.logger.Info("index.delivered", "worker_id", workerID, "doc_id", e.DocID, "attempt", attempt)
			return
		}
		q.logger.Warn("index.attempt_failed", "worker_id", workerID, "doc_id", e.DocID, "attempt", attempt, "error", err)
		if attempt == q.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * q.backoff):
		case <-q.stop:
			q.deadLetter(e, errors.Join(err, ErrQueueClosed))
			return
		}
	}
	q.deadLetter(e, err)
}

func (q *IndexQueue) deadLetter(e sink.Entry, err error) {
	q.dead.Add(1)
	q.logger.Error("index.dead_letter", "doc_id", e.DocID, "filename", e.Filename, "chars", len(e.Text), "error", err)
	if q.onDead != nil {
		q.onDead(e, err)
	}
}

// Enqueue never blocks: a full or closed queue dead-letters the entry.
func (q *IndexQueue) Enqueue(e sink.Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.deadLetter(e, ErrQueueClosed)
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		q.logger.Debug("index.queued", "doc_id", e.DocID)
		return nil
	default:
		q.deadLetter(e, ErrQueueFull)
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued entries to drain. When ctx
// expires first, pending backoffs are cut short.
func (q *IndexQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		close(q.stop)
		q.logger.Warn("index queue shutdown interrupted by context")
	case <-done:
		q.logger.Info("index queue drained, shutdown complete")
	}
}

// Stats reports delivered and dead-lettered counts.
func (q *IndexQueue) Stats() (delivered, dead int64) {
	return q.delivered.Load(), q.dead.Load()
}
