package exotel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Queue names. Each API class has its own submission queue because the
// provider enforces separate rate ceilings for voice and SMS.
type Queue string

const (
	QueueVoice Queue = "voice"
	QueueSMS   Queue = "sms"
)

const (
	// Provider ceiling is 200 calls/min; 300ms spacing keeps us under it.
	voiceSpacing   = 300 * time.Millisecond
	voiceReservoir = 200

	// SMS spacing is deliberately more conservative than the published limit.
	smsSpacing   = time.Second
	smsReservoir = 60
)

var ErrLimiterClosed = errors.New("exotel: limiter closed")

// Limiter serializes outbound provider requests per API class.
//
// Guarantees per queue:
// - at most one request in flight,
// - FIFO submission order,
// - minimum inter-request spacing plus a replenishing reservoir.
//
// The limiter does not retry or inspect failures; that is the executor's
// job. Queued work is unbounded in memory: under sustained overload queue
// depth grows without a backpressure signal to the caller. Known limitation.
type Limiter struct {
	mu     sync.Mutex
	queues map[Queue]*workQueue
	closed bool
	log    *slog.Logger
}

type workQueue struct {
	name    Queue
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*workItem
	closed  bool

	// Two stacked constraints. The spacer (burst 1) enforces the minimum
	// gap between consecutive requests even when the reservoir has banked
	// tokens after an idle stretch; the reservoir caps sustained volume.
	spacer    *rate.Limiter
	reservoir *rate.Limiter
}

type workItem struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

func NewLimiter(log *slog.Logger) *Limiter {
	l := &Limiter{
		queues: make(map[Queue]*workQueue, 2),
		log:    log,
	}
	l.addQueue(QueueVoice, voiceSpacing, voiceReservoir)
	l.addQueue(QueueSMS, smsSpacing, smsReservoir)
	return l
}

// newLimiterWithSpacing exists for tests that need fast queues.
func newLimiterWithSpacing(log *slog.Logger, spacing time.Duration, reservoir int) *Limiter {
	l := &Limiter{
		queues: make(map[Queue]*workQueue, 2),
		log:    log,
	}
	l.addQueue(QueueVoice, spacing, reservoir)
	l.addQueue(QueueSMS, spacing, reservoir)
	return l
}

func (l *Limiter) addQueue(name Queue, spacing time.Duration, reservoir int) {
	q := &workQueue{
		name:      name,
		spacer:    rate.NewLimiter(rate.Every(spacing), 1),
		reservoir: rate.NewLimiter(rate.Every(spacing), reservoir),
	}
	q.cond = sync.NewCond(&q.mu)
	l.queues[name] = q
	go q.run(l.log)
}

// Do submits fn to the named queue and waits for it to execute.
// Returns fn's error, or ctx.Err() if the caller gives up while queued.
// A caller that gives up does not cancel the slot ordering; its work item
// is discarded when dequeued.
func (l *Limiter) Do(ctx context.Context, name Queue, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLimiterClosed
	}
	q, ok := l.queues[name]
	l.mu.Unlock()
	if !ok {
		return errors.New("exotel: unknown limiter queue " + string(name))
	}

	item := &workItem{ctx: ctx, fn: fn, done: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrLimiterClosed
	}
	q.pending = append(q.pending, item)
	q.mu.Unlock()
	q.cond.Signal()

	select {
	case err := <-item.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops all queue workers. Pending work is dropped with ErrLimiterClosed.
func (l *Limiter) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	for _, q := range l.queues {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cond.Broadcast()
	}
}

func (q *workQueue) run(log *slog.Logger) {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			for _, item := range q.pending {
				item.done <- ErrLimiterClosed
			}
			q.pending = nil
			q.mu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		depth := len(q.pending)
		q.mu.Unlock()

		if depth > 50 && log != nil {
			log.Warn("limiter queue depth high", "queue", string(q.name), "depth", depth)
		}

		// Caller already gone: skip without consuming a rate token.
		if item.ctx.Err() != nil {
			item.done <- item.ctx.Err()
			continue
		}

		if err := q.reservoir.Wait(item.ctx); err != nil {
			item.done <- err
			continue
		}
		if err := q.spacer.Wait(item.ctx); err != nil {
			item.done <- err
			continue
		}
		item.done <- item.fn(item.ctx)
	}
}
