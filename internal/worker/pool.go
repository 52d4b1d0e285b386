// Package worker runs accepted webhook messages through the conversation
// machine on a fixed pool of goroutines. Admission is bounded: capacity must
// be reserved before a message is acknowledged to the provider, and it is
// freed when processing finishes, not when a task is dequeued.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one accepted inbound message awaiting processing.
type Task struct {
	ID           string
	SubscriberID string
	MessageID    string
	Text         string
	EnqueuedAt   time.Time
}

// Handler processes one task. Errors are counted and logged; the task is not
// retried by the pool.
type Handler func(ctx context.Context, task Task) error

// Stats is a point-in-time snapshot of pool activity. Counter fields are
// cumulative since start.
type Stats struct {
	Workers     int
	MaxInFlight int
	InFlight    int
	QueueDepth  int
	Accepted    int64
	Rejected    int64
	Duplicates  int64
	Completed   int64
	Failed      int64
}

// Pool owns the queue and the worker goroutines.
type Pool struct {
	handler     Handler
	log         *logrus.Logger
	workerCount int
	maxInFlight int

	slots chan struct{} // one token per reserved unit of capacity
	queue chan Task

	pending sync.WaitGroup // reservations not yet released or completed
	workers sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	accepted   int64
	rejected   int64
	duplicates int64
	completed  int64
	failed     int64
}

// NewPool starts workerCount workers sharing a queue bounded by maxInFlight.
func NewPool(workerCount, maxInFlight int, handler Handler, log *logrus.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if maxInFlight < workerCount {
		maxInFlight = workerCount
	}
	if log == nil {
		log = logrus.New()
	}

	p := &Pool{
		handler:     handler,
		log:         log,
		workerCount: workerCount,
		maxInFlight: maxInFlight,
		slots:       make(chan struct{}, maxInFlight),
		queue:       make(chan Task, maxInFlight),
	}
	for i := 0; i < workerCount; i++ {
		p.workers.Add(1)
		go p.run()
	}
	return p
}

// TryReserve claims one unit of capacity before any acknowledgement or dedup
// write happens. It never blocks: false means the pool is saturated (or
// stopping) and the caller should tell the provider to retry later.
func (p *Pool) TryReserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.rejected++
		return false
	}
	select {
	case p.slots <- struct{}{}:
		p.pending.Add(1)
		return true
	default:
		p.rejected++
		return false
	}
}

// Release returns capacity claimed with TryReserve without running a task,
// for when admission fails between the reservation and the enqueue.
func (p *Pool) Release() {
	<-p.slots
	p.pending.Done()
}

// NoteDuplicate releases a reservation for a message the dedup store has
// already seen.
func (p *Pool) NoteDuplicate() {
	p.mu.Lock()
	p.duplicates++
	p.mu.Unlock()
	p.Release()
}

// Enqueue hands a reserved task to the workers. The queue is sized to
// maxInFlight, so with a reservation held the send cannot block.
func (p *Pool) Enqueue(task Task) {
	task.EnqueuedAt = time.Now()
	p.mu.Lock()
	p.accepted++
	p.mu.Unlock()
	p.queue <- task
}

// Stop refuses new reservations, waits for everything already admitted to
// finish, then shuts the workers down. If ctx expires first the remaining
// work is abandoned; the process is exiting anyway.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("worker: drain interrupted: %w", ctx.Err())
	}

	close(p.queue)
	p.workers.Wait()
	return nil
}

// Stats returns a snapshot for health reporting and metrics publication.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:     p.workerCount,
		MaxInFlight: p.maxInFlight,
		InFlight:    len(p.slots),
		QueueDepth:  len(p.queue),
		Accepted:    p.accepted,
		Rejected:    p.rejected,
		Duplicates:  p.duplicates,
		Completed:   p.completed,
		Failed:      p.failed,
	}
}

func (p *Pool) run() {
	defer p.workers.Done()
	for task := range p.queue {
		p.handle(task)
	}
}

func (p *Pool) handle(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"task_id":    task.ID,
				"subscriber": task.SubscriberID,
			}).Errorf("task panicked: %v", r)
			p.count(&p.failed)
		}
		<-p.slots
		p.pending.Done()
	}()

	start := time.Now()
	err := p.handler(context.Background(), task)
	if err != nil {
		p.count(&p.failed)
		p.log.WithFields(logrus.Fields{
			"task_id":    task.ID,
			"subscriber": task.SubscriberID,
			"message_id": task.MessageID,
			"elapsed":    time.Since(start).String(),
		}).WithError(err).Error("task failed")
		return
	}
	p.count(&p.completed)
}

func (p *Pool) count(field *int64) {
	p.mu.Lock()
	*field++
	p.mu.Unlock()
}
