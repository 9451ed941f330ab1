package hermes

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ugobe007/pythh-sub021/internal/metrics"
)

// DefaultQueueSize bounds the emitter backlog.
const DefaultQueueSize = 256

type envelope struct {
	subject string
	data    interface{}
}

// Emitter publishes events from a background goroutine. Emit never blocks the
// caller: when the queue is full the event is dropped and counted. A nil
// *Emitter, or one without a client, silently discards.
type Emitter struct {
	client Client
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	wg     sync.WaitGroup
}

func NewEmitter(client Client, queueSize int, logger *slog.Logger) *Emitter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	e := &Emitter{
		client: client,
		logger: logger,
		queue:  make(chan envelope, queueSize),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for env := range e.queue {
		if err := e.client.Publish(env.subject, env.data); err != nil {
			metrics.EventsEmitted.WithLabelValues("failed").Inc()
			e.logger.Warn("event publish failed", "subject", env.subject, "error", err)
			continue
		}
		metrics.EventsEmitted.WithLabelValues("published").Inc()
	}
}

// Emit queues an event and reports whether it was accepted.
func (e *Emitter) Emit(subject string, data interface{}) bool {
	if e == nil || e.client == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}
	select {
	case e.queue <- envelope{subject: subject, data: data}:
		return true
	default:
		metrics.EventsEmitted.WithLabelValues("dropped").Inc()
		e.logger.Warn("event queue full, dropping", "subject", subject)
		return false
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (e *Emitter) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
