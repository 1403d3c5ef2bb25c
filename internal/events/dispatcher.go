package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DispatcherConfig controls the concurrency characteristics of the dispatcher.
type DispatcherConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Dispatcher hands events to a sink publisher from a pool of background
// workers so callers never wait on the sink.
type Dispatcher struct {
	sink    Publisher
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan Event
	wg     sync.WaitGroup
}

// ErrDispatcherClosed is returned by Publish after Shutdown has been called.
var ErrDispatcherClosed = errors.New("event dispatcher closed")

// NewDispatcher starts cfg.Workers goroutines delivering events to sink.
func NewDispatcher(sink Publisher, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan Event, cfg.QueueSize),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// Publish queues event for delivery. It blocks only while the queue is full.
func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The read lock keeps Shutdown from closing jobs while a send is pending.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case d.jobs <- event:
		return nil
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	// jobs is closed by Shutdown, so ranging drains whatever was queued first.
	for event := range d.jobs {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	if d.sink == nil {
		d.logger.Error("event dispatcher missing sink", "type", event.Type)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Publish(ctx, event); err != nil {
		d.logger.Error("deliver relationship event", "type", event.Type, "actorId", event.ActorID, "targetId", event.TargetID, "error", err)
	}
}

var _ Publisher = (*Dispatcher)(nil)
