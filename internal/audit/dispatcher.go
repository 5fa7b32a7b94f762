package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls how events are queued on their way to the sink.
type Config struct {
	Enabled bool
	// BufferSize bounds the queue between Emit and the sink. Values below one
	// become one.
	BufferSize int
	// DropIfFull makes Emit discard the event instead of waiting when the
	// queue is full.
	DropIfFull bool
	// OnDrop runs on the emitting goroutine for every discarded event.
	OnDrop func(Event)
}

// Dispatcher hands engine events to a Sink on a background worker so the
// operation that produced them never waits on slow audit storage.
//
// A nil *Dispatcher accepts and discards everything, which is what
// NewDispatcher returns when auditing is disabled.
type Dispatcher struct {
	cfg  Config
	sink Sink

	queue   chan Event
	quit    chan struct{}
	stopped chan struct{}
	stop    sync.Once
	closing atomic.Bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts the worker, or returns nil when cfg.Enabled is false.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		queue:   make(chan Event, max(cfg.BufferSize, 1)),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.work()
	return d
}

// work forwards queued events until Close, then flushes what is left.
func (d *Dispatcher) work() {
	defer close(d.stopped)

	for {
		select {
		case event := <-d.queue:
			d.forward(event)
		case <-d.quit:
			d.flush()
			return
		}
	}
}

func (d *Dispatcher) flush() {
	for {
		select {
		case event := <-d.queue:
			d.forward(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) forward(event Event) {
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues event for the sink. Events emitted after Close are ignored.
//
// With DropIfFull a full queue discards the event and Emit returns at once.
// Otherwise Emit waits for room until ctx ends or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if d.cfg.DropIfFull {
		d.offer(event)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

func (d *Dispatcher) offer(event Event) {
	select {
	case d.queue <- event:
		return
	case <-d.quit:
		return
	default:
	}

	d.dropped.Add(1)
	if d.cfg.OnDrop != nil {
		d.cfg.OnDrop(event)
	}
}

// Close stops accepting events and returns once every queued event has
// reached the sink. Later calls return immediately.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stop.Do(func() {
		d.closing.Store(true)
		close(d.quit)
	})
	<-d.stopped
}

// Dropped counts events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered counts events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
