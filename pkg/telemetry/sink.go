package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"code.issuerext.org/golang/internal/observability"
)

// Sink receives telemetry events.
// Record must not block and never reports failures to its caller.
type Sink interface {
	Record(ctx context.Context, key string, fields map[string]any)
}

// Store persists Events.
type Store interface {
	SaveEvent(ctx context.Context, ev Event) error
}

// Nop is a Sink that discards everything.
type Nop struct{}

func (self Nop) Record(_ context.Context, _ string, _ map[string]any) {}

// LogStore is a Store that writes Events to a Logger.
type LogStore struct {
	Logger *slog.Logger
}

// SaveEvent logs ev at Info level.
func (self LogStore) SaveEvent(ctx context.Context, ev Event) error {
	log := self.Logger
	if nil == log {
		log = observability.GetObservability(ctx).Log()
	}
	attrs := make([]any, 0, 3+len(ev.Fields))
	attrs = append(attrs, "id", ev.ID.String(), "key", ev.Key)
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	log.InfoContext(ctx, "telemetry", attrs...)

	return nil
}

// AsyncCfg holds AsyncSink configuration.
type AsyncCfg struct {
	// BufferSize is the number of Events that can wait for storage, default 256.
	BufferSize int

	// Logger receives storage failures at Debug level, default slog.Default().
	Logger *slog.Logger
}

// AsyncSink is a Sink that hands Events to a single storage goroutine.
// Events are dropped when the buffer is full or when the AsyncSink is closed.
type AsyncSink struct {
	store   Store
	log     *slog.Logger
	events  chan Event
	done    chan struct{}
	mut     sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewAsyncSink returns an AsyncSink that saves Events in store.
// Close must be called to release the storage goroutine.
func NewAsyncSink(store Store, cfg AsyncCfg) *AsyncSink {
	size := cfg.BufferSize
	if size <= 0 {
		size = 256
	}
	log := cfg.Logger
	if nil == log {
		log = slog.Default()
	}
	if nil == store {
		store = LogStore{Logger: log}
	}

	rv := &AsyncSink{
		store:  store,
		log:    log,
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
	go rv.run()

	return rv
}

// Record queues a new Event, it never blocks.
func (self *AsyncSink) Record(_ context.Context, key string, fields map[string]any) {
	ev := NewEvent(key, fields)

	self.mut.RLock()
	defer self.mut.RUnlock()
	if self.closed {
		self.dropped.Add(1)
		return
	}
	select {
	case self.events <- ev:
	default:
		self.dropped.Add(1)
	}
}

// Dropped returns the number of Events that were not queued.
func (self *AsyncSink) Dropped() uint64 {
	return self.dropped.Load()
}

// Close stops accepting Events and waits until queued Events are stored.
func (self *AsyncSink) Close() {
	self.mut.Lock()
	if !self.closed {
		self.closed = true
		close(self.events)
	}
	self.mut.Unlock()

	<-self.done
}

func (self *AsyncSink) run() {
	defer close(self.done)

	ctx := observability.SetObservability(
		context.Background(),
		&observability.Observability{Logger: self.log},
	)
	for ev := range self.events {
		err := self.store.SaveEvent(ctx, ev)
		if nil != err {
			self.log.Debug("telemetry: failed saving event", "key", ev.Key, "error", err)
		}
	}
}

var (
	_ Sink  = Nop{}
	_ Sink  = &AsyncSink{}
	_ Store = LogStore{}
)
