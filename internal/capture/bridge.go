package capture

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"NetProfiler/internal/model"
)

const defaultChannelSize = 1024

// Source is a blocking capture source. Run is expected to occupy its
// goroutine until the context is cancelled or the underlying capture
// fails; every decoded observation is handed to emit.
type Source interface {
	Run(ctx context.Context, emit func(model.FingerprintEvent)) error
	Name() string
}

// Bridge adapts a blocking capture source into non-blocking event
// production on a bounded channel. When the channel is full the oldest
// unconsumed event is evicted to admit the new one, so the capture
// thread never stalls behind a slow consumer.
type Bridge struct {
	out     chan model.FingerprintEvent
	dropped atomic.Uint64
	wg      sync.WaitGroup

	errMu  sync.Mutex
	runErr error
}

// NewBridge creates a bridge with the given channel capacity.
func NewBridge(size int) *Bridge {
	if size <= 0 {
		size = defaultChannelSize
	}
	return &Bridge{out: make(chan model.FingerprintEvent, size)}
}

// Events returns the consumer end of the bridge. The channel is closed
// once the capture source has stopped.
func (b *Bridge) Events() <-chan model.FingerprintEvent {
	return b.out
}

// Dropped returns the number of events evicted under overload. The
// counter only ever grows.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Err returns the capture source failure, if any. A failed source is
// fatal to its bridge but not to the rest of the process; callers
// surface it through their health checks.
func (b *Bridge) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.runErr
}

// Run starts the capture source in its own goroutine. The sink channel
// is closed after the source returns, so in-flight callbacks always
// finish before consumers observe the shutdown.
func (b *Bridge) Run(ctx context.Context, src Source) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(b.out)
		if err := src.Run(ctx, b.offer); err != nil && ctx.Err() == nil {
			log.Printf("Capture source '%s' failed: %v", src.Name(), err)
			b.errMu.Lock()
			b.runErr = err
			b.errMu.Unlock()
		}
	}()
}

// Wait blocks until the capture source has stopped and the sink channel
// is closed.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// offer enqueues an event with drop-oldest backpressure. Freshness is
// preferred over completeness: under overload the oldest buffered event
// is discarded and the dropped counter incremented.
func (b *Bridge) offer(ev model.FingerprintEvent) {
	for {
		select {
		case b.out <- ev:
			return
		default:
		}
		select {
		case <-b.out:
			b.dropped.Add(1)
		default:
			// A consumer raced us to the oldest event; retry the send.
		}
	}
}
