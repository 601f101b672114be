package capture

import (
	"context"
	"testing"
	"time"

	"NetProfiler/internal/model"
)

// burstSource emits a fixed number of events as fast as possible and returns.
type burstSource struct {
	count int
}

func (s *burstSource) Name() string { return "burst" }

func (s *burstSource) Run(ctx context.Context, emit func(model.FingerprintEvent)) error {
	for i := 0; i < s.count; i++ {
		emit(model.FingerprintEvent{
			Kind:       model.SourceTCP,
			Key:        "10.0.0.1",
			ObservedAt: time.Unix(int64(i), 0),
			TCP:        &model.TCPSignature{},
		})
	}
	return nil
}

// blockingSource emits one event then waits for cancellation.
type blockingSource struct {
	started chan struct{}
}

func (s *blockingSource) Name() string { return "blocking" }

func (s *blockingSource) Run(ctx context.Context, emit func(model.FingerprintEvent)) error {
	emit(model.FingerprintEvent{Kind: model.SourceTCP, Key: "10.0.0.2", ObservedAt: time.Now(), TCP: &model.TCPSignature{}})
	close(s.started)
	<-ctx.Done()
	return nil
}

func TestBridge_DropOldestUnderOverload(t *testing.T) {
	const capacity = 8
	const total = 1000

	bridge := NewBridge(capacity)
	bridge.Run(context.Background(), &burstSource{count: total})
	bridge.Wait()

	// With no consumer running, everything beyond capacity must have been
	// evicted rather than blocking the source.
	consumed := 0
	var last model.FingerprintEvent
	for ev := range bridge.Events() {
		consumed++
		last = ev
	}

	if consumed != capacity {
		t.Errorf("Expected %d buffered events after overload, got %d", capacity, consumed)
	}
	if dropped := bridge.Dropped(); dropped != total-capacity {
		t.Errorf("Expected %d dropped events, got %d", total-capacity, dropped)
	}
	// Drop-oldest keeps the freshest events: the last emitted event survives.
	if last.ObservedAt.Unix() != total-1 {
		t.Errorf("Expected the newest event to survive eviction, got timestamp %d", last.ObservedAt.Unix())
	}
}

func TestBridge_NoDropsWhenConsumerKeepsUp(t *testing.T) {
	bridge := NewBridge(2048)
	bridge.Run(context.Background(), &burstSource{count: 500})

	consumed := 0
	for range bridge.Events() {
		consumed++
	}
	bridge.Wait()

	if consumed != 500 {
		t.Errorf("Expected all 500 events to be delivered, got %d", consumed)
	}
	if dropped := bridge.Dropped(); dropped != 0 {
		t.Errorf("Expected no drops with sufficient capacity, got %d", dropped)
	}
}

func TestBridge_ShutdownClosesSink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &blockingSource{started: make(chan struct{})}

	bridge := NewBridge(16)
	bridge.Run(ctx, src)

	select {
	case <-src.started:
	case <-time.After(time.Second):
		t.Fatal("Capture source never started")
	}

	cancel()
	bridge.Wait()

	// The in-flight event must still be delivered, then the channel closes.
	ev, ok := <-bridge.Events()
	if !ok {
		t.Fatal("Expected the buffered event to be drained before close")
	}
	if ev.Key != "10.0.0.2" {
		t.Errorf("Unexpected event key %q", ev.Key)
	}
	if _, ok := <-bridge.Events(); ok {
		t.Error("Expected sink channel to be closed after shutdown")
	}
	if err := bridge.Err(); err != nil {
		t.Errorf("Cancellation must not be reported as a source failure, got: %v", err)
	}
}
