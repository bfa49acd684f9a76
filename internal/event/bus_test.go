package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(RunStarted, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: RunStarted, Data: RunStartedData{SessionID: "s1", RequestID: "r1"}})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Type != RunStarted {
			t.Errorf("expected RunStarted, got %v", received.Type)
		}
		data, ok := received.Data.(RunStartedData)
		if !ok || data.RequestID != "r1" {
			t.Errorf("unexpected payload: %+v", received.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: SessionCreated})
	bus.Publish(Event{Type: ContentDelta})
	bus.Publish(Event{Type: RunCompleted})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("expected 3 events, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	unsub := bus.Subscribe(ContentDelta, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: ContentDelta})
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("expected 1 event before unsubscribe, got %d", count)
	}

	unsub()

	bus.PublishSync(Event{Type: ContentDelta})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected no delivery after unsubscribe, got %d", count)
	}
}

func TestBus_PublishSyncPreservesOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []string
	bus.SubscribeAll(func(e Event) {
		if d, ok := e.Data.(ContentDeltaData); ok {
			got = append(got, d.Delta)
		}
	})

	for _, delta := range []string{"a", "b", "c", "d"} {
		bus.PublishSync(Event{Type: ContentDelta, Data: ContentDeltaData{Delta: delta}})
	}

	want := "abcd"
	var joined string
	for _, s := range got {
		joined += s
	}
	if joined != want {
		t.Errorf("expected in-order delivery %q, got %q", want, joined)
	}
}

func TestBus_ClosedBusDropsEverything(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.Subscribe(RunFailed, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	if err := bus.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	bus.PublishSync(Event{Type: RunFailed})
	if atomic.LoadInt32(&count) != 0 {
		t.Errorf("expected no delivery after close, got %d", count)
	}

	// Subscribing after close returns a usable no-op unsubscriber.
	unsub := bus.Subscribe(RunFailed, func(e Event) {})
	unsub()
}
