package bus

import (
	"context"
	"sync"
	"testing"
)

func TestFireDeliversToListeners(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var received []Event
	b.Listen(EventStateChanged, func(_ context.Context, e Event) {
		received = append(received, e)
	})

	b.Fire(ctx, EventStateChanged, map[string]any{"entity_id": "light.living_room"})
	b.Fire(ctx, EventServiceCalled, nil) // Different type, must not be delivered

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != EventStateChanged {
		t.Errorf("Type = %q, want %q", received[0].Type, EventStateChanged)
	}
	if received[0].Data["entity_id"] != "light.living_room" {
		t.Errorf("Data[entity_id] = %v, want light.living_room", received[0].Data["entity_id"])
	}
	if received[0].ID == "" {
		t.Error("event ID should not be empty")
	}
	if received[0].TimeFired.IsZero() {
		t.Error("TimeFired should be set")
	}
}

func TestListenAllReceivesEverything(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var count int
	b.ListenAll(func(_ context.Context, _ Event) { count++ })

	b.Fire(ctx, EventStateChanged, nil)
	b.Fire(ctx, EventServiceCalled, nil)
	b.Fire(ctx, "custom_event", nil)

	if count != 3 {
		t.Errorf("expected 3 events, got %d", count)
	}
}

func TestDetach(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var count int
	detach := b.Listen(EventStateChanged, func(_ context.Context, _ Event) { count++ })

	b.Fire(ctx, EventStateChanged, nil)
	detach()
	b.Fire(ctx, EventStateChanged, nil)

	if count != 1 {
		t.Errorf("expected 1 event after detach, got %d", count)
	}
	if b.ListenerCount(EventStateChanged) != 0 {
		t.Errorf("ListenerCount = %d, want 0", b.ListenerCount(EventStateChanged))
	}

	// Detach is idempotent
	detach()
}

func TestDetachOnlyRemovesOwnListener(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var first, second int
	detach := b.Listen(EventStateChanged, func(_ context.Context, _ Event) { first++ })
	b.Listen(EventStateChanged, func(_ context.Context, _ Event) { second++ })

	detach()
	b.Fire(ctx, EventStateChanged, nil)

	if first != 0 {
		t.Errorf("detached listener fired %d times", first)
	}
	if second != 1 {
		t.Errorf("remaining listener fired %d times, want 1", second)
	}
}

func TestPanickingListenerIsRecovered(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var survived bool
	b.Listen(EventStateChanged, func(_ context.Context, _ Event) {
		panic("listener exploded")
	})
	b.Listen(EventStateChanged, func(_ context.Context, _ Event) {
		survived = true
	})

	// Must not propagate the panic
	b.Fire(ctx, EventStateChanged, nil)

	if !survived {
		t.Error("second listener should still run after first panics")
	}
}

func TestConcurrentFireAndListen(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			detach := b.Listen(EventStateChanged, func(_ context.Context, _ Event) {})
			detach()
		}()
		go func() {
			defer wg.Done()
			b.Fire(ctx, EventStateChanged, nil)
		}()
	}
	wg.Wait()
}
