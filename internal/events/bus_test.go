package events

import (
	"errors"
	"testing"
	"time"
)

func TestInvalidationDispatchOrder(t *testing.T) {
	b := New()
	var order []int
	b.OnInvalidationMessageReceived(func(key, origin string) { order = append(order, 1) })
	b.OnInvalidationMessageReceived(func(key, origin string) { order = append(order, 2) })
	b.OnInvalidationMessageReceived(func(key, origin string) { order = append(order, 3) })

	b.EmitInvalidationMessageReceived("k", "origin")

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}
}

func TestInvalidationPayload(t *testing.T) {
	b := New()
	var gotKey, gotOrigin string
	b.OnInvalidationMessageReceived(func(key, origin string) {
		gotKey, gotOrigin = key, origin
	})
	b.EmitInvalidationMessageReceived("user:1", "cache-abc")
	if gotKey != "user:1" || gotOrigin != "cache-abc" {
		t.Fatalf("got %q, %q", gotKey, gotOrigin)
	}
}

func TestOffRemovesListener(t *testing.T) {
	b := New()
	called := false
	h := b.OnInvalidationMessageReceived(func(key, origin string) { called = true })
	b.Off(h)
	b.EmitInvalidationMessageReceived("k", "o")
	if called {
		t.Fatal("listener fired after Off")
	}
}

func TestOffUnknownHandleIsNoOp(t *testing.T) {
	b := New()
	b.Off(Handle(999))
}

func TestListenerPanicIsolated(t *testing.T) {
	b := New()
	secondCalled := false
	b.OnInvalidationMessageReceived(func(key, origin string) { panic("boom") })
	b.OnInvalidationMessageReceived(func(key, origin string) { secondCalled = true })

	b.EmitInvalidationMessageReceived("k", "o")

	if !secondCalled {
		t.Fatal("second listener should still have run after the first panicked")
	}
}

func TestReconnectEvents(t *testing.T) {
	b := New()
	var gotErr error
	var gotAttempt int
	var gotInterval time.Duration

	b.OnReconnecting(func(err error, attempt int, interval time.Duration) {
		gotErr, gotAttempt, gotInterval = err, attempt, interval
	})

	wantErr := errors.New("lost connection")
	b.EmitReconnecting(wantErr, 3, 2*time.Second)

	if !errors.Is(gotErr, wantErr) || gotAttempt != 3 || gotInterval != 2*time.Second {
		t.Fatalf("got %v, %d, %v", gotErr, gotAttempt, gotInterval)
	}

	reconnectedFired := false
	b.OnReconnected(func(err error, attempt int, interval time.Duration) {
		reconnectedFired = true
	})
	b.EmitReconnected(nil, 3, 2*time.Second)
	if !reconnectedFired {
		t.Fatal("reconnected listener did not fire")
	}
}

func TestIndependentEventStreams(t *testing.T) {
	b := New()
	invalidationFired := false
	b.OnInvalidationMessageReceived(func(key, origin string) { invalidationFired = true })
	b.EmitReconnecting(nil, 1, 0)
	if invalidationFired {
		t.Fatal("invalidation listener should not fire for reconnecting events")
	}
}
