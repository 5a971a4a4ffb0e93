package lrustore

import (
	"testing"
	"time"
)

func TestNewInvalidMax(t *testing.T) {
	if _, err := New[string](Options{Max: 0}); err != ErrInvalidMax {
		t.Fatalf("expected ErrInvalidMax, got %v", err)
	}
	if _, err := New[string](Options{Max: -1}); err != ErrInvalidMax {
		t.Fatalf("expected ErrInvalidMax, got %v", err)
	}
}

func TestSetGetDel(t *testing.T) {
	s, err := New[string](Options{Max: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Set("a", "1")
	if v, ok := s.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	if !s.Has("a") {
		t.Fatal("Has(a) = false")
	}
	if !s.Del("a") {
		t.Fatal("Del(a) = false")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("Get(a) after Del = true")
	}
	if s.Del("a") {
		t.Fatal("Del(a) again = true")
	}
}

func TestEviction(t *testing.T) {
	s, err := New[int](Options{Max: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)
	if s.ItemCount() != 2 {
		t.Fatalf("ItemCount = %d, want 2", s.ItemCount())
	}
	if s.Has("a") {
		t.Fatal("oldest entry should have been evicted")
	}
}

func TestReset(t *testing.T) {
	s, _ := New[int](Options{Max: 4})
	s.Set("a", 1)
	s.Set("b", 2)
	s.Reset()
	if s.ItemCount() != 0 {
		t.Fatalf("ItemCount after Reset = %d, want 0", s.ItemCount())
	}
}

func TestKeysOrder(t *testing.T) {
	s, _ := New[int](Options{Max: 4})
	s.Set("a", 1)
	s.Set("b", 2)
	keys := s.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys() = %v, want [a b]", keys)
	}
}

func TestTTLExpiryAndPrune(t *testing.T) {
	s, err := New[int](Options{Max: 4, MaxAge: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Set("a", 1)
	time.Sleep(30 * time.Millisecond)
	if _, ok := s.Get("a"); ok {
		t.Fatal("expired entry should not be returned")
	}
	removed := s.Prune()
	if removed < 0 {
		t.Fatalf("Prune returned negative count: %d", removed)
	}
}

func TestInspectors(t *testing.T) {
	s, err := New[int](Options{Max: 7, MaxAge: time.Second, AllowStale: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Max() != 7 {
		t.Fatalf("Max() = %d, want 7", s.Max())
	}
	if s.MaxAge() != time.Second {
		t.Fatalf("MaxAge() = %v, want 1s", s.MaxAge())
	}
	if !s.AllowStale() {
		t.Fatal("AllowStale() = false, want true")
	}
}
