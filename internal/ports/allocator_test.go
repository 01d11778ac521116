package ports

import (
	"errors"
	"sync"
	"testing"
)

func TestAllocatePreferred(t *testing.T) {
	a := NewAllocator(3000, 3010)

	port, err := a.Allocate(3005)
	if err != nil {
		t.Fatalf("Allocate(3005) failed: %v", err)
	}
	if port != 3005 {
		t.Errorf("expected port 3005, got %d", port)
	}

	_, err = a.Allocate(3005)
	var conflict ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Port != 3005 {
		t.Errorf("expected conflict on 3005, got %d", conflict.Port)
	}
}

func TestAllocateScansAscending(t *testing.T) {
	a := NewAllocator(3000, 3002)

	for _, want := range []int{3000, 3001, 3002} {
		port, err := a.Allocate(0)
		if err != nil {
			t.Fatalf("Allocate() failed: %v", err)
		}
		if port != want {
			t.Errorf("expected port %d, got %d", want, port)
		}
	}

	_, err := a.Allocate(0)
	var exhausted ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
}

func TestAllocateBoundaries(t *testing.T) {
	a := NewAllocator(3000, 3001)

	if _, err := a.Allocate(3000); err != nil {
		t.Fatalf("Allocate(min) failed: %v", err)
	}
	if _, err := a.Allocate(3001); err != nil {
		t.Fatalf("Allocate(max) failed: %v", err)
	}
	if _, err := a.Allocate(0); err == nil {
		t.Fatal("expected exhaustion after reserving the full range")
	}
}

func TestReleaseRoundTrip(t *testing.T) {
	a := NewAllocator(3000, 3010)

	if _, err := a.Allocate(3003); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	a.Release(3003)

	port, err := a.Allocate(3003)
	if err != nil {
		t.Fatalf("re-Allocate failed: %v", err)
	}
	if port != 3003 {
		t.Errorf("expected 3003 after release, got %d", port)
	}
}

func TestReleaseUnreservedIsNoop(t *testing.T) {
	a := NewAllocator(3000, 3010)
	a.Release(3007) // must not panic or corrupt state

	if !a.IsAvailable(3007) {
		t.Error("3007 should still be available")
	}
}

func TestIsAvailable(t *testing.T) {
	a := NewAllocator(3000, 3010)
	if !a.IsAvailable(3000) {
		t.Error("fresh allocator should have 3000 available")
	}
	a.Allocate(3000)
	if a.IsAvailable(3000) {
		t.Error("3000 should be reserved")
	}
}

func TestConcurrentAllocateIsExclusive(t *testing.T) {
	a := NewAllocator(3000, 3099)

	var wg sync.WaitGroup
	seen := make(chan int, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			port, err := a.Allocate(0)
			if err != nil {
				t.Errorf("Allocate failed: %v", err)
				return
			}
			seen <- port
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int]bool)
	for port := range seen {
		if unique[port] {
			t.Fatalf("port %d allocated twice", port)
		}
		unique[port] = true
	}
	if len(unique) != 100 {
		t.Errorf("expected 100 unique ports, got %d", len(unique))
	}
}
