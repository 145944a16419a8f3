package debounce

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sink struct {
	mu   sync.Mutex
	got  []string
	done chan struct{}
}

func newSink() *sink {
	return &sink{done: make(chan struct{}, 16)}
}

func (s *sink) deliver(v string) {
	s.mu.Lock()
	s.got = append(s.got, v)
	s.mu.Unlock()
	s.done <- struct{}{}
}

func (s *sink) values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func (s *sink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}

func TestSetCoalescesToLastValue(t *testing.T) {
	s := newSink()
	d := New(30*time.Millisecond, s.deliver)
	defer d.Stop()

	d.Set("a")
	d.Set("an")
	d.Set("ana")
	s.wait(t)

	time.Sleep(60 * time.Millisecond)
	got := s.values()
	if len(got) != 1 || got[0] != "ana" {
		t.Fatalf("expected single delivery of ana, got %v", got)
	}
	if d.Pending() {
		t.Fatalf("expected nothing pending after delivery")
	}
}

func TestTriggerDeliversImmediately(t *testing.T) {
	s := newSink()
	d := New(time.Hour, s.deliver)
	defer d.Stop()

	d.Set("bob")
	d.Trigger()

	got := s.values()
	if len(got) != 1 || got[0] != "bob" {
		t.Fatalf("expected immediate delivery of bob, got %v", got)
	}
	if d.Pending() {
		t.Fatalf("trigger must cancel the scheduled delivery")
	}
}

func TestStopCancelsPendingDelivery(t *testing.T) {
	s := newSink()
	d := New(20*time.Millisecond, s.deliver)
	d.Set("x")
	d.Stop()
	d.Set("y")

	time.Sleep(60 * time.Millisecond)
	if got := s.values(); len(got) != 0 {
		t.Fatalf("expected no deliveries after stop, got %v", got)
	}
	if d.Value() != "x" {
		t.Fatalf("set after stop must be ignored, value=%q", d.Value())
	}
}

func TestResetCancelsWithoutStopping(t *testing.T) {
	s := newSink()
	d := New(20*time.Millisecond, s.deliver)
	d.Set("x")
	d.Reset("")
	if d.Pending() {
		t.Fatal("reset must cancel the pending delivery")
	}

	time.Sleep(60 * time.Millisecond)
	if got := s.values(); len(got) != 0 {
		t.Fatalf("expected no deliveries after reset, got %v", got)
	}

	d.Set("y")
	s.wait(t)
	if got := s.values(); got[0] != "y" {
		t.Fatalf("expected y after reset, got %v", got)
	}
}
