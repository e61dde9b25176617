package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTriggerCoalesces(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	d := New(30*time.Millisecond, func() {
		calls.Add(1)
		done <- struct{}{}
	})

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("debounced call never fired")
	}
	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if d.Pending() {
		t.Fatalf("no call should be pending after firing")
	}
}

func TestStopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Fatalf("calls after stop = %d", got)
	}
	if d.Flush() {
		t.Fatalf("flush after stop should not run")
	}
}

func TestFlushRunsImmediately(t *testing.T) {
	var calls atomic.Int32
	d := New(time.Hour, func() { calls.Add(1) })

	if d.Flush() {
		t.Fatalf("flush without a trigger should be a no-op")
	}
	d.Trigger()
	if !d.Flush() {
		t.Fatalf("flush should run the pending call")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	d.Stop()
}
