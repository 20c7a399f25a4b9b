package sse

import (
	"sync"
	"testing"
	"time"
)

// fakeConn records every frame it receives in arrival order. writeDelay
// lets a test simulate a slow consumer for the backpressure-drop case.
type fakeConn struct {
	mu         sync.Mutex
	events     []string
	writeDelay time.Duration
	blocked    chan struct{} // closed once the first Write call has started, for tests that need to observe blocking
}

func (f *fakeConn) Write(fr Frame) error {
	if f.blocked != nil {
		select {
		case <-f.blocked:
		default:
			close(f.blocked)
		}
	}
	if f.writeDelay > 0 {
		time.Sleep(f.writeDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fr.Event)
	return nil
}

func (f *fakeConn) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestSendEventDeliversInFIFOOrderPerUser(t *testing.T) {
	h := NewHub()
	conn := &fakeConn{}
	handle := h.Register("user-1", conn, "tenant-a")
	defer h.Unregister(handle)

	for i := 0; i < 5; i++ {
		if err := h.SendEvent("user-1", "progress", map[string]any{"n": i}, ""); err != nil {
			t.Fatalf("send event %d failed: %v", i, err)
		}
	}

	waitFor(t, func() bool { return len(conn.received()) >= 6 }) // +1 for the connected frame

	got := conn.received()
	if got[0] != "connected" {
		t.Errorf("expected first frame to be connected, got %s", got[0])
	}
	for i := 1; i < 6; i++ {
		if got[i] != "progress" {
			t.Errorf("expected frame %d to be progress, got %s", i, got[i])
		}
	}
}

func TestSendEventOnlyReachesRegisteredUser(t *testing.T) {
	h := NewHub()
	connA := &fakeConn{}
	connB := &fakeConn{}
	handleA := h.Register("user-a", connA, "tenant-1")
	handleB := h.Register("user-b", connB, "tenant-1")
	defer h.Unregister(handleA)
	defer h.Unregister(handleB)

	if err := h.SendEvent("user-a", "detection_complete", map[string]any{"ok": true}, ""); err != nil {
		t.Fatalf("send event failed: %v", err)
	}

	waitFor(t, func() bool { return len(connA.received()) >= 2 })
	time.Sleep(20 * time.Millisecond)

	for _, ev := range connB.received() {
		if ev == "detection_complete" {
			t.Fatal("expected detection_complete to never reach user-b")
		}
	}
}

func TestBroadcastTenantReachesAllUsersInTenantOnly(t *testing.T) {
	h := NewHub()
	inTenant := &fakeConn{}
	otherTenant := &fakeConn{}
	h1 := h.Register("u1", inTenant, "tenant-x")
	h2 := h.Register("u2", otherTenant, "tenant-y")
	defer h.Unregister(h1)
	defer h.Unregister(h2)

	if err := h.BroadcastTenant("tenant-x", "announcement", map[string]any{"msg": "hi"}); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	waitFor(t, func() bool {
		for _, ev := range inTenant.received() {
			if ev == "announcement" {
				return true
			}
		}
		return false
	})

	for _, ev := range otherTenant.received() {
		if ev == "announcement" {
			t.Fatal("expected announcement to stay within tenant-x")
		}
	}
}

func TestConnectionCountReflectsRegisterAndUnregister(t *testing.T) {
	h := NewHub()
	conn := &fakeConn{}
	handle := h.Register("user-1", conn, "")

	if got := h.ConnectionCount("user-1"); got != 1 {
		t.Errorf("expected 1 connection after register, got %d", got)
	}

	h.Unregister(handle)
	if got := h.ConnectionCount("user-1"); got != 0 {
		t.Errorf("expected 0 connections after unregister, got %d", got)
	}
}

// slowConn blocks every Write until release is closed, simulating a
// consumer that never drains — the case enqueue's full-channel branch
// exists for.
type slowConn struct {
	release chan struct{}
}

func (s *slowConn) Write(Frame) error {
	<-s.release
	return nil
}

func TestSlowConsumerIsDropped(t *testing.T) {
	h := NewHub()
	conn := &slowConn{release: make(chan struct{})}
	defer close(conn.release)

	handle := h.Register("user-1", conn, "")

	// The pump goroutine picks up the connected frame and blocks in
	// Write (release is closed only by the deferred cleanup above), so
	// the write either exceeds sendTimeout or rc.frames fills past
	// frameBufferSize from the SendEvent calls below — either way the
	// Hub unregisters the connection rather than stalling or growing
	// its buffer unbounded.
	for i := 0; i < frameBufferSize+2; i++ {
		_ = h.SendEvent("user-1", "progress", map[string]any{"n": i}, "")
	}

	waitFor(t, func() bool { return h.ConnectionCount("user-1") == 0 })
	_ = handle
}
