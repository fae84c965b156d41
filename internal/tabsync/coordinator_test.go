package tabsync

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBus(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return rdb, func() { _ = rdb.Close(); mr.Close() }
}

func startCoordinator(t *testing.T, rdb *redis.Client) *Coordinator {
	t.Helper()
	c := NewCoordinator(rdb, nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDuplicateSessionDetected(t *testing.T) {
	rdb, cleanup := newTestBus(t)
	defer cleanup()
	ctx := context.Background()

	a := startCoordinator(t, rdb)
	b := startCoordinator(t, rdb)

	got := make(chan string, 1)
	a.OnDuplicate(func(userID, roomID, otherTabID string) { got <- otherTabID })

	if err := a.SetCurrentUser(ctx, "u1"); err != nil {
		t.Fatalf("SetCurrentUser: %v", err)
	}
	if err := a.NotifyRoomJoined(ctx, "room-1"); err != nil {
		t.Fatalf("NotifyRoomJoined: %v", err)
	}
	if err := b.SetCurrentUser(ctx, "u1"); err != nil {
		t.Fatalf("SetCurrentUser: %v", err)
	}
	if err := b.NotifyRoomJoined(ctx, "room-1"); err != nil {
		t.Fatalf("NotifyRoomJoined: %v", err)
	}

	select {
	case otherTab := <-got:
		if otherTab != b.TabID() {
			t.Fatalf("expected duplicate from tab %s, got %s", b.TabID(), otherTab)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("duplicate session not detected")
	}
}

func TestOwnBroadcastIgnored(t *testing.T) {
	rdb, cleanup := newTestBus(t)
	defer cleanup()
	ctx := context.Background()

	a := startCoordinator(t, rdb)
	fired := make(chan struct{}, 1)
	a.OnDuplicate(func(string, string, string) { fired <- struct{}{} })

	if err := a.SetCurrentUser(ctx, "u1"); err != nil {
		t.Fatalf("SetCurrentUser: %v", err)
	}
	if err := a.NotifyRoomJoined(ctx, "room-1"); err != nil {
		t.Fatalf("NotifyRoomJoined: %v", err)
	}

	select {
	case <-fired:
		t.Fatalf("a tab must ignore its own messages")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDifferentRoomNotDuplicate(t *testing.T) {
	rdb, cleanup := newTestBus(t)
	defer cleanup()
	ctx := context.Background()

	a := startCoordinator(t, rdb)
	b := startCoordinator(t, rdb)

	fired := make(chan struct{}, 1)
	a.OnDuplicate(func(string, string, string) { fired <- struct{}{} })

	_ = a.SetCurrentUser(ctx, "u1")
	_ = a.NotifyRoomJoined(ctx, "room-1")
	_ = b.SetCurrentUser(ctx, "u1")
	_ = b.NotifyRoomJoined(ctx, "room-2")

	select {
	case <-fired:
		t.Fatalf("different room must not raise duplicate")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestTakeoverSignal(t *testing.T) {
	rdb, cleanup := newTestBus(t)
	defer cleanup()
	ctx := context.Background()

	a := startCoordinator(t, rdb)
	b := startCoordinator(t, rdb)

	yielded := make(chan string, 1)
	a.OnTakeover(func(userID, roomID, otherTabID string) { yielded <- otherTabID })

	_ = a.SetCurrentUser(ctx, "u1")
	_ = a.NotifyRoomJoined(ctx, "room-1")
	_ = b.SetCurrentUser(ctx, "u1")
	b.mu.Lock()
	b.roomID = "room-1" // take over without re-announcing
	b.mu.Unlock()
	if err := b.RequestTakeover(ctx); err != nil {
		t.Fatalf("RequestTakeover: %v", err)
	}

	select {
	case otherTab := <-yielded:
		if otherTab != b.TabID() {
			t.Fatalf("expected takeover from tab %s, got %s", b.TabID(), otherTab)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("takeover not received")
	}
}
