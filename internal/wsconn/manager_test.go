package wsconn

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/kkeutmal-client/pkg/gamedto"
)

func fastOptions() Options {
	return Options{
		MaxAttempts: 3,
		BackoffBase: 5 * time.Millisecond,
		BackoffCap:  20 * time.Millisecond,
		Heartbeat:   time.Hour,
		DialTimeout: time.Second,
	}
}

func newTestServer(t *testing.T, handle func(c *websocket.Conn)) (string, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		handle(c)
	}))
	wsURL := strings.Replace(srv.URL, "http", "ws", 1)
	return wsURL, srv.Close
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestConnectReceiveDisconnect(t *testing.T) {
	events := make(chan *gamedto.Inbound, 8)
	wsURL, cleanup := newTestServer(t, func(c *websocket.Conn) {
		ctx := context.Background()
		_ = wsjson.Write(ctx, c, gamedto.Inbound{Type: gamedto.EventRoomJoined})
		// hold the connection open until the client hangs up
		_, _, _ = c.Read(ctx)
	})
	defer cleanup()

	m := NewManager(wsURL, fastOptions(), nil)
	m.OnMessage(func(ev *gamedto.Inbound) { events <- ev })

	if err := m.Connect(context.Background(), "room-1", "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if st := m.Status(); st.State != StateOpen || st.Attempts != 0 {
		t.Fatalf("expected open with zero attempts, got %+v", st)
	}

	ev := <-events
	if ev.Type != gamedto.EventConnected {
		t.Fatalf("expected synthetic connected event first, got %q", ev.Type)
	}
	ev = <-events
	if ev.Type != gamedto.EventRoomJoined {
		t.Fatalf("expected room_joined, got %q", ev.Type)
	}

	if err := m.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	st := m.Status()
	if st.State != StateClosed || st.Reconnecting || st.Exhausted {
		t.Fatalf("clean disconnect must not schedule reconnect: %+v", st)
	}
	// idempotent
	if err := m.Disconnect(context.Background()); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
}

func TestConnectIsNoopWhenOpen(t *testing.T) {
	wsURL, cleanup := newTestServer(t, func(c *websocket.Conn) {
		_, _, _ = c.Read(context.Background())
	})
	defer cleanup()

	m := NewManager(wsURL, fastOptions(), nil)
	defer m.Disconnect(context.Background())
	if err := m.Connect(context.Background(), "room-1", "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Connect(context.Background(), "room-1", "tok"); err != nil {
		t.Fatalf("second Connect should be a no-op: %v", err)
	}
}

func TestAuthRejectionIsTerminal(t *testing.T) {
	wsURL, cleanup := newTestServer(t, func(c *websocket.Conn) {
		_ = c.Close(statusAuthRejected, "token expired")
	})
	defer cleanup()

	m := NewManager(wsURL, fastOptions(), nil)
	defer m.Disconnect(context.Background())
	if err := m.Connect(context.Background(), "room-1", "bad"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, time.Second, func() bool { return m.Status().AuthRejected })
	st := m.Status()
	if st.Reconnecting || st.Exhausted {
		t.Fatalf("auth rejection must not trigger retries: %+v", st)
	}
}

func TestReconnectExhausted(t *testing.T) {
	// a listener that is already closed yields connection-refused dials
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	m := NewManager("ws://"+addr, fastOptions(), nil)
	defer m.Disconnect(context.Background())
	if err := m.Connect(context.Background(), "room-1", "tok"); err == nil {
		t.Fatalf("expected dial error")
	}
	waitFor(t, 2*time.Second, func() bool { return m.Status().Exhausted })
	st := m.Status()
	if st.Reconnecting {
		t.Fatalf("exhausted state must not keep reconnecting: %+v", st)
	}
	if st.Attempts != fastOptions().MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", fastOptions().MaxAttempts, st.Attempts)
	}
}

func TestManualConnectDuringBackoffKeepsSingleTransport(t *testing.T) {
	var dials, active, maxActive atomic.Int32
	wsURL, cleanup := newTestServer(t, func(c *websocket.Conn) {
		n := dials.Add(1)
		cur := active.Add(1)
		defer active.Add(-1)
		for {
			prev := maxActive.Load()
			if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
				break
			}
		}
		if n == 1 {
			_ = c.Close(websocket.StatusCode(4000), "server restart")
			return
		}
		_, _, _ = c.Read(context.Background())
	})
	defer cleanup()

	opts := fastOptions()
	opts.BackoffBase = 200 * time.Millisecond
	opts.BackoffCap = 200 * time.Millisecond
	m := NewManager(wsURL, opts, nil)

	if err := m.Connect(context.Background(), "room-1", "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, time.Second, func() bool { return m.Status().Reconnecting })

	// manual reconnect while the automatic retry is waiting out its backoff
	if err := m.Connect(context.Background(), "room-1", "tok"); err != nil {
		t.Fatalf("manual Connect: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		st := m.Status()
		return st.State == StateOpen && !st.Reconnecting
	})

	// let the pending retry fire; it must yield to the open transport
	time.Sleep(400 * time.Millisecond)
	if got := dials.Load(); got != 2 {
		t.Fatalf("expected 2 dials, got %d", got)
	}
	if got := maxActive.Load(); got != 1 {
		t.Fatalf("expected at most one live transport, saw %d", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect must not hang on an orphaned listener: %v", err)
	}
}

func TestAuthRejectionClearsOnReconnect(t *testing.T) {
	var dials atomic.Int32
	wsURL, cleanup := newTestServer(t, func(c *websocket.Conn) {
		if dials.Add(1) == 1 {
			_ = c.Close(statusAuthRejected, "token expired")
			return
		}
		_, _, _ = c.Read(context.Background())
	})
	defer cleanup()

	m := NewManager(wsURL, fastOptions(), nil)
	defer m.Disconnect(context.Background())
	if err := m.Connect(context.Background(), "room-1", "stale"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, time.Second, func() bool { return m.Status().AuthRejected })

	if err := m.Connect(context.Background(), "room-1", "fresh"); err != nil {
		t.Fatalf("Connect with fresh token: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		st := m.Status()
		return st.State == StateOpen && !st.AuthRejected
	})
	if st := m.Status(); st.LastError != "" {
		t.Fatalf("expected stale error cleared, got %q", st.LastError)
	}
}

func TestEmitNotConnectedSentinel(t *testing.T) {
	m := NewManager("ws://127.0.0.1:1", fastOptions(), nil)
	if _, err := m.Emit(gamedto.MsgSubmitWord, gamedto.SubmitWordRequest{Word: "사과"}, true); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected sentinel, got %v", err)
	}
}

func TestEmitRequestID(t *testing.T) {
	wsURL, cleanup := newTestServer(t, func(c *websocket.Conn) {
		_, _, _ = c.Read(context.Background())
	})
	defer cleanup()

	m := NewManager(wsURL, fastOptions(), nil)
	defer m.Disconnect(context.Background())
	if err := m.Connect(context.Background(), "room-1", "tok"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	id, err := m.Emit(gamedto.MsgSubmitWord, gamedto.SubmitWordRequest{Word: "사과"}, true)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if id == "" {
		t.Fatalf("expected correlation id")
	}
	id, err = m.Emit(gamedto.MsgChat, gamedto.ChatRequest{Message: "안녕"}, false)
	if err != nil || id != "" {
		t.Fatalf("expected empty id without request, got id=%q err=%v", id, err)
	}
}

func TestBackoffDuration(t *testing.T) {
	base := time.Second
	cap := 10 * time.Second
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for attempt, expected := range want {
		if got := backoffDuration(attempt, base, cap); got != expected {
			t.Fatalf("attempt %d: expected %v, got %v", attempt, expected, got)
		}
	}
}

func TestBuildURL(t *testing.T) {
	got := buildURL("ws://game.example.com", "room 1", "a/b=c")
	want := "ws://game.example.com/ws/rooms/room%201?token=a%2Fb%3Dc"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got := buildURL("ws://h", "r", ""); got != "ws://h/ws/rooms/r" {
		t.Fatalf("token-less URL wrong: %q", got)
	}
}
