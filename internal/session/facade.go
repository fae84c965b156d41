package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/kkeutmal-client/internal/dictsvc"
	"github.com/park285/kkeutmal-client/internal/tabsync"
	"github.com/park285/kkeutmal-client/internal/wsconn"
	"github.com/park285/kkeutmal-client/pkg/gamedto"
)

// Facade-level subscription tags, in addition to the wire event tags
// which pass through unchanged.
const (
	TagSnapshotUpdated  = "snapshot_updated"
	TagConnectionState  = "connection_state"
	TagDuplicateSession = "duplicate_session"
	TagSessionYielded   = "session_yielded"
)

// ErrYielded is returned once this tab has given up its session to
// another tab; the facade is terminal and must be rebuilt to rejoin.
var ErrYielded = errors.New("session: yielded to another tab")

// DuplicateSession is the blocking decision point raised when another
// tab holds the same (user, room) session. Resolve with TakeOver or
// Yield; the facade never auto-resolves.
type DuplicateSession struct {
	UserID     string
	RoomID     string
	OtherTabID string
}

// Handler receives a facade event tag and the snapshot after the fold.
type Handler func(tag string, snap Snapshot)

type handlerEntry struct {
	id int
	fn Handler
}

type Config struct {
	UserID   string
	Nickname string
	TurnTick time.Duration
}

// Facade is the single integration point the presentation layer
// consumes: it owns the connection manager, folds every inbound event
// through the reducer on one queue, and exposes snapshots.
type Facade struct {
	conn   *wsconn.Manager
	coord  *tabsync.Coordinator
	dict   *dictsvc.Client
	cfg    Config
	logger *zap.Logger

	mu         sync.RWMutex
	snap       Snapshot
	connStatus wsconn.Status
	dupPending *DuplicateSession
	yielded    bool

	subM   sync.Mutex
	subs   map[string][]handlerEntry
	nextID int

	queue    chan func()
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

func New(conn *wsconn.Manager, coord *tabsync.Coordinator, dict *dictsvc.Client, cfg Config, logger *zap.Logger) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TurnTick <= 0 {
		cfg.TurnTick = 100 * time.Millisecond
	}
	f := &Facade{
		conn:   conn,
		coord:  coord,
		dict:   dict,
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string][]handlerEntry),
		queue:  make(chan func(), 256),
		stopCh: make(chan struct{}),
	}
	conn.OnMessage(f.enqueueInbound)
	conn.OnStateChange(f.enqueueStateChange)
	if coord != nil {
		coord.OnDuplicate(f.enqueueDuplicate)
		coord.OnTakeover(f.enqueueTakeover)
	}
	return f
}

// Join announces the room to other tabs, opens the transport and starts
// the event loop. Inbound events are applied strictly in arrival order.
func (f *Facade) Join(ctx context.Context, roomID, token string) error {
	f.mu.Lock()
	if f.yielded {
		f.mu.Unlock()
		return ErrYielded
	}
	f.snap = NewSnapshot(roomID)
	alreadyStarted := f.started
	f.started = true
	f.mu.Unlock()

	if f.coord != nil {
		if err := f.coord.SetCurrentUser(ctx, f.cfg.UserID); err != nil {
			f.logger.Warn("tabsync_announce_failed", zap.Error(err))
		}
		if err := f.coord.NotifyRoomJoined(ctx, roomID); err != nil {
			f.logger.Warn("tabsync_announce_failed", zap.Error(err))
		}
	}

	if !alreadyStarted {
		f.wg.Add(2)
		go f.loop()
		go f.countdown()
	}
	return f.conn.Connect(ctx, roomID, token)
}

func (f *Facade) loop() {
	defer f.wg.Done()
	for {
		select {
		case <-f.stopCh:
			return
		case task := <-f.queue:
			task()
		}
	}
}

// countdown drives the advisory local decay of the turn timer and the
// expiry of transient advisories. The server value always wins.
func (f *Facade) countdown() {
	defer f.wg.Done()
	t := time.NewTicker(f.cfg.TurnTick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-f.stopCh:
			return
		case now := <-t.C:
			elapsed := now.Sub(last)
			last = now
			task := func() {
				f.mu.Lock()
				open := f.connStatus.State == wsconn.StateOpen
				before := f.snap
				if open {
					f.snap = Tick(f.snap, elapsed, now)
				} else if f.snap.Advisory != nil {
					f.snap = Tick(f.snap, 0, now)
				}
				changed := !before.equalShallow(f.snap)
				snap := f.snap.clone()
				f.mu.Unlock()
				if changed {
					f.fire(TagSnapshotUpdated, snap)
				}
			}
			select {
			case f.queue <- task:
			default:
				// ticks are advisory; drop rather than stall the queue
			}
		}
	}
}

func (f *Facade) enqueueInbound(ev *gamedto.Inbound) {
	if ev == nil {
		return
	}
	select {
	case <-f.stopCh:
		return
	case f.queue <- func() { f.applyEvent(ev) }:
	}
}

func (f *Facade) applyEvent(ev *gamedto.Inbound) {
	now := time.Now()
	f.mu.Lock()
	next, anomaly := Reduce(f.snap, *ev, now)
	f.snap = next
	snap := f.snap.clone()
	f.mu.Unlock()

	if anomaly != nil {
		f.logger.Warn("reduce_anomaly",
			zap.String("event", anomaly.EventType), zap.String("reason", anomaly.Reason))
		return
	}

	if ev.Type == gamedto.EventWordSubmitted {
		f.enrichLatest(snap)
	}

	f.fire(ev.Type, snap)
	f.fire(TagSnapshotUpdated, snap)
}

// enrichLatest fetches definition/difficulty for the newest chain entry
// in the background. A failed fetch never blocks chain progression.
func (f *Facade) enrichLatest(snap Snapshot) {
	if f.dict == nil || len(snap.WordChain) == 0 {
		return
	}
	word := snap.WordChain[len(snap.WordChain)-1].Word
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		info, err := f.dict.Lookup(ctx, word)
		if err != nil {
			f.logger.Debug("dict_lookup_failed", zap.String("word", word), zap.Error(err))
			return
		}
		task := func() {
			f.mu.Lock()
			f.snap = Enrich(f.snap, info.Word, info.Definition, info.Difficulty)
			snap := f.snap.clone()
			f.mu.Unlock()
			f.fire(TagSnapshotUpdated, snap)
		}
		select {
		case <-f.stopCh:
		case f.queue <- task:
		}
	}()
}

func (f *Facade) enqueueStateChange(st wsconn.Status) {
	select {
	case <-f.stopCh:
		return
	case f.queue <- func() {
		f.mu.Lock()
		f.connStatus = st
		snap := f.snap.clone()
		f.mu.Unlock()
		f.fire(TagConnectionState, snap)
	}:
	}
}

func (f *Facade) enqueueDuplicate(userID, roomID, otherTabID string) {
	select {
	case <-f.stopCh:
		return
	case f.queue <- func() {
		f.mu.Lock()
		f.dupPending = &DuplicateSession{UserID: userID, RoomID: roomID, OtherTabID: otherTabID}
		snap := f.snap.clone()
		f.mu.Unlock()
		f.fire(TagDuplicateSession, snap)
	}:
	}
}

func (f *Facade) enqueueTakeover(userID, roomID, otherTabID string) {
	select {
	case <-f.stopCh:
		return
	case f.queue <- func() {
		f.logger.Warn("session_yield", zap.String("room", roomID), zap.String("other_tab", otherTabID))
		f.mu.Lock()
		f.yielded = true
		snap := f.snap.clone()
		f.mu.Unlock()
		// the other tab took over; drop our transport cleanly
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.conn.Disconnect(ctx)
		f.fire(TagSessionYielded, snap)
	}:
	}
}

// Snapshot returns a copy of the current room state.
func (f *Facade) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap.clone()
}

func (f *Facade) ConnectionStatus() wsconn.Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connStatus
}

// DuplicatePending returns the unresolved duplicate-session condition,
// if any.
func (f *Facade) DuplicatePending() *DuplicateSession {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.dupPending == nil {
		return nil
	}
	d := *f.dupPending
	return &d
}

func (f *Facade) Yielded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.yielded
}

// TakeOver resolves a duplicate-session condition in favor of this tab.
func (f *Facade) TakeOver(ctx context.Context) error {
	f.mu.Lock()
	f.dupPending = nil
	f.mu.Unlock()
	if f.coord == nil {
		return nil
	}
	return f.coord.RequestTakeover(ctx)
}

// Yield resolves a duplicate-session condition by giving up this tab's
// session. Terminal for this facade.
func (f *Facade) Yield(ctx context.Context) error {
	f.mu.Lock()
	f.dupPending = nil
	f.yielded = true
	f.mu.Unlock()
	return f.Close(ctx)
}

// On registers a handler for a facade or wire event tag and returns a
// subscription id for Off.
func (f *Facade) On(tag string, h Handler) int {
	f.subM.Lock()
	defer f.subM.Unlock()
	f.nextID++
	f.subs[tag] = append(f.subs[tag], handlerEntry{id: f.nextID, fn: h})
	return f.nextID
}

func (f *Facade) Off(tag string, id int) {
	f.subM.Lock()
	defer f.subM.Unlock()
	entries := f.subs[tag]
	for i, e := range entries {
		if e.id == id {
			f.subs[tag] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (f *Facade) fire(tag string, snap Snapshot) {
	f.subM.Lock()
	entries := make([]handlerEntry, len(f.subs[tag]))
	copy(entries, f.subs[tag])
	f.subM.Unlock()
	for _, e := range entries {
		if e.fn != nil {
			e.fn(tag, snap)
		}
	}
}

// SubmitWord frames and sends the word with a correlation id. The word
// should have passed ValidateWord first; the server verdict is still
// authoritative.
func (f *Facade) SubmitWord(word string) (string, error) {
	return f.conn.Emit(gamedto.MsgSubmitWord, gamedto.SubmitWordRequest{Word: word}, true)
}

func (f *Facade) ToggleReady(ready bool) error {
	_, err := f.conn.Emit(gamedto.MsgReadyToggle, gamedto.ReadyToggleRequest{IsReady: ready}, false)
	return err
}

func (f *Facade) SendChat(message string) error {
	_, err := f.conn.Emit(gamedto.MsgChat, gamedto.ChatRequest{Message: message}, false)
	return err
}

func (f *Facade) StartGame() error {
	_, err := f.conn.Emit(gamedto.MsgStartGame, struct{}{}, true)
	return err
}

// Leave notifies the server and tears the session down.
func (f *Facade) Leave(ctx context.Context) error {
	if _, err := f.conn.Emit(gamedto.MsgLeaveRoom, struct{}{}, false); err != nil && err != wsconn.ErrNotConnected {
		f.logger.Warn("leave_emit_failed", zap.Error(err))
	}
	return f.Close(ctx)
}

// Close is the atomic teardown: pending reconnects cancelled, transport
// closed with a clean code, countdown and event loop stopped. Idempotent.
func (f *Facade) Close(ctx context.Context) error {
	err := f.conn.Disconnect(ctx)
	f.stopOnce.Do(func() { close(f.stopCh) })
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	return err
}
