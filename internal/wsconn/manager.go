package wsconn

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/kkeutmal-client/pkg/gamedto"
)

// statusAuthRejected is the app-level close code the server uses for an
// expired or invalid token. Terminal: never retried.
const statusAuthRejected websocket.StatusCode = 4001

type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Heartbeat   time.Duration
	DialTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts: 5,
		BackoffBase: time.Second,
		BackoffCap:  10 * time.Second,
		Heartbeat:   30 * time.Second,
		DialTimeout: 10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = d.BackoffBase
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = d.BackoffCap
	}
	if o.Heartbeat <= 0 {
		o.Heartbeat = d.Heartbeat
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	return o
}

type msgCallbackEntry struct {
	id       int
	callback MessageFunc
}

type stateCallbackEntry struct {
	id       int
	callback StateFunc
}

// Manager owns at most one live transport handle for one room. A new dial
// never starts before the previous handle is closed or nil.
type Manager struct {
	baseURL string
	opts    Options
	logger  *zap.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	state        State
	reconnecting bool
	attempts     int
	exhausted    bool
	authRejected bool
	lastErr      string
	roomID       string
	token        string

	writeMu sync.Mutex

	cbM      sync.RWMutex
	msgCbs   []msgCallbackEntry
	stateCbs []stateCallbackEntry
	nextCbID int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewManager(baseURL string, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts.withDefaults(),
		logger:  logger,
		state:   StateIdle,
		stopCh:  make(chan struct{}),
	}
}

// Connect opens the transport for roomID. No-op when already open or a
// dial is in flight. The token rides as a query credential because the
// transport offers no custom headers at connect time.
func (m *Manager) Connect(ctx context.Context, roomID, token string) error {
	m.mu.Lock()
	if m.state == StateOpen || m.state == StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.roomID = roomID
	m.token = token
	m.state = StateConnecting
	// Explicit Connect is the manual action that clears an exhausted
	// reconnect budget or a stale credential rejection.
	m.attempts = 0
	m.exhausted = false
	m.authRejected = false
	m.lastErr = ""
	m.mu.Unlock()

	if m.rootCtx == nil {
		m.rootCtx, m.rootCancel = context.WithCancel(context.Background())
	}
	m.notifyState()

	if err := m.dial(ctx); err != nil {
		m.logger.Warn("ws_dial_failed", zap.String("room", roomID), zap.Error(err))
		m.scheduleReconnect()
		return err
	}
	return nil
}

func (m *Manager) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	defer cancel()

	m.mu.Lock()
	target := buildURL(m.baseURL, m.roomID, m.token)
	m.mu.Unlock()

	conn, _, err := websocket.Dial(dialCtx, target, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		m.mu.Lock()
		m.state = StateClosed
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.notifyState()
		return err
	}

	m.mu.Lock()
	if m.conn != nil {
		// a superseded handle must not outlive the one replacing it
		_ = m.conn.Close(websocket.StatusGoingAway, "superseded")
	}
	m.conn = conn
	m.state = StateOpen
	m.attempts = 0
	m.reconnecting = false
	m.exhausted = false
	m.authRejected = false
	m.lastErr = ""
	m.mu.Unlock()
	m.logger.Info("ws_open", zap.String("room", m.roomID))
	m.notifyState()

	connDone := make(chan struct{})
	m.wg.Add(2)
	go m.listen(conn, connDone)
	go m.heartbeat(connDone)

	m.dispatch(&gamedto.Inbound{Type: gamedto.EventConnected})
	return nil
}

func (m *Manager) listen(conn *websocket.Conn, connDone chan struct{}) {
	defer m.wg.Done()
	defer close(connDone)
	for {
		var ev gamedto.Inbound
		if err := wsjson.Read(m.rootCtx, conn, &ev); err != nil {
			if m.isStopping() {
				return
			}
			m.handleClose(conn, err)
			return
		}
		m.dispatch(&ev)
	}
}

// handleClose classifies an abnormal read error. A normal closure or an
// auth rejection is terminal; everything else schedules a reconnect.
func (m *Manager) handleClose(conn *websocket.Conn, err error) {
	code := websocket.CloseStatus(err)

	m.mu.Lock()
	if m.conn != conn {
		// a superseded handle failing must not touch the current transport
		m.mu.Unlock()
		return
	}
	_ = m.conn.Close(websocket.StatusGoingAway, "reconnect")
	m.conn = nil
	m.state = StateClosed
	m.lastErr = err.Error()
	switch code {
	case websocket.StatusNormalClosure:
		m.mu.Unlock()
		m.logger.Info("ws_closed_clean", zap.String("room", m.roomID))
		m.notifyState()
		return
	case statusAuthRejected:
		m.authRejected = true
		m.mu.Unlock()
		m.logger.Warn("ws_auth_rejected", zap.String("room", m.roomID))
		m.notifyState()
		return
	}
	m.mu.Unlock()
	m.logger.Warn("ws_closed", zap.String("room", m.roomID), zap.Int("code", int(code)), zap.Error(err))
	m.notifyState()
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.reconnecting || m.isStopping() {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	m.mu.Unlock()
	m.notifyState()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			m.mu.Lock()
			attempt := m.attempts
			if attempt >= m.opts.MaxAttempts {
				m.reconnecting = false
				m.exhausted = true
				m.lastErr = ErrRetriesExhausted.Error()
				m.mu.Unlock()
				m.logger.Error("ws_reconnect_exhausted", zap.String("room", m.roomID), zap.Int("attempts", attempt))
				m.notifyState()
				return
			}
			m.attempts++
			m.mu.Unlock()
			m.notifyState()

			select {
			case <-m.stopCh:
				return
			case <-time.After(backoffDuration(attempt, m.opts.BackoffBase, m.opts.BackoffCap)):
			}
			if m.isStopping() {
				return
			}
			m.mu.Lock()
			if m.state == StateOpen || m.state == StateConnecting {
				// a manual Connect raced the backoff and owns the transport
				m.reconnecting = false
				m.mu.Unlock()
				m.notifyState()
				return
			}
			m.state = StateConnecting
			m.mu.Unlock()
			if err := m.dial(m.rootCtx); err == nil {
				return
			}
		}
	}()
}

// Emit frames and sends a message, returning a correlation id when
// requested. Returns ErrNotConnected as a sentinel when the transport is
// not open; callers treat that as a skipped send.
func (m *Manager) Emit(msgType string, data any, withRequestID bool) (string, error) {
	m.mu.Lock()
	conn := m.conn
	open := m.state == StateOpen
	m.mu.Unlock()
	if !open || conn == nil {
		return "", ErrNotConnected
	}

	requestID := ""
	if withRequestID {
		requestID = uuid.NewString()
	}
	frame := gamedto.NewOutbound(msgType, data, requestID)

	ctx := m.rootCtx
	if ctx == nil {
		ctx = context.Background()
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// wsjson.Write is not safe for concurrent writers.
	m.writeMu.Lock()
	err := wsjson.Write(wctx, conn, frame)
	m.writeMu.Unlock()
	if err != nil {
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
		return "", err
	}
	return requestID, nil
}

func (m *Manager) heartbeat(connDone chan struct{}) {
	defer m.wg.Done()
	t := time.NewTicker(m.opts.Heartbeat)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-connDone:
			return
		case <-t.C:
			// Liveness signal only. A missing pong is not a failure; the
			// transport's own close event stays authoritative.
			if _, err := m.Emit(gamedto.MsgPing, struct{}{}, false); err != nil && err != ErrNotConnected {
				m.logger.Debug("ws_ping_failed", zap.Error(err))
			}
		}
	}
}

// Disconnect cancels any pending reconnect, closes the transport with a
// normal-closure code and waits for the internal goroutines. Safe to call
// more than once.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	if m.conn != nil {
		m.state = StateClosing
		_ = m.conn.Close(websocket.StatusNormalClosure, "client disconnect")
		m.conn = nil
	}
	m.reconnecting = false
	m.mu.Unlock()
	m.notifyState()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-done:
	}

	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
	if m.rootCancel != nil {
		m.rootCancel()
	}
	m.notifyState()
	return err
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:        m.state,
		Reconnecting: m.reconnecting,
		Attempts:     m.attempts,
		Exhausted:    m.exhausted,
		AuthRejected: m.authRejected,
		LastError:    m.lastErr,
	}
}

func (m *Manager) OnMessage(cb MessageFunc) int {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	m.nextCbID++
	m.msgCbs = append(m.msgCbs, msgCallbackEntry{id: m.nextCbID, callback: cb})
	return m.nextCbID
}

func (m *Manager) RemoveMessageCallback(id int) {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	for i, entry := range m.msgCbs {
		if entry.id == id {
			m.msgCbs = append(m.msgCbs[:i], m.msgCbs[i+1:]...)
			break
		}
	}
}

func (m *Manager) OnStateChange(cb StateFunc) int {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	m.nextCbID++
	m.stateCbs = append(m.stateCbs, stateCallbackEntry{id: m.nextCbID, callback: cb})
	return m.nextCbID
}

func (m *Manager) RemoveStateCallback(id int) {
	m.cbM.Lock()
	defer m.cbM.Unlock()
	for i, entry := range m.stateCbs {
		if entry.id == id {
			m.stateCbs = append(m.stateCbs[:i], m.stateCbs[i+1:]...)
			break
		}
	}
}

func (m *Manager) dispatch(ev *gamedto.Inbound) {
	m.cbM.RLock()
	callbacks := make([]msgCallbackEntry, len(m.msgCbs))
	copy(callbacks, m.msgCbs)
	m.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(ev)
		}
	}
}

func (m *Manager) notifyState() {
	st := m.Status()
	m.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(m.stateCbs))
	copy(callbacks, m.stateCbs)
	m.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(st)
		}
	}
}

func (m *Manager) isStopping() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

func backoffDuration(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		attempt = 10
	}
	d := base << uint(attempt) // base, 2*base, 4*base ...
	if d > cap {
		return cap
	}
	return d
}

func buildURL(base, roomID, token string) string {
	u := base + "/ws/rooms/" + url.PathEscape(roomID)
	if strings.TrimSpace(token) != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}
