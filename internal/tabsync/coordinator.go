package tabsync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// busChannel is the fixed broadcast bus shared by every client instance
// of the same browser profile.
const busChannel = "kkeutmal:tabsync"

const (
	MsgConnectionEstablished = "CONNECTION_ESTABLISHED"
	MsgRoomJoined            = "ROOM_JOINED"
	MsgTakeover              = "TAKEOVER"
)

type envelope struct {
	Type string  `json:"type"`
	Data payload `json:"data"`
}

type payload struct {
	UserID    string `json:"user_id"`
	RoomID    string `json:"room_id,omitempty"`
	TabID     string `json:"tab_id"`
	Timestamp string `json:"timestamp"`
}

// DuplicateFunc is invoked when another tab of the same user announces
// membership in the same room. The coordinator only detects and reports;
// the caller decides between takeover and yield.
type DuplicateFunc func(userID, roomID, otherTabID string)

// TakeoverFunc is invoked when another tab claims this tab's session;
// the caller is expected to disconnect.
type TakeoverFunc func(userID, roomID, otherTabID string)

type Coordinator struct {
	rdb    *redis.Client
	tabID  string
	logger *zap.Logger

	mu          sync.Mutex
	userID      string
	roomID      string
	onDuplicate DuplicateFunc
	onTakeover  TakeoverFunc

	sub      *redis.PubSub
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCoordinator(rdb *redis.Client, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		rdb:    rdb,
		tabID:  uuid.NewString(),
		logger: logger,
	}
}

func (c *Coordinator) TabID() string { return c.tabID }

func (c *Coordinator) OnDuplicate(fn DuplicateFunc) {
	c.mu.Lock()
	c.onDuplicate = fn
	c.mu.Unlock()
}

func (c *Coordinator) OnTakeover(fn TakeoverFunc) {
	c.mu.Lock()
	c.onTakeover = fn
	c.mu.Unlock()
}

// Start subscribes to the bus and begins watching for messages from
// other tabs. Must be called before SetCurrentUser/NotifyRoomJoined.
func (c *Coordinator) Start(ctx context.Context) error {
	c.sub = c.rdb.Subscribe(ctx, busChannel)
	// force the subscription before anyone publishes
	if _, err := c.sub.Receive(ctx); err != nil {
		return err
	}
	c.wg.Add(1)
	go c.watch()
	return nil
}

func (c *Coordinator) watch() {
	defer c.wg.Done()
	for msg := range c.sub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			c.logger.Warn("tabsync_bad_envelope", zap.Error(err))
			continue
		}
		if env.Data.TabID == c.tabID {
			continue // own broadcast
		}
		c.mu.Lock()
		userID, roomID := c.userID, c.roomID
		dup, take := c.onDuplicate, c.onTakeover
		c.mu.Unlock()

		switch env.Type {
		case MsgRoomJoined:
			if userID != "" && env.Data.UserID == userID && env.Data.RoomID == roomID && dup != nil {
				c.logger.Warn("tabsync_duplicate",
					zap.String("user_id", userID), zap.String("room_id", roomID),
					zap.String("other_tab", env.Data.TabID))
				dup(env.Data.UserID, env.Data.RoomID, env.Data.TabID)
			}
		case MsgTakeover:
			if userID != "" && env.Data.UserID == userID && env.Data.RoomID == roomID && take != nil {
				c.logger.Warn("tabsync_takeover",
					zap.String("user_id", userID), zap.String("room_id", roomID),
					zap.String("other_tab", env.Data.TabID))
				take(env.Data.UserID, env.Data.RoomID, env.Data.TabID)
			}
		case MsgConnectionEstablished:
			c.logger.Debug("tabsync_peer_connected", zap.String("other_tab", env.Data.TabID))
		}
	}
}

// SetCurrentUser records the logical user for this tab and announces it.
func (c *Coordinator) SetCurrentUser(ctx context.Context, userID string) error {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
	return c.publish(ctx, MsgConnectionEstablished, userID, "")
}

// NotifyRoomJoined broadcasts room membership; other tabs holding the
// same (user, room) pair will raise a duplicate-session condition.
func (c *Coordinator) NotifyRoomJoined(ctx context.Context, roomID string) error {
	c.mu.Lock()
	c.roomID = roomID
	userID := c.userID
	c.mu.Unlock()
	return c.publish(ctx, MsgRoomJoined, userID, roomID)
}

// RequestTakeover claims the session for this tab; the other tab's
// transport is expected to react by closing itself.
func (c *Coordinator) RequestTakeover(ctx context.Context) error {
	c.mu.Lock()
	userID, roomID := c.userID, c.roomID
	c.mu.Unlock()
	return c.publish(ctx, MsgTakeover, userID, roomID)
}

func (c *Coordinator) publish(ctx context.Context, msgType, userID, roomID string) error {
	raw, err := json.Marshal(envelope{
		Type: msgType,
		Data: payload{
			UserID:    userID,
			RoomID:    roomID,
			TabID:     c.tabID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return err
	}
	return c.rdb.Publish(ctx, busChannel, raw).Err()
}

func (c *Coordinator) Close() error {
	var err error
	c.stopOnce.Do(func() {
		if c.sub != nil {
			err = c.sub.Close()
		}
		c.wg.Wait()
	})
	return err
}
