package gamedto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for every server → client frame.
// Unknown Type values must be tolerated by consumers.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for every client → server frame.
// RequestID is set only for messages expecting a correlated reply.
type Outbound struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id,omitempty"`
}

func NewOutbound(msgType string, data any, requestID string) Outbound {
	return Outbound{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
}

// Server event tags. The reducer handles this union exhaustively;
// anything else is logged and ignored.
const (
	EventRoomJoined           = "room_joined"
	EventPlayerJoined         = "player_joined"
	EventPlayerLeft           = "player_left"
	EventPlayerReady          = "player_ready"
	EventHostChanged          = "host_changed"
	EventGameStarted          = "game_started"
	EventWordSubmitted        = "word_submitted"
	EventWordSubmissionFailed = "word_submission_failed"
	EventTurnTimerStarted     = "turn_timer_started"
	EventTurnTimeout          = "turn_timeout"
	EventRoundCompleted       = "round_completed"
	EventNextRoundStarting    = "next_round_starting"
	EventGameCompleted        = "game_completed"
	EventGameEnded            = "game_ended"
	EventChat                 = "chat"
	EventError                = "error"
	EventPong                 = "pong"

	// EventConnected is synthesized client-side when the transport opens;
	// it never arrives on the wire.
	EventConnected = "connected"
)

// Client message tags.
const (
	MsgSubmitWord  = "submit_word"
	MsgReadyToggle = "ready_toggle"
	MsgChat        = "chat"
	MsgLeaveRoom   = "leave_room"
	MsgStartGame   = "start_game"
	MsgPing        = "ping"
)

// DecodeData decodes an inbound payload into target.
func DecodeData(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}
