package gamedto

// Payloads for the inbound event union. Fields the reducer does not
// need for snapshot updates are intentionally omitted.

type RoomJoinedPayload struct {
	RoomID              string         `json:"room_id"`
	Players             []Player       `json:"players"`
	Status              string         `json:"status"`
	CurrentRound        int            `json:"current_round"`
	MaxRounds           int            `json:"max_rounds"`
	CurrentTurnPlayerID string         `json:"current_turn_player_id,omitempty"`
	RequiredLeadChar    string         `json:"required_lead_char,omitempty"`
	WordChain           []WordEntry    `json:"word_chain,omitempty"`
	Scores              map[string]int `json:"scores,omitempty"`
}

type PlayerJoinedPayload struct {
	Player Player `json:"player"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

type PlayerReadyPayload struct {
	PlayerID string `json:"player_id"`
	IsReady  bool   `json:"is_ready"`
}

type HostChangedPayload struct {
	HostID string `json:"host_id"`
}

type GameStartedPayload struct {
	CurrentRound     int    `json:"current_round"`
	MaxRounds        int    `json:"max_rounds"`
	TurnPlayerID     string `json:"turn_player_id"`
	StartChar        string `json:"start_char"`
	TurnLimitSeconds int    `json:"turn_limit_seconds"`
}

type WordSubmittedPayload struct {
	PlayerID         string         `json:"player_id"`
	Word             string         `json:"word"`
	NextChar         string         `json:"next_char"`
	NextTurnPlayerID string         `json:"next_turn_player_id"`
	TurnLimitSeconds int            `json:"turn_limit_seconds"`
	Scores           map[string]int `json:"scores,omitempty"`
}

type WordSubmissionFailedPayload struct {
	PlayerID string `json:"player_id"`
	Word     string `json:"word"`
	Reason   string `json:"reason"`
}

type TurnTimerStartedPayload struct {
	TurnPlayerID string `json:"turn_player_id,omitempty"`
	LimitSeconds int    `json:"limit_seconds"`
}

type TurnTimeoutPayload struct {
	PlayerID         string `json:"player_id"`
	RoundCompleted   bool   `json:"round_completed"`
	NextTurnPlayerID string `json:"next_turn_player_id,omitempty"`
	RequiredChar     string `json:"required_char,omitempty"`
	TurnLimitSeconds int    `json:"turn_limit_seconds,omitempty"`
}

type RoundCompletedPayload struct {
	Round  int            `json:"round"`
	Scores map[string]int `json:"scores,omitempty"`
}

type NextRoundStartingPayload struct {
	Round            int    `json:"round"`
	TurnPlayerID     string `json:"turn_player_id"`
	StartChar        string `json:"start_char"`
	TurnLimitSeconds int    `json:"turn_limit_seconds"`
	CountdownMessage string `json:"countdown_message,omitempty"`
}

type GameCompletedPayload struct {
	WinnerID    string         `json:"winner_id,omitempty"`
	FinalScores map[string]int `json:"final_scores,omitempty"`
}

type GameEndedPayload struct {
	Reason string `json:"reason,omitempty"`
}

type ChatPayload struct {
	PlayerID string `json:"player_id"`
	Nickname string `json:"nickname,omitempty"`
	Message  string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Client → server payloads.

type SubmitWordRequest struct {
	Word string `json:"word"`
}

type ReadyToggleRequest struct {
	IsReady bool `json:"is_ready"`
}

type ChatRequest struct {
	Message string `json:"message"`
}
