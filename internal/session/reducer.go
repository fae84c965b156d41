package session

import (
	"time"

	"github.com/park285/kkeutmal-client/pkg/gamedto"
)

// advisoryTTL bounds how long a rejected-word or server-error notice
// stays visible.
const advisoryTTL = 5 * time.Second

// Anomaly reports a skipped event (unknown tag, malformed payload) for
// logging. The fold itself never fails.
type Anomaly struct {
	EventType string
	Reason    string
}

// Reduce folds one inbound event onto the snapshot. Total over the event
// union: unknown tags and malformed payloads leave the snapshot
// unchanged and return an Anomaly. The server is authoritative on turn
// order, scores and timer budgets; the reducer never computes them.
func Reduce(s Snapshot, ev gamedto.Inbound, now time.Time) (Snapshot, *Anomaly) {
	switch ev.Type {
	case gamedto.EventRoomJoined:
		var p gamedto.RoomJoinedPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		return applyRoomJoined(s, p), nil

	case gamedto.EventPlayerJoined:
		var p gamedto.PlayerJoinedPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		if p.Player.ID == "" {
			return s, &Anomaly{EventType: ev.Type, Reason: "missing player id"}
		}
		return applyPlayerJoined(s, p.Player), nil

	case gamedto.EventPlayerLeft:
		var p gamedto.PlayerLeftPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		if p.PlayerID == "" {
			return s, &Anomaly{EventType: ev.Type, Reason: "missing player id"}
		}
		return applyPlayerLeft(s, p.PlayerID), nil

	case gamedto.EventPlayerReady:
		var p gamedto.PlayerReadyPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		out := s.clone()
		if i := out.playerIndex(p.PlayerID); i >= 0 {
			out.Players[i].IsReady = p.IsReady
		}
		return out, nil

	case gamedto.EventHostChanged:
		var p gamedto.HostChangedPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		out := s.clone()
		for i := range out.Players {
			out.Players[i].IsHost = out.Players[i].ID == p.HostID
		}
		out.HostPending = false
		return out, nil

	case gamedto.EventGameStarted:
		var p gamedto.GameStartedPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		return applyGameStarted(s, p), nil

	case gamedto.EventWordSubmitted:
		if s.Status == gamedto.StatusFinished {
			return s, nil
		}
		var p gamedto.WordSubmittedPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		if p.Word == "" || p.PlayerID == "" {
			return s, &Anomaly{EventType: ev.Type, Reason: "missing word or player id"}
		}
		return applyWordSubmitted(s, p), nil

	case gamedto.EventWordSubmissionFailed:
		if s.Status == gamedto.StatusFinished {
			return s, nil
		}
		var p gamedto.WordSubmissionFailedPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		// Rejected words never reach the chain; advisory only.
		out := s.clone()
		out.Advisory = &Advisory{Message: p.Reason, ExpiresAt: now.Add(advisoryTTL)}
		return out, nil

	case gamedto.EventTurnTimerStarted:
		if s.Status == gamedto.StatusFinished {
			return s, nil
		}
		var p gamedto.TurnTimerStartedPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		out := s.clone()
		if p.TurnPlayerID != "" {
			out.CurrentTurnPlayerID = p.TurnPlayerID
		}
		out.RemainingTurnSecs = float64(p.LimitSeconds)
		out.TurnTimerActive = p.LimitSeconds > 0
		return out, nil

	case gamedto.EventTurnTimeout:
		if s.Status == gamedto.StatusFinished {
			return s, nil
		}
		var p gamedto.TurnTimeoutPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		return applyTurnTimeout(s, p), nil

	case gamedto.EventRoundCompleted:
		if s.Status == gamedto.StatusFinished {
			return s, nil
		}
		var p gamedto.RoundCompletedPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		out := s.clone()
		mergeScores(out.Scores, p.Scores)
		out.RoundTransition = true
		out.TurnTimerActive = false
		return out, nil

	case gamedto.EventNextRoundStarting:
		if s.Status == gamedto.StatusFinished {
			return s, nil
		}
		var p gamedto.NextRoundStartingPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		return applyNextRound(s, p), nil

	case gamedto.EventGameCompleted:
		var p gamedto.GameCompletedPayload
		// a bare terminal frame still ends the game
		if len(ev.Data) > 0 {
			if err := gamedto.DecodeData(ev.Data, &p); err != nil {
				return s, malformed(ev.Type, err)
			}
		}
		out := s.clone()
		mergeScores(out.Scores, p.FinalScores)
		out.Status = gamedto.StatusFinished
		out.TurnTimerActive = false
		out.RoundTransition = false
		out.CountdownMessage = ""
		return out, nil

	case gamedto.EventGameEnded:
		var p gamedto.GameEndedPayload
		if len(ev.Data) > 0 {
			if err := gamedto.DecodeData(ev.Data, &p); err != nil {
				return s, malformed(ev.Type, err)
			}
		}
		out := s.clone()
		out.Status = gamedto.StatusFinished
		out.TurnTimerActive = false
		out.RoundTransition = false
		if p.Reason != "" {
			out.Advisory = &Advisory{Message: p.Reason, ExpiresAt: now.Add(advisoryTTL)}
		}
		return out, nil

	case gamedto.EventChat:
		var p gamedto.ChatPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		out := s.clone()
		out.Chat = append(out.Chat, ChatLine{PlayerID: p.PlayerID, Nickname: p.Nickname, Message: p.Message})
		if len(out.Chat) > chatHistoryLimit {
			out.Chat = out.Chat[len(out.Chat)-chatHistoryLimit:]
		}
		return out, nil

	case gamedto.EventError:
		var p gamedto.ErrorPayload
		if err := gamedto.DecodeData(ev.Data, &p); err != nil {
			return s, malformed(ev.Type, err)
		}
		out := s.clone()
		out.Advisory = &Advisory{Message: p.Message, ExpiresAt: now.Add(advisoryTTL)}
		return out, nil

	case gamedto.EventPong, gamedto.EventConnected:
		return s, nil

	default:
		return s, &Anomaly{EventType: ev.Type, Reason: "unknown event"}
	}
}

func applyRoomJoined(s Snapshot, p gamedto.RoomJoinedPayload) Snapshot {
	out := NewSnapshot(p.RoomID)
	out.Players = append(out.Players, p.Players...)
	out.Status = gamedto.RoomStatus(p.Status)
	if out.Status == "" {
		out.Status = gamedto.StatusWaiting
	}
	out.CurrentRound = p.CurrentRound
	out.MaxRounds = p.MaxRounds
	out.CurrentTurnPlayerID = p.CurrentTurnPlayerID
	out.RequiredLeadChar = p.RequiredLeadChar
	out.WordChain = append(out.WordChain, p.WordChain...)
	mergeScores(out.Scores, p.Scores)
	out.Chat = s.Chat
	return out
}

func applyPlayerJoined(s Snapshot, pl gamedto.Player) Snapshot {
	out := s.clone()
	if i := out.playerIndex(pl.ID); i >= 0 {
		out.Players[i] = pl
	} else {
		out.Players = append(out.Players, pl)
	}
	return out
}

func applyPlayerLeft(s Snapshot, playerID string) Snapshot {
	out := s.clone()
	i := out.playerIndex(playerID)
	if i < 0 {
		return out
	}
	// The reducer never invents a new host; it waits for host_changed.
	if out.Players[i].IsHost {
		out.HostPending = true
	}
	out.Players = append(out.Players[:i], out.Players[i+1:]...)
	return out
}

// applyGameStarted is a full reset, not a merge: a new game must not
// inherit stale chain data from a previous game in the same room.
func applyGameStarted(s Snapshot, p gamedto.GameStartedPayload) Snapshot {
	out := s.clone()
	out.Status = gamedto.StatusPlaying
	out.WordChain = nil
	out.Scores = make(map[string]int, len(out.Players))
	for _, pl := range out.Players {
		out.Scores[pl.ID] = 0
	}
	out.CurrentRound = p.CurrentRound
	if out.CurrentRound == 0 {
		out.CurrentRound = 1
	}
	if p.MaxRounds > 0 {
		out.MaxRounds = p.MaxRounds
	}
	out.CurrentTurnPlayerID = p.TurnPlayerID
	out.RequiredLeadChar = p.StartChar
	out.RemainingTurnSecs = float64(p.TurnLimitSeconds)
	out.TurnTimerActive = p.TurnLimitSeconds > 0
	out.RoundTransition = false
	out.CountdownMessage = ""
	out.Advisory = nil
	return out
}

func applyWordSubmitted(s Snapshot, p gamedto.WordSubmittedPayload) Snapshot {
	out := s.clone()
	out.WordChain = append(out.WordChain, gamedto.WordEntry{Word: p.Word, PlayerID: p.PlayerID})
	out.CurrentTurnPlayerID = p.NextTurnPlayerID
	out.RequiredLeadChar = p.NextChar
	if p.TurnLimitSeconds > 0 {
		out.RemainingTurnSecs = float64(p.TurnLimitSeconds)
		out.TurnTimerActive = true
	}
	mergeScores(out.Scores, p.Scores)
	return out
}

func applyTurnTimeout(s Snapshot, p gamedto.TurnTimeoutPayload) Snapshot {
	out := s.clone()
	if p.RoundCompleted {
		// Transitioning between rounds, not game over.
		out.RoundTransition = true
		out.TurnTimerActive = false
		return out
	}
	if p.NextTurnPlayerID != "" {
		out.CurrentTurnPlayerID = p.NextTurnPlayerID
	}
	if p.RequiredChar != "" {
		out.RequiredLeadChar = p.RequiredChar
	}
	if p.TurnLimitSeconds > 0 {
		out.RemainingTurnSecs = float64(p.TurnLimitSeconds)
		out.TurnTimerActive = true
	}
	return out
}

func applyNextRound(s Snapshot, p gamedto.NextRoundStartingPayload) Snapshot {
	out := s.clone()
	out.WordChain = nil
	out.CurrentRound = p.Round
	out.CurrentTurnPlayerID = p.TurnPlayerID
	out.RequiredLeadChar = p.StartChar
	out.RemainingTurnSecs = float64(p.TurnLimitSeconds)
	out.TurnTimerActive = p.TurnLimitSeconds > 0
	out.RoundTransition = false
	out.CountdownMessage = p.CountdownMessage
	return out
}

// Tick advances the advisory local countdown between server updates and
// expires stale advisories. The next authoritative event always
// overwrites whatever this produces.
func Tick(s Snapshot, elapsed time.Duration, now time.Time) Snapshot {
	out := s
	changed := false
	if s.Status == gamedto.StatusPlaying && s.TurnTimerActive && !s.RoundTransition && s.RemainingTurnSecs > 0 {
		out = s.clone()
		out.RemainingTurnSecs -= elapsed.Seconds()
		if out.RemainingTurnSecs < 0 {
			out.RemainingTurnSecs = 0
		}
		changed = true
	}
	if s.Advisory != nil && now.After(s.Advisory.ExpiresAt) {
		if !changed {
			out = s.clone()
		}
		out.Advisory = nil
	}
	return out
}

// Enrich attaches a dictionary definition to the most recent matching
// chain entry. A fetch that loses the race with a round reset is a no-op.
func Enrich(s Snapshot, word, definition string, difficulty int) Snapshot {
	for i := len(s.WordChain) - 1; i >= 0; i-- {
		if s.WordChain[i].Word == word && s.WordChain[i].Definition == "" {
			out := s.clone()
			out.WordChain[i].Definition = definition
			out.WordChain[i].Difficulty = difficulty
			return out
		}
	}
	return s
}

func mergeScores(dst map[string]int, src map[string]int) {
	for k, v := range src {
		dst[k] = v
	}
}

func malformed(eventType string, err error) *Anomaly {
	return &Anomaly{EventType: eventType, Reason: "malformed payload: " + err.Error()}
}
