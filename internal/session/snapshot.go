package session

import (
	"time"

	"github.com/park285/kkeutmal-client/pkg/gamedto"
)

// Advisory is a transient, time-boxed message (rejected word, server
// error). It never enters the authoritative game state.
type Advisory struct {
	Message   string
	ExpiresAt time.Time
}

// ChatLine is display-only chat history; capped, not game state.
type ChatLine struct {
	PlayerID string
	Nickname string
	Message  string
}

const chatHistoryLimit = 50

// Snapshot is the local view of one room, owned exclusively by the
// reducer fold. The presentation layer reads copies and never mutates.
type Snapshot struct {
	RoomID              string
	Players             []gamedto.Player
	Status              gamedto.RoomStatus
	CurrentRound        int
	MaxRounds           int
	CurrentTurnPlayerID string
	RequiredLeadChar    string
	WordChain           []gamedto.WordEntry
	Scores              map[string]int
	RemainingTurnSecs   float64
	TurnTimerActive     bool
	CountdownMessage    string
	RoundTransition     bool
	HostPending         bool
	Advisory            *Advisory
	Chat                []ChatLine
}

func NewSnapshot(roomID string) Snapshot {
	return Snapshot{
		RoomID: roomID,
		Status: gamedto.StatusWaiting,
		Scores: map[string]int{},
	}
}

// clone returns a deep enough copy that mutating the result never
// touches the original's slices or maps.
func (s Snapshot) clone() Snapshot {
	out := s
	out.Players = append([]gamedto.Player(nil), s.Players...)
	out.WordChain = append([]gamedto.WordEntry(nil), s.WordChain...)
	out.Chat = append([]ChatLine(nil), s.Chat...)
	out.Scores = make(map[string]int, len(s.Scores))
	for k, v := range s.Scores {
		out.Scores[k] = v
	}
	if s.Advisory != nil {
		adv := *s.Advisory
		out.Advisory = &adv
	}
	return out
}

// equalShallow compares only the fields a countdown tick can touch.
func (s Snapshot) equalShallow(o Snapshot) bool {
	return s.RemainingTurnSecs == o.RemainingTurnSecs &&
		(s.Advisory == nil) == (o.Advisory == nil)
}

func (s Snapshot) playerIndex(id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Host returns the current host, or nil while a host change is pending.
func (s Snapshot) Host() *gamedto.Player {
	for i := range s.Players {
		if s.Players[i].IsHost {
			return &s.Players[i]
		}
	}
	return nil
}
