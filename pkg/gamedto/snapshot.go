package gamedto

// RoomStatus is the lifecycle phase of a room.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// Player is a room participant as seen by this client.
type Player struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	IsHost    bool   `json:"is_host"`
	IsReady   bool   `json:"is_ready"`
	Connected bool   `json:"connected"`
}

// WordEntry is one accepted word in the current round's chain.
// Definition/Difficulty are filled in lazily from the dictionary service.
type WordEntry struct {
	Word       string `json:"word"`
	PlayerID   string `json:"player_id"`
	Definition string `json:"definition,omitempty"`
	Difficulty int    `json:"difficulty,omitempty"`
}
