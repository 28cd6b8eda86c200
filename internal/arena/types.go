package arena

import (
	"time"
)

// Side identifies a chess color.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Status represents a game lifecycle state. Transitions are monotonic:
// waiting -> inprogress -> complete.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "inprogress"
	StatusComplete   Status = "complete"
)

// GameRecord is the persisted state of a game. The store holds one record
// per game ID; it is the sole authority for game truth.
type GameRecord struct {
	ID        string    `json:"id"`
	WhiteID   string    `json:"white_id"`
	BlackID   string    `json:"black_id,omitempty"`
	FEN       string    `json:"fen"`
	MovesSAN  []string  `json:"moves_san"`
	Status    Status    `json:"status"`
	Winner    string    `json:"winner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlayerSide reports which side the given identity plays, or "" when the
// identity is not a participant.
func (g *GameRecord) PlayerSide(identity string) Side {
	switch identity {
	case g.WhiteID:
		return White
	case g.BlackID:
		if g.BlackID == "" {
			return ""
		}
		return Black
	}
	return ""
}

// PlayerID maps a side back to the participant identity.
func (g *GameRecord) PlayerID(side Side) string {
	if side == White {
		return g.WhiteID
	}
	return g.BlackID
}
