package arena

import "encoding/json"

// Inbound frame types.
const (
	TypeCreateGame = "create_game"
	TypeJoinGame   = "join_game"
	TypeMove       = "move"
)

// Outbound frame types.
const (
	TypeGameCreated = "game_created"
	TypeInitGame    = "init_game"
	TypeGameOver    = "game_over"
	TypeError       = "error"
)

// ClientFrame is one decoded inbound message. Payload stays raw until the
// coordinator knows the type.
type ClientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerFrame is one outbound message.
type ServerFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type JoinGamePayload struct {
	GameID string `json:"gameId"`
}

type MovePayload struct {
	GameID string     `json:"gameId"`
	Move   MoveSquare `json:"move"`
}

// MoveSquare is a from/to square pair, e.g. {"from":"e2","to":"e4"}.
type MoveSquare struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type GameCreatedPayload struct {
	GameID string `json:"gameId"`
}

type InitGamePayload struct {
	Color  Side   `json:"color"`
	GameID string `json:"gameId"`
}

type GameOverPayload struct {
	Winner string `json:"winner"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
