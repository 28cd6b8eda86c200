package arena

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// MoveResult is the outcome of applying a legal move.
type MoveResult struct {
	FEN string // resulting position
	SAN string // short algebraic notation of the applied move
}

// Terminal describes a finished position. Winner is "white", "black" or
// "draw"; Method names how the game ended.
type Terminal struct {
	Winner string
	Method string
}

// Rules validates moves and computes resulting positions. Positions are FEN
// strings; the implementation delegates to the external rules engine.
type Rules interface {
	InitialPosition() string
	SideToMove(fen string) (Side, error)
	ApplyMove(fen string, mv MoveSquare) (*MoveResult, error)
	Terminal(fen string) (*Terminal, error)
}

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Engine implements Rules on top of corentings/chess.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

func (e *Engine) InitialPosition() string { return startFEN }

func (e *Engine) SideToMove(fen string) (Side, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return "", err
	}
	return sideOf(game.Position().Turn()), nil
}

// ApplyMove applies a from/to square pair to the position. Promotions carry
// no piece in the wire format, so a failed decode is retried as an
// auto-queen. Illegal moves return ErrIllegalMove.
func (e *Engine) ApplyMove(fen string, mv MoveSquare) (*MoveResult, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	uci := strings.ToLower(strings.TrimSpace(mv.From) + strings.TrimSpace(mv.To))
	if len(uci) != 4 {
		return nil, ErrIllegalMove
	}
	pos := game.Position()
	notation := nchess.UCINotation{}
	move, derr := notation.Decode(pos, uci)
	if derr != nil {
		move, derr = notation.Decode(pos, uci+"q")
	}
	if derr != nil {
		return nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, move)
	if err := game.Move(move, nil); err != nil {
		return nil, ErrIllegalMove
	}
	return &MoveResult{FEN: game.FEN(), SAN: san}, nil
}

// Terminal reports whether the position ends the game. Checkmate names the
// side to move as the loser; stalemate is a draw.
func (e *Engine) Terminal(fen string) (*Terminal, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	pos := game.Position()
	switch pos.Status() {
	case nchess.Checkmate:
		return &Terminal{Winner: string(sideOf(pos.Turn()).Opponent()), Method: "checkmate"}, nil
	case nchess.Stalemate:
		return &Terminal{Winner: "draw", Method: "stalemate"}, nil
	}
	if game.Outcome() == nchess.Draw {
		return &Terminal{Winner: "draw", Method: "draw"}, nil
	}
	return nil, nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return nchess.NewGame(opt), nil
}

func sideOf(c nchess.Color) Side {
	if c == nchess.White {
		return White
	}
	return Black
}
