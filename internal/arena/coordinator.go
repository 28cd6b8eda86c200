package arena

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kwahn/chess-arena/internal/obslog"
)

// Coordinator is the session state machine. It is stateless between messages
// apart from the registry it consults: every handler loads the authoritative
// record from the store, mutates it under the store's optimistic update, and
// fans resulting frames out to the relevant peers.
type Coordinator struct {
	registry *Registry
	store    *Store
	rules    Rules
	archive  *Archive
	log      *zap.Logger
}

func NewCoordinator(registry *Registry, store *Store, rules Rules) *Coordinator {
	return &Coordinator{
		registry: registry,
		store:    store,
		rules:    rules,
		log:      obslog.L(),
	}
}

// AttachArchive wires an optional repository for persisting finished games.
func (c *Coordinator) AttachArchive(a *Archive) {
	if c != nil {
		c.archive = a
	}
}

// HandleFrame processes one inbound frame from the identified sender.
// Unknown frame types are logged and ignored.
func (c *Coordinator) HandleFrame(ctx context.Context, sender string, frame ClientFrame) {
	switch frame.Type {
	case TypeCreateGame:
		c.handleCreate(ctx, sender)
	case TypeJoinGame:
		var p JoinGamePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.log.Warn("bad_payload", zap.String("type", frame.Type), zap.String("sender", sender), zap.Error(err))
			return
		}
		c.handleJoin(ctx, sender, p.GameID)
	case TypeMove:
		var p MovePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.log.Warn("bad_payload", zap.String("type", frame.Type), zap.String("sender", sender), zap.Error(err))
			return
		}
		c.handleMove(ctx, sender, p.GameID, p.Move)
	default:
		c.log.Warn("unknown_frame_type", zap.String("type", frame.Type), zap.String("sender", sender))
	}
}

func (c *Coordinator) handleCreate(ctx context.Context, sender string) {
	now := time.Now().UTC()
	rec := &GameRecord{
		ID:        NewGameID(),
		WhiteID:   sender,
		FEN:       c.rules.InitialPosition(),
		MovesSAN:  []string{},
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Put(ctx, rec); err != nil {
		c.log.Error("game_create_persist_error", zap.String("game_id", rec.ID), zap.Error(err))
		return
	}
	c.log.Info("game_create",
		zap.String("game_id", rec.ID),
		zap.String("white_id", rec.WhiteID),
	)
	c.send(ctx, sender, ServerFrame{Type: TypeGameCreated, Payload: GameCreatedPayload{GameID: rec.ID}})
}

func (c *Coordinator) handleJoin(ctx context.Context, sender, gameID string) {
	rec, err := c.store.Update(ctx, gameID, func(cur *GameRecord) error {
		if cur.BlackID != "" || cur.Status != StatusWaiting {
			return ErrGameNotJoinable
		}
		cur.BlackID = sender
		cur.Status = StatusInProgress
		return nil
	})
	switch {
	case errors.Is(err, ErrGameNotFound):
		c.send(ctx, sender, ServerFrame{Type: TypeError, Payload: ErrorPayload{Message: "Game not found"}})
		return
	case errors.Is(err, ErrGameNotJoinable), errors.Is(err, ErrConflict):
		// a racing join that loses the WATCH is indistinguishable from a
		// game that filled up first
		c.send(ctx, sender, ServerFrame{Type: TypeError, Payload: ErrorPayload{Message: "Game is not available to join"}})
		return
	case err != nil:
		c.log.Error("game_join_error", zap.String("game_id", gameID), zap.String("sender", sender), zap.Error(err))
		return
	}
	c.log.Info("game_join",
		zap.String("game_id", rec.ID),
		zap.String("white_id", rec.WhiteID),
		zap.String("black_id", rec.BlackID),
	)
	c.send(ctx, rec.WhiteID, ServerFrame{Type: TypeInitGame, Payload: InitGamePayload{Color: White, GameID: rec.ID}})
	c.send(ctx, rec.BlackID, ServerFrame{Type: TypeInitGame, Payload: InitGamePayload{Color: Black, GameID: rec.ID}})
}

func (c *Coordinator) handleMove(ctx context.Context, sender, gameID string, mv MoveSquare) {
	rec, err := c.store.Update(ctx, gameID, func(cur *GameRecord) error {
		if cur.Status != StatusInProgress || cur.BlackID == "" {
			return ErrGameNotActive
		}
		side, serr := c.rules.SideToMove(cur.FEN)
		if serr != nil {
			return serr
		}
		if cur.PlayerID(side) != sender {
			if cur.PlayerSide(sender) == "" {
				return ErrNotInGame
			}
			return ErrNotYourTurn
		}
		res, merr := c.rules.ApplyMove(cur.FEN, mv)
		if merr != nil {
			return merr
		}
		cur.FEN = res.FEN
		cur.MovesSAN = append(cur.MovesSAN, res.SAN)

		term, terr := c.rules.Terminal(res.FEN)
		if terr != nil {
			return terr
		}
		if term != nil {
			cur.Status = StatusComplete
			cur.Winner = term.Winner
		}
		return nil
	})
	if err != nil {
		// invalid game actions are silent to the network: log only, no
		// error frame back to the sender
		c.log.Info("move_rejected",
			zap.String("game_id", gameID),
			zap.String("sender", sender),
			zap.String("from", mv.From),
			zap.String("to", mv.To),
			zap.String("reason", err.Error()),
		)
		return
	}

	c.log.Info("game_move",
		zap.String("game_id", rec.ID),
		zap.String("sender", sender),
		zap.String("san", rec.MovesSAN[len(rec.MovesSAN)-1]),
		zap.String("status", string(rec.Status)),
		zap.String("winner", rec.Winner),
	)

	if rec.Status == StatusComplete {
		over := ServerFrame{Type: TypeGameOver, Payload: GameOverPayload{Winner: rec.Winner}}
		c.send(ctx, rec.WhiteID, over)
		c.send(ctx, rec.BlackID, over)
		c.archiveFinished(ctx, rec)
		return
	}

	// forward to the opponent only; the mover already has the result locally
	opponent := rec.WhiteID
	if sender == rec.WhiteID {
		opponent = rec.BlackID
	}
	c.send(ctx, opponent, ServerFrame{Type: TypeMove, Payload: MoveSquare{From: mv.From, To: mv.To}})
}

// send dispatches a frame to the peer bound to identity. Disconnected peers
// and write failures are dropped, not errors.
func (c *Coordinator) send(ctx context.Context, identity string, frame ServerFrame) {
	peer := c.registry.Resolve(identity)
	if peer == nil {
		c.log.Debug("dispatch_drop", zap.String("identity", identity), zap.String("type", frame.Type))
		return
	}
	if err := peer.Send(ctx, frame); err != nil {
		c.log.Warn("dispatch_error", zap.String("identity", identity), zap.String("type", frame.Type), zap.Error(err))
	}
}

func (c *Coordinator) archiveFinished(ctx context.Context, rec *GameRecord) {
	if c.archive == nil {
		return
	}
	if err := c.archive.SaveResult(ctx, rec); err != nil {
		c.log.Error("archive_error", zap.String("game_id", rec.ID), zap.Error(err))
		return
	}
	c.log.Info("archive_saved", zap.String("game_id", rec.ID), zap.String("winner", rec.Winner))
}
