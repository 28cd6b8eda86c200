package arena

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Archive stores finished games durably in Postgres. It is write-only from
// the coordinator's point of view; the live protocol never reads it.
type Archive struct {
	db *sql.DB
}

func NewArchive(databaseURL string) (*Archive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database URL required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	a := &Archive{db: db}
	if err := a.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	const q = `CREATE TABLE IF NOT EXISTS finished_games (
		archive_id  UUID PRIMARY KEY,
		game_id     TEXT UNIQUE NOT NULL,
		white_id    TEXT NOT NULL,
		black_id    TEXT NOT NULL,
		winner      TEXT NOT NULL,
		moves_san   TEXT NOT NULL,
		pgn         TEXT NOT NULL,
		final_fen   TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		ended_at    TIMESTAMPTZ NOT NULL
	)`
	_, err := a.db.ExecContext(ctx, q)
	return err
}

// SaveResult upserts the final state of a completed game.
func (a *Archive) SaveResult(ctx context.Context, g *GameRecord) error {
	if a == nil || a.db == nil || g == nil {
		return nil
	}
	if g.Status != StatusComplete {
		return nil
	}
	movesRaw, _ := json.Marshal(g.MovesSAN)
	const q = `INSERT INTO finished_games (
		archive_id, game_id, white_id, black_id, winner,
		moves_san, pgn, final_fen, started_at, ended_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (game_id) DO UPDATE SET
		winner=EXCLUDED.winner,
		moves_san=EXCLUDED.moves_san,
		pgn=EXCLUDED.pgn,
		final_fen=EXCLUDED.final_fen,
		ended_at=EXCLUDED.ended_at`
	_, err := a.db.ExecContext(ctx, q,
		uuid.NewString(), g.ID, g.WhiteID, g.BlackID, g.Winner,
		string(movesRaw), BuildPGN(g), g.FEN, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

// BuildPGN renders the move log as a PGN document with minimal headers.
func BuildPGN(g *GameRecord) string {
	if g == nil {
		return ""
	}
	var b strings.Builder
	date := g.UpdatedAt
	if date.IsZero() {
		date = time.Now().UTC()
	}
	result := pgnResult(g.Winner)
	b.WriteString("[Event \"Arena\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(g.WhiteID)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(g.BlackID)))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(g.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(g.MovesSAN[i])))
		if i+1 < len(g.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func pgnResult(winner string) string {
	switch winner {
	case string(White):
		return "1-0"
	case string(Black):
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
