package arena

import (
	"strings"
	"testing"
	"time"
)

func TestBuildPGN(t *testing.T) {
	g := &GameRecord{
		ID:        "PGN001",
		WhiteID:   "wh1teid1",
		BlackID:   "bl4ckid2",
		MovesSAN:  []string{"f3", "e5", "g4", "Qh4#"},
		Status:    StatusComplete,
		Winner:    "black",
		CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC),
	}
	pgn := BuildPGN(g)

	for _, want := range []string{
		`[Date "2026.03.14"]`,
		`[White "wh1teid1"]`,
		`[Black "bl4ckid2"]`,
		`[Result "0-1"]`,
		"1. f3 e5",
		"2. g4 Qh4#",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if !strings.HasSuffix(pgn, "0-1") {
		t.Fatalf("pgn should end with result:\n%s", pgn)
	}
}

func TestBuildPGNResults(t *testing.T) {
	cases := map[string]string{
		"white": "1-0",
		"black": "0-1",
		"draw":  "1/2-1/2",
		"":      "*",
	}
	for winner, want := range cases {
		g := &GameRecord{Winner: winner, UpdatedAt: time.Now()}
		if pgn := BuildPGN(g); !strings.Contains(pgn, `[Result "`+want+`"]`) {
			t.Fatalf("winner %q: pgn result tag missing %q", winner, want)
		}
	}
}

func TestBuildPGNSanitizesNames(t *testing.T) {
	g := &GameRecord{
		WhiteID:   `evil"name`,
		BlackID:   `back\slash`,
		UpdatedAt: time.Now(),
	}
	pgn := BuildPGN(g)
	if strings.Contains(pgn, `evil"name`) || strings.Contains(pgn, `back\slash`) {
		t.Fatalf("pgn header not sanitized:\n%s", pgn)
	}
}
