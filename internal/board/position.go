package board

import (
	"fmt"
	"strings"

	chesslib "github.com/corentings/chess/v2"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

// StartingFEN is the standard initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Snapshot is one sampled board state: the full FEN as reported by the host
// page, the occupancy-only Position used for change detection, and the side to
// move.
type Snapshot struct {
	FEN        string
	Position   domain.Position
	SideToMove domain.Color
}

// ParseFEN validates a FEN string against the chess library and splits out the
// fields the watcher cares about.
func ParseFEN(fen string) (Snapshot, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return Snapshot{}, fmt.Errorf("empty fen")
	}
	if _, err := chesslib.FEN(fen); err != nil {
		return Snapshot{}, fmt.Errorf("parse fen %q: %w", fen, err)
	}

	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return Snapshot{}, fmt.Errorf("fen %q: missing side-to-move field", fen)
	}

	side := domain.White
	if fields[1] == "b" {
		side = domain.Black
	}

	return Snapshot{
		FEN:        fen,
		Position:   domain.Position(fields[0]),
		SideToMove: side,
	}, nil
}

// Combined joins occupancy and side-to-move into the comparison key the
// watcher uses to classify turn transitions.
func (s Snapshot) Combined() string {
	return string(s.Position) + " " + s.SideToMove.FENLetter()
}

// IsGameOver reports whether the snapshot's position has a decided outcome
// (mate, stalemate, or a forced draw). Used by the auto-commit policy to stop
// autoplay once the game ends.
func (s Snapshot) IsGameOver() bool {
	game, err := gameFromFEN(s.FEN)
	if err != nil {
		return false
	}
	return game.Outcome() != chesslib.NoOutcome
}

func gameFromFEN(fen string) (*chesslib.Game, error) {
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		return chesslib.NewGame(), nil
	}
	option, err := chesslib.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return chesslib.NewGame(option), nil
}
