// Package watcher samples the external board on a fixed cadence and
// classifies what changed. It only classifies; acting on a change is the
// orchestration loop's job.
package watcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/board"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

// ChangeKind classifies one poll of the external board.
type ChangeKind int

const (
	// NoChange means the occupancy is identical to the last known position.
	NoChange ChangeKind = iota
	// OwnMoveCompleted means our side (or our autoplay) just moved and it is
	// now the opponent's turn.
	OwnMoveCompleted
	// OpponentMoved means the opponent replied and it is our turn again.
	OpponentMoved
	// TurnStart means the position changed while remaining our turn, e.g. the
	// very first sample after activation. Analysis should start, but nothing
	// about it was a prior own move.
	TurnStart
)

func (k ChangeKind) String() string {
	switch k {
	case OwnMoveCompleted:
		return "own_move_completed"
	case OpponentMoved:
		return "opponent_moved"
	case TurnStart:
		return "turn_start"
	default:
		return "no_change"
	}
}

// Sampler produces board snapshots. Must be idempotent and side-effect-free.
type Sampler interface {
	Sample(ctx context.Context) (board.Snapshot, error)
}

type Watcher struct {
	source Sampler
	logger *zap.Logger
}

func New(source Sampler, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{source: source, logger: logger}
}

// Poll samples the board once and classifies the result against the turn
// state. On a classified (non-NoChange) poll the turn state's last known
// position and combined string are updated; nothing else is touched.
func (w *Watcher) Poll(ctx context.Context, ts *domain.TurnState) (ChangeKind, board.Snapshot, error) {
	snap, err := w.source.Sample(ctx)
	if err != nil {
		return NoChange, board.Snapshot{}, err
	}
	kind := Classify(snap, ts)
	if kind != NoChange {
		ts.LastKnownPosition = snap.Position
		ts.LastCombined = snap.Combined()
	}
	return kind, snap, nil
}

// Classify applies the turn-transition rules to a sampled snapshot. Exposed
// separately so the rules can be exercised without a live sampler.
func Classify(snap board.Snapshot, ts *domain.TurnState) ChangeKind {
	if snap.Position == ts.LastKnownPosition {
		return NoChange
	}
	if snap.SideToMove != ts.ActiveColor {
		return OwnMoveCompleted
	}
	if ts.WaitingForOpponent {
		return OpponentMoved
	}
	return TurnStart
}
