package domain

import "time"

// Position is an opaque board-occupancy snapshot: which square holds which
// piece, for both sides, independent of whose turn it is. Two samples that
// denote the same arrangement compare equal; equality is the only signal used
// to detect board changes.
type Position string

func (p Position) Empty() bool { return p == "" }

// AnalysisEntry is one engine report, partial or final.
type AnalysisEntry struct {
	Move    Move
	ScoreCP *int // centipawns from the engine's point of view; nil when unknown
	Depth   int
	Final   bool
	At      time.Time
}

// Score returns the centipawn score, zero when the engine never reported one.
func (e AnalysisEntry) Score() int {
	if e.ScoreCP == nil {
		return 0
	}
	return *e.ScoreCP
}

// TurnState is the single source of truth for whose move it is. Owned and
// mutated only by the orchestration loop.
type TurnState struct {
	ActiveColor        Color
	WaitingForOpponent bool
	LastOpponentMoveAt time.Time // zero until the opponent first moves
	LastKnownPosition  Position
	LastCombined       string // position plus side-to-move, as last classified
}

func (t *TurnState) Reset() {
	*t = TurnState{}
}
