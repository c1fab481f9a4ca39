// Package autoplay decides which move, if any, to commit automatically.
package autoplay

import (
	"github.com/nolancacheux/AI-Chess-Assistant/internal/analysis"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

// Decision is the outcome of one selection attempt.
type Decision int

const (
	// Play means the returned move should be dispatched to the executor.
	Play Decision = iota
	// None means nothing actionable exists; the caller waits for the next
	// trigger. Not an error.
	None
	// GameOver means the game has ended and autoplay should be disabled.
	GameOver
)

// GameOverFunc reports whether the game on the external board has ended.
type GameOverFunc func() bool

// SelectMove picks exactly one move to execute automatically. Preference
// order: any entry at exactly targetDepth computed after the opponent's latest
// move, then the best fresh entry of any depth, then nothing.
func SelectMove(h *analysis.History, ts domain.TurnState, targetDepth int, gameOver GameOverFunc) (domain.Move, Decision) {
	if gameOver != nil && gameOver() {
		return "", GameOver
	}

	if matches := h.ValidMovesForAutoPlay(targetDepth, ts.LastOpponentMoveAt); len(matches) > 0 {
		// most-recent-first, so the first element is the freshest match
		return matches[0].Move, Play
	}

	if entry, ok := h.AnyValidMoveForAutoPlay(ts.LastOpponentMoveAt); ok {
		return entry.Move, Play
	}

	return "", None
}
