// Package analysis keeps the bounded, deduplicated log of engine reports for
// the current move, plus the derived queries autoplay and the panel read.
package analysis

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

// StopFunc asks the engine adapter to cut the in-flight search short.
type StopFunc func()

type Config struct {
	Capacity             int
	DepthMin             int
	DepthMax             int
	RepetitionThreshold  int
	RepetitionDepthFloor int
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 100
	}
	if c.DepthMin <= 0 {
		c.DepthMin = 1
	}
	if c.DepthMax <= 0 {
		c.DepthMax = 26
	}
	if c.RepetitionThreshold <= 0 {
		c.RepetitionThreshold = 3
	}
	if c.RepetitionDepthFloor <= 0 {
		c.RepetitionDepthFloor = 20
	}
	return c
}

// History is an append-only-with-cap ordered log, most-recent-first. Owned by
// the orchestration loop; never written from any other goroutine.
type History struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	entries []domain.AnalysisEntry

	// repetition tracker: consecutive identical best moves at high depth mean
	// the search has converged and further engine time is wasted
	lastMove      domain.Move
	repeatCount   int
	stopRequested bool
	requestStop   StopFunc
}

func New(cfg Config, logger *zap.Logger) *History {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// SetStopRequester wires the engine-stop callback invoked by the repetition
// cutoff.
func (h *History) SetStopRequester(fn StopFunc) { h.requestStop = fn }

// SetClock overrides the timestamp source. Tests only.
func (h *History) SetClock(now func() time.Time) {
	if now != nil {
		h.now = now
	}
}

// Add validates and records one engine report. Returns false for the silent
// rejections of expected protocol noise: empty moves, meaningless partial
// lines, out-of-range depths, duplicate echoes, and converged repeats.
func (h *History) Add(move domain.Move, scoreCP *int, depth int, final bool) bool {
	if move == "" {
		return false
	}
	if !final && (scoreCP == nil || depth <= 0) {
		// a non-final entry without score+depth carries no information
		return false
	}
	if depth < h.cfg.DepthMin || depth > h.cfg.DepthMax {
		h.logger.Debug("analysis entry out of depth range",
			zap.String("move", move.String()), zap.Int("depth", depth))
		return false
	}
	if len(h.entries) > 0 {
		last := h.entries[0]
		if last.Move == move && last.Depth == depth {
			// the engine protocol can repeat identical info lines
			return false
		}
	}
	if !h.trackRepetition(move, depth) {
		return false
	}

	entry := domain.AnalysisEntry{
		Move:  move,
		Depth: depth,
		Final: final,
		At:    h.now(),
	}
	if scoreCP != nil {
		v := *scoreCP
		entry.ScoreCP = &v
	}

	h.entries = append([]domain.AnalysisEntry{entry}, h.entries...)
	if len(h.entries) > h.cfg.Capacity {
		h.entries = h.entries[:h.cfg.Capacity]
	}
	return true
}

// trackRepetition updates the repeat counter and reports whether the entry may
// be recorded. Once the same move has been accepted RepetitionThreshold times
// in a row and the search is at or past the depth floor, the entry is dropped
// and exactly one engine stop is requested for the current move.
func (h *History) trackRepetition(move domain.Move, depth int) bool {
	if move != h.lastMove {
		h.lastMove = move
		h.repeatCount = 1
		h.stopRequested = false
		return true
	}

	next := h.repeatCount + 1
	if next >= h.cfg.RepetitionThreshold && depth >= h.cfg.RepetitionDepthFloor {
		if !h.stopRequested {
			h.stopRequested = true
			h.logger.Debug("analysis converged, stopping search",
				zap.String("move", move.String()), zap.Int("depth", depth))
			if h.requestStop != nil {
				h.requestStop()
			}
		}
		return false
	}
	h.repeatCount = next
	return true
}

// Len reports the number of recorded entries.
func (h *History) Len() int { return len(h.entries) }

// Entries returns a most-recent-first snapshot for presentation.
func (h *History) Entries() []domain.AnalysisEntry {
	return append([]domain.AnalysisEntry(nil), h.entries...)
}

// LatestBestMove prefers the most recent final entry, falls back to the most
// recent entry of any kind.
func (h *History) LatestBestMove() (domain.AnalysisEntry, bool) {
	for _, e := range h.entries {
		if e.Final {
			return e, true
		}
	}
	if len(h.entries) > 0 {
		return h.entries[0], true
	}
	return domain.AnalysisEntry{}, false
}

// ValidMovesForAutoPlay returns entries computed strictly after since at
// exactly targetDepth, most-recent-first. The temporal filter is what keeps
// autoplay from acting on analysis of the position before the opponent's move.
func (h *History) ValidMovesForAutoPlay(targetDepth int, since time.Time) []domain.AnalysisEntry {
	var out []domain.AnalysisEntry
	for _, e := range h.entries {
		if e.Depth == targetDepth && e.At.After(since) {
			out = append(out, e)
		}
	}
	return out
}

// AnyValidMoveForAutoPlay applies the same temporal filter without the depth
// constraint, preferring a terminal answer and, among partials, deeper search.
// When nothing postdates since it falls back to the single most recent entry —
// a last resort that may replay stale pre-opponent-move analysis, kept to
// match the established behavior rather than skipping the turn.
func (h *History) AnyValidMoveForAutoPlay(since time.Time) (domain.AnalysisEntry, bool) {
	var fresh []domain.AnalysisEntry
	for _, e := range h.entries {
		if e.At.After(since) {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) > 0 {
		sort.SliceStable(fresh, func(i, j int) bool {
			if fresh[i].Final != fresh[j].Final {
				return fresh[i].Final
			}
			return fresh[i].Depth > fresh[j].Depth
		})
		return fresh[0], true
	}
	if len(h.entries) > 0 {
		return h.entries[0], true
	}
	return domain.AnalysisEntry{}, false
}

// Clear empties the log and resets the repetition tracker. Called on every
// turn transition and on deactivation.
func (h *History) Clear() {
	h.entries = nil
	h.lastMove = ""
	h.repeatCount = 0
	h.stopRequested = false
}
