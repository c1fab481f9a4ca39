package autoplay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/analysis"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

func intp(v int) *int { return &v }

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func scenario(t *testing.T) (*analysis.History, *clock) {
	t.Helper()
	h := analysis.New(analysis.Config{}, nil)
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	h.SetClock(c.now)
	return h, c
}

func TestSelectMovePrefersFreshTargetDepth(t *testing.T) {
	h, c := scenario(t)

	// deep analysis of the previous position, then the opponent moves
	require.True(t, h.Add("e2e4", intp(30), 15, false))
	oppMovedAt := c.now()

	// burst analysis of the new position at the shallow target depth
	require.True(t, h.Add("e7e5", intp(-10), 2, false))

	ts := domain.TurnState{ActiveColor: domain.Black, LastOpponentMoveAt: oppMovedAt}
	move, decision := SelectMove(h, ts, 2, func() bool { return false })
	assert.Equal(t, Play, decision)
	assert.Equal(t, domain.Move("e7e5"), move)
}

func TestSelectMoveFallsBackToAnyFreshEntry(t *testing.T) {
	h, c := scenario(t)

	require.True(t, h.Add("e2e4", intp(30), 15, false))
	oppMovedAt := c.now()
	require.True(t, h.Add("g8f6", intp(5), 9, false))
	require.True(t, h.Add("b8c6", intp(8), 7, true))

	// nothing at the target depth, so the fresh final entry wins
	ts := domain.TurnState{ActiveColor: domain.Black, LastOpponentMoveAt: oppMovedAt}
	move, decision := SelectMove(h, ts, 2, func() bool { return false })
	assert.Equal(t, Play, decision)
	assert.Equal(t, domain.Move("b8c6"), move)
}

func TestSelectMoveStaleFallback(t *testing.T) {
	h, c := scenario(t)

	require.True(t, h.Add("e2e4", intp(30), 15, false))
	oppMovedAt := c.now().Add(time.Hour)

	// everything predates the opponent's move; the newest entry is still
	// offered rather than skipping the turn
	ts := domain.TurnState{ActiveColor: domain.White, LastOpponentMoveAt: oppMovedAt}
	move, decision := SelectMove(h, ts, 2, func() bool { return false })
	assert.Equal(t, Play, decision)
	assert.Equal(t, domain.Move("e2e4"), move)
}

func TestSelectMoveEmptyHistory(t *testing.T) {
	h, _ := scenario(t)

	ts := domain.TurnState{ActiveColor: domain.White}
	move, decision := SelectMove(h, ts, 2, func() bool { return false })
	assert.Equal(t, None, decision)
	assert.Empty(t, move)
}

func TestSelectMoveGameOverWinsOverEverything(t *testing.T) {
	h, _ := scenario(t)
	require.True(t, h.Add("e2e4", intp(30), 2, false))

	ts := domain.TurnState{ActiveColor: domain.White}
	move, decision := SelectMove(h, ts, 2, func() bool { return true })
	assert.Equal(t, GameOver, decision)
	assert.Empty(t, move)
}
