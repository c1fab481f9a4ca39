package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/analysis"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/board"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/msgcat"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/uci"
	"github.com/nolancacheux/AI-Chess-Assistant/pkg/assistdto"
)

func intp(v int) *int { return &v }

type fakeEngine struct {
	mu         sync.Mutex
	sub        uci.Subscriber
	initErr    error
	analyzed   []int // depths, in call order
	stops      int
	terminates int
}

func (e *fakeEngine) Initialize(context.Context) error { return e.initErr }

func (e *fakeEngine) Analyze(fen string, depth int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.analyzed = append(e.analyzed, depth)
	return nil
}

func (e *fakeEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
}

func (e *fakeEngine) Terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terminates++
}

func (e *fakeEngine) Subscribe(sub uci.Subscriber) { e.sub = sub }

func (e *fakeEngine) emit(ev uci.Event) { e.sub(ev) }

func (e *fakeEngine) terminateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminates
}

func (e *fakeEngine) analyzeDepths() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.analyzed...)
}

type fakeSource struct {
	mu    sync.Mutex
	found bool
	snap  board.Snapshot
}

func (s *fakeSource) Locate(context.Context) bool { return s.found }

func (s *fakeSource) Sample(context.Context) (board.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	accepted bool
	moves    []domain.Move
}

func (x *fakeExecutor) Execute(_ context.Context, move domain.Move) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.moves = append(x.moves, move)
	return x.accepted, nil
}

func (x *fakeExecutor) executed() []domain.Move {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]domain.Move(nil), x.moves...)
}

type fakeLights struct {
	mu     sync.Mutex
	shown  []domain.Move
	clears int
}

func (f *fakeLights) Show(move domain.Move) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, move)
}

func (f *fakeLights) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []assistdto.Event
}

func (n *fakeNotifier) Publish(_ context.Context, ev *assistdto.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, *ev)
	return nil
}

func (n *fakeNotifier) hasStatus(text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ev := range n.events {
		if ev.Type == assistdto.EventStatus && ev.Status == text {
			return true
		}
	}
	return false
}

func (n *fakeNotifier) lastHistory() []assistdto.AnalysisEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Type == assistdto.EventHistory {
			return n.events[i].History
		}
	}
	return nil
}

type harness struct {
	loop     *Loop
	engine   *fakeEngine
	source   *fakeSource
	executor *fakeExecutor
	lights   *fakeLights
	notifier *fakeNotifier
	ctx      context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	snap, err := board.ParseFEN(board.StartingFEN)
	require.NoError(t, err)

	h := &harness{
		engine:   &fakeEngine{},
		source:   &fakeSource{found: true, snap: snap},
		executor: &fakeExecutor{accepted: true},
		lights:   &fakeLights{},
		notifier: &fakeNotifier{},
	}

	catalog, err := msgcat.New("")
	require.NoError(t, err)

	history := analysis.New(analysis.Config{}, nil)

	loop, err := New(Config{
		AnalysisDepth:   15,
		AutoPlayDepth:   2,
		PollInterval:    time.Hour, // ticks never fire; tests drive events directly
		MoveSettleDelay: 20 * time.Millisecond,
	}, h.engine, h.source, h.executor, h.lights, h.notifier, history, catalog, nil)
	require.NoError(t, err)
	h.loop = loop

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func TestActivationFlow(t *testing.T) {
	h := newHarness(t)

	h.loop.Start(h.ctx)
	assert.True(t, h.notifier.hasStatus("Choose your color to begin"))

	h.loop.SelectColor(h.ctx, domain.White)
	assert.Equal(t, []int{15}, h.engine.analyzeDepths())
	assert.True(t, h.notifier.hasStatus("Analyzing position..."))

	h.engine.emit(uci.Event{Kind: uci.EventInfo, Move: "e2e4", ScoreCP: intp(20), Depth: 10})
	eventually(t, func() bool {
		hist := h.notifier.lastHistory()
		return len(hist) == 1 && hist[0].Move == "e2e4"
	}, "info entry reaches the panel")
	assert.True(t, h.notifier.hasStatus("Suggested Move: e2e4"))

	// a deeper report of the same move is a new entry, not a duplicate
	h.engine.emit(uci.Event{Kind: uci.EventInfo, Move: "e2e4", ScoreCP: intp(24), Depth: 15})
	eventually(t, func() bool {
		hist := h.notifier.lastHistory()
		return len(hist) == 2 && hist[0].Depth == 15
	}, "deeper info entry reaches the panel")

	h.engine.emit(uci.Event{Kind: uci.EventBestMove, Move: "e2e4", ScoreCP: intp(22), Depth: 12})
	eventually(t, func() bool {
		hist := h.notifier.lastHistory()
		return len(hist) == 3 && hist[0].Final
	}, "terminal entry reaches the panel")
}

func TestStartWithoutBoard(t *testing.T) {
	h := newHarness(t)
	h.source.found = false

	h.loop.Start(h.ctx)
	assert.True(t, h.notifier.hasStatus("Could not find the chessboard"))

	// the color choice is refused while inactive
	h.loop.SelectColor(h.ctx, domain.White)
	assert.Empty(t, h.engine.analyzeDepths())
}

func TestEngineInitFailure(t *testing.T) {
	h := newHarness(t)
	h.engine.initErr = uci.ErrEngineUnavailable

	h.loop.Start(h.ctx)
	h.loop.SelectColor(h.ctx, domain.White)
	assert.True(t, h.notifier.hasStatus("Could not load the analysis engine"))

	// the failed activation leaves the loop ready for another attempt
	h.engine.initErr = nil
	h.loop.Start(h.ctx)
	h.loop.SelectColor(h.ctx, domain.Black)
	assert.Equal(t, []int{15}, h.engine.analyzeDepths())
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t)

	h.loop.Start(h.ctx)
	h.loop.SelectColor(h.ctx, domain.White)

	h.loop.Stop(h.ctx)
	assert.Equal(t, 1, h.engine.terminateCount())
	assert.True(t, h.notifier.hasStatus("Inactive"))

	h.loop.Stop(h.ctx)
	assert.Equal(t, 1, h.engine.terminateCount(), "second stop must not terminate again")
}

func TestEngineRuntimeFailureDeactivates(t *testing.T) {
	h := newHarness(t)

	h.loop.Start(h.ctx)
	h.loop.SelectColor(h.ctx, domain.White)

	h.engine.emit(uci.Event{Kind: uci.EventError, Err: uci.ErrEngineUnavailable})
	eventually(t, func() bool {
		return h.notifier.hasStatus("Analysis engine stopped - restart the assistant")
	}, "engine failure surfaces to the panel")
	assert.Equal(t, 1, h.engine.terminateCount())
}

func TestAutoPlayCommitsFinalMove(t *testing.T) {
	h := newHarness(t)

	h.loop.Start(h.ctx)
	h.loop.SelectColor(h.ctx, domain.White)
	h.loop.SetAutoPlay(h.ctx, true)

	h.engine.emit(uci.Event{Kind: uci.EventBestMove, Move: "e2e4", ScoreCP: intp(30), Depth: 12})
	eventually(t, func() bool {
		moves := h.executor.executed()
		return len(moves) == 1 && moves[0] == "e2e4"
	}, "terminal entry triggers the auto commit")
	assert.True(t, h.notifier.hasStatus("Auto-played: e2e4"))

	// after the settle delay the loop waits for the opponent
	eventually(t, func() bool {
		return h.notifier.hasStatus("Waiting for opponent...")
	}, "own-move transition after settle delay")
}

func TestResyncReplaysState(t *testing.T) {
	h := newHarness(t)

	h.loop.Start(h.ctx)
	h.loop.SelectColor(h.ctx, domain.White)
	h.engine.emit(uci.Event{Kind: uci.EventInfo, Move: "d2d4", ScoreCP: intp(12), Depth: 8})
	eventually(t, func() bool { return len(h.notifier.lastHistory()) == 1 }, "entry recorded")

	h.notifier.mu.Lock()
	h.notifier.events = nil
	h.notifier.mu.Unlock()

	h.loop.Resync(h.ctx)
	assert.True(t, h.notifier.hasStatus("Analyzing position..."))
	assert.Len(t, h.notifier.lastHistory(), 1)
}
