// Package orchestrator wires the watcher, the engine adapter, and the
// analysis history into the activation state machine. All mutable state is
// owned by a single goroutine; the panel, the engine reader, and the delay
// timers reach it only through channels.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/analysis"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/autoplay"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/board"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/metrics"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/msgcat"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/uci"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/watcher"
	"github.com/nolancacheux/AI-Chess-Assistant/pkg/assistdto"
)

// Phase is the activation state machine.
type Phase int

const (
	PhaseInactive Phase = iota
	PhaseAwaitingColor
	PhaseInitializing
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingColor:
		return "awaiting_color"
	case PhaseInitializing:
		return "initializing"
	case PhaseActive:
		return "active"
	default:
		return "inactive"
	}
}

// Engine is the analysis-engine surface the loop drives.
type Engine interface {
	Initialize(ctx context.Context) error
	Analyze(fen string, depth int) error
	Stop()
	Terminate()
	Subscribe(uci.Subscriber)
}

// PositionSource locates and samples the external board.
type PositionSource interface {
	Locate(ctx context.Context) bool
	Sample(ctx context.Context) (board.Snapshot, error)
}

// MoveExecutor dispatches one move to the external board.
type MoveExecutor interface {
	Execute(ctx context.Context, move domain.Move) (bool, error)
}

// Highlighter drives the page's move highlight. Fire-and-forget.
type Highlighter interface {
	Show(move domain.Move)
	Clear()
}

// Notifier pushes events to the presentation layer.
type Notifier interface {
	Publish(ctx context.Context, ev *assistdto.Event) error
}

type Config struct {
	AnalysisDepth        int
	AutoPlayDepth        int
	PollInterval         time.Duration
	AutoPlayAnalyzeDelay time.Duration
	AutoPlayCommitDelay  time.Duration
	MoveSettleDelay      time.Duration
	CacheSize            int
}

func (c Config) withDefaults() Config {
	if c.AnalysisDepth <= 0 {
		c.AnalysisDepth = 15
	}
	if c.AutoPlayDepth <= 0 {
		c.AutoPlayDepth = 2
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.AutoPlayAnalyzeDelay <= 0 {
		c.AutoPlayAnalyzeDelay = 100 * time.Millisecond
	}
	if c.AutoPlayCommitDelay <= 0 {
		c.AutoPlayCommitDelay = 500 * time.Millisecond
	}
	if c.MoveSettleDelay <= 0 {
		c.MoveSettleDelay = 800 * time.Millisecond
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	return c
}

type Loop struct {
	cfg      Config
	engine   Engine
	source   PositionSource
	executor MoveExecutor
	lights   Highlighter
	notifier Notifier
	watch    *watcher.Watcher
	history  *analysis.History
	catalog  *msgcat.Catalog
	logger   *zap.Logger

	cmdCh      chan func()
	engineEvCh chan uci.Event
	stopped    chan struct{}
	accepting  atomic.Bool

	// loop-goroutine state; never read or written elsewhere
	phase        Phase
	turn         domain.TurnState
	autoPlay     bool
	activationID string
	lastSnapshot board.Snapshot
	bestCache    *lru.Cache[string, domain.Move]
	pollTicker   *time.Ticker
	pollC        <-chan time.Time
}

func New(cfg Config, engine Engine, source PositionSource, executor MoveExecutor,
	lights Highlighter, notifier Notifier, history *analysis.History,
	catalog *msgcat.Catalog, logger *zap.Logger) (*Loop, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	cache, err := lru.New[string, domain.Move](cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:        cfg,
		engine:     engine,
		source:     source,
		executor:   executor,
		lights:     lights,
		notifier:   notifier,
		watch:      watcher.New(source, logger),
		history:    history,
		catalog:    catalog,
		logger:     logger,
		cmdCh:      make(chan func()),
		engineEvCh: make(chan uci.Event, 64),
		stopped:    make(chan struct{}),
		bestCache:  cache,
	}

	history.SetStopRequester(engine.Stop)
	engine.Subscribe(l.forwardEngineEvent)
	return l, nil
}

// forwardEngineEvent runs on the engine adapter's reader goroutine. Events are
// dropped while no activation accepts them, so a terminating engine can never
// wedge the loop.
func (l *Loop) forwardEngineEvent(ev uci.Event) {
	if !l.accepting.Load() {
		return
	}
	select {
	case l.engineEvCh <- ev:
	case <-l.stopped:
	}
}

// Run owns every state mutation. It returns when ctx is cancelled, after a
// final deactivation.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			l.deactivate(ctx)
			return
		case fn := <-l.cmdCh:
			fn()
		case ev := <-l.engineEvCh:
			l.handleEngineEvent(ctx, ev)
		case <-l.pollC:
			l.handlePollTick(ctx)
		}
	}
}

// do posts fn to the loop goroutine and waits for it to run.
func (l *Loop) do(fn func()) {
	done := make(chan struct{})
	select {
	case l.cmdCh <- func() { fn(); close(done) }:
	case <-l.stopped:
		return
	}
	select {
	case <-done:
	case <-l.stopped:
	}
}

// post schedules fn on the loop goroutine without waiting. Used by the delay
// timers.
func (l *Loop) post(fn func()) {
	select {
	case l.cmdCh <- fn:
	case <-l.stopped:
	}
}

// afterActivation runs fn on the loop goroutine after d, but only if the same
// activation is still live by then.
func (l *Loop) afterActivation(d time.Duration, activationID string, fn func()) {
	time.AfterFunc(d, func() {
		l.post(func() {
			if l.phase != PhaseActive || l.activationID != activationID {
				return
			}
			fn()
		})
	})
}

// Start begins an activation: confirm a board exists, then wait for the color
// choice.
func (l *Loop) Start(ctx context.Context) {
	l.do(func() {
		if l.phase != PhaseInactive {
			return
		}
		if !l.source.Locate(ctx) {
			l.logger.Warn("board not found")
			l.publishStatus(ctx, "status.board_not_found", nil)
			return
		}
		l.phase = PhaseAwaitingColor
		l.publishStatus(ctx, "status.awaiting_color", nil)
	})
}

// SelectColor finishes activation: bring up the engine, seed the turn state,
// start polling.
func (l *Loop) SelectColor(ctx context.Context, color domain.Color) {
	l.do(func() {
		if l.phase != PhaseAwaitingColor || !color.Valid() {
			return
		}
		l.phase = PhaseInitializing
		l.publishStatus(ctx, "status.initializing", nil)

		l.accepting.Store(true)
		if err := l.engine.Initialize(ctx); err != nil {
			l.accepting.Store(false)
			l.logger.Error("engine initialize failed", zap.Error(err))
			l.phase = PhaseInactive
			l.publishStatus(ctx, "status.engine_unavailable", nil)
			return
		}

		l.activationID = uuid.NewString()
		metrics.ActivationsTotal.Inc()
		l.turn.Reset()
		l.turn.ActiveColor = color
		l.history.Clear()
		l.bestCache.Purge()

		if snap, err := l.source.Sample(ctx); err == nil {
			l.lastSnapshot = snap
			l.turn.LastKnownPosition = snap.Position
			l.turn.LastCombined = snap.Combined()
			if err := l.engine.Analyze(snap.FEN, l.cfg.AnalysisDepth); err != nil {
				l.logger.Warn("initial analyze failed", zap.Error(err))
			}
		} else {
			// transient: the first successful poll classifies a turn start
			l.logger.Warn("initial board sample failed", zap.Error(err))
		}

		l.phase = PhaseActive
		l.pollTicker = time.NewTicker(l.cfg.PollInterval)
		l.pollC = l.pollTicker.C
		l.publishStatus(ctx, "status.analyzing", nil)
		l.logger.Info("activated",
			zap.String("activation", l.activationID),
			zap.String("color", string(color)))
	})
}

// Stop deactivates. Safe to call at any time, in any phase, repeatedly.
func (l *Loop) Stop(ctx context.Context) {
	l.do(func() { l.deactivate(ctx) })
}

// SetAutoPlay toggles automatic move execution.
func (l *Loop) SetAutoPlay(ctx context.Context, enabled bool) {
	l.do(func() {
		if l.autoPlay == enabled {
			return
		}
		l.autoPlay = enabled
		key := "status.autoplay_off"
		if enabled {
			key = "status.autoplay_on"
		}
		l.publishStatus(ctx, key, nil)
	})
}

// Resync replays the current status and history, e.g. after a panel
// reconnect.
func (l *Loop) Resync(ctx context.Context) {
	l.do(func() {
		l.publishStatus(ctx, phaseStatusKey(l.phase, l.turn.WaitingForOpponent), nil)
		l.publishHistory(ctx)
	})
}

func phaseStatusKey(p Phase, waiting bool) string {
	switch p {
	case PhaseAwaitingColor:
		return "status.awaiting_color"
	case PhaseInitializing:
		return "status.initializing"
	case PhaseActive:
		if waiting {
			return "status.waiting"
		}
		return "status.analyzing"
	default:
		return "status.inactive"
	}
}

func (l *Loop) deactivate(ctx context.Context) {
	if l.phase == PhaseInactive {
		return
	}
	wasActive := l.phase == PhaseActive
	l.phase = PhaseInactive
	l.accepting.Store(false)
	if l.pollTicker != nil {
		l.pollTicker.Stop()
		l.pollTicker = nil
		l.pollC = nil
	}
	if wasActive || l.activationID != "" {
		l.engine.Terminate()
	}
	l.history.Clear()
	l.bestCache.Purge()
	l.lights.Clear()
	l.turn.Reset()
	l.lastSnapshot = board.Snapshot{}
	l.activationID = ""
	l.autoPlay = false
	l.publishStatus(ctx, "status.inactive", nil)
	l.logger.Info("deactivated")
}

// forceInactive is deactivation driven by a fatal engine failure: an engine in
// an unknown state must not be trusted with further analysis.
func (l *Loop) forceInactive(ctx context.Context, err error) {
	l.logger.Error("engine runtime failure, deactivating", zap.Error(err))
	l.deactivate(ctx)
	l.publishStatus(ctx, "status.engine_error", nil)
}

func (l *Loop) handlePollTick(ctx context.Context) {
	if l.phase != PhaseActive {
		return
	}
	kind, snap, err := l.watch.Poll(ctx, &l.turn)
	if err != nil {
		// transient collaborator failure; the next tick retries
		l.logger.Warn("board poll failed", zap.Error(err))
		return
	}
	metrics.PollsTotal.WithLabelValues(kind.String()).Inc()

	switch kind {
	case watcher.NoChange:
		return
	case watcher.OpponentMoved:
		l.lastSnapshot = snap
		l.onOpponentMoved(ctx, snap)
	case watcher.OwnMoveCompleted:
		l.lastSnapshot = snap
		l.onOwnMoveCompleted(ctx)
	case watcher.TurnStart:
		l.lastSnapshot = snap
		l.onTurnStart(ctx, snap)
	}
}

func (l *Loop) onOpponentMoved(ctx context.Context, snap board.Snapshot) {
	l.history.Clear()
	l.turn.WaitingForOpponent = false
	l.turn.LastOpponentMoveAt = time.Now()
	l.lights.Clear()

	if cached, ok := l.bestCache.Get(snap.Combined()); ok {
		// repeated position inside this activation: surface the known best
		// move immediately while the engine recomputes
		metrics.CacheHitsTotal.Inc()
		l.lights.Show(cached)
		l.publishStatus(ctx, "status.suggestion", map[string]string{"Move": cached.String()})
	}

	if err := l.engine.Analyze(snap.FEN, l.cfg.AnalysisDepth); err != nil {
		l.logger.Warn("analyze failed", zap.Error(err))
	}
	l.publishStatus(ctx, "status.analyzing", nil)

	if !l.autoPlay {
		return
	}
	id := l.activationID
	fen := snap.FEN
	l.afterActivation(l.cfg.AutoPlayAnalyzeDelay, id, func() {
		// shallow second search to get a committable move quickly
		if err := l.engine.Analyze(fen, l.cfg.AutoPlayDepth); err != nil {
			l.logger.Warn("autoplay analyze failed", zap.Error(err))
		}
	})
	l.afterActivation(l.cfg.AutoPlayCommitDelay, id, func() {
		l.tryAutoCommit(ctx)
	})
}

func (l *Loop) onOwnMoveCompleted(ctx context.Context) {
	l.turn.WaitingForOpponent = true
	l.publishStatus(ctx, "status.waiting", nil)
}

func (l *Loop) onTurnStart(ctx context.Context, snap board.Snapshot) {
	l.history.Clear()
	l.turn.WaitingForOpponent = false
	if err := l.engine.Analyze(snap.FEN, l.cfg.AnalysisDepth); err != nil {
		l.logger.Warn("analyze failed", zap.Error(err))
	}
	l.publishStatus(ctx, "status.analyzing", nil)
}

func (l *Loop) handleEngineEvent(ctx context.Context, ev uci.Event) {
	if l.phase != PhaseActive {
		return
	}
	switch ev.Kind {
	case uci.EventReady:
		l.logger.Debug("engine ready")
	case uci.EventError:
		l.forceInactive(ctx, ev.Err)
	case uci.EventInfo, uci.EventBestMove:
		final := ev.Kind == uci.EventBestMove
		metrics.EngineEventsTotal.WithLabelValues(eventLabel(ev.Kind)).Inc()
		if !l.history.Add(ev.Move, ev.ScoreCP, ev.Depth, final) {
			metrics.HistoryRejectionsTotal.Inc()
			return
		}
		l.onEntryAccepted(ctx, final)
	}
}

func eventLabel(k uci.EventKind) string {
	switch k {
	case uci.EventReady:
		return "ready"
	case uci.EventInfo:
		return "info"
	case uci.EventBestMove:
		return "bestmove"
	default:
		return "error"
	}
}

func (l *Loop) onEntryAccepted(ctx context.Context, final bool) {
	best, ok := l.history.LatestBestMove()
	if ok {
		l.lights.Show(best.Move)
		l.publishStatus(ctx, "status.suggestion", map[string]string{"Move": best.Move.String()})
	}
	l.publishHistory(ctx)

	if final && ok {
		l.bestCache.Add(l.lastSnapshot.Combined(), best.Move)
	}
	if final && l.autoPlay && !l.turn.WaitingForOpponent {
		l.tryAutoCommit(ctx)
	}
}

// tryAutoCommit asks the policy for a move and, when one exists, executes it
// and schedules the own-move transition after the settle delay.
func (l *Loop) tryAutoCommit(ctx context.Context) {
	if l.phase != PhaseActive || !l.autoPlay || l.turn.WaitingForOpponent {
		return
	}

	snap := l.lastSnapshot
	move, decision := autoplay.SelectMove(l.history, l.turn, l.cfg.AutoPlayDepth, snap.IsGameOver)
	switch decision {
	case autoplay.GameOver:
		l.autoPlay = false
		l.publishStatus(ctx, "status.game_over", nil)
		return
	case autoplay.None:
		return
	}

	accepted, err := l.executor.Execute(ctx, move)
	if err != nil || !accepted {
		// transient: the executor could not land the move; wait for the next
		// trigger rather than failing the activation
		l.logger.Warn("autoplay execute failed",
			zap.String("move", move.String()),
			zap.Bool("accepted", accepted),
			zap.Error(err))
		return
	}

	metrics.AutoPlayCommitsTotal.Inc()
	l.publishStatus(ctx, "status.autoplay_move", map[string]string{"Move": move.String()})
	l.logger.Info("autoplay move executed",
		zap.String("activation", l.activationID),
		zap.String("move", move.String()))

	// the executor owns the own-move transition: signal it only after the
	// host page has had time to animate, instead of racing the next poll
	id := l.activationID
	l.afterActivation(l.cfg.MoveSettleDelay, id, func() {
		if snap, err := l.source.Sample(ctx); err == nil {
			l.lastSnapshot = snap
			l.turn.LastKnownPosition = snap.Position
			l.turn.LastCombined = snap.Combined()
		}
		l.onOwnMoveCompleted(ctx)
	})
}
