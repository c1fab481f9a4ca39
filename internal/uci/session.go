package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

const (
	defaultReadyTimeout = 4 * time.Second
)

// SessionState is the lifecycle of the one engine process an adapter owns.
type SessionState int32

const (
	StateUninitialized SessionState = iota
	StateIdle
	StateAnalyzing
	StateStopped
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "uninitialized"
	}
}

// Options are forwarded to the engine as setoption commands at initialize.
type Options struct {
	Threads int
	HashMB  int
	MultiPV int
}

// EventKind tags the adapter's event stream.
type EventKind int

const (
	EventReady EventKind = iota
	EventInfo
	EventBestMove
	EventError
)

// Event is one engine report. Info carries a partial line's move/score/depth;
// BestMove carries the terminal move with the last known score and depth (the
// bestmove protocol line itself has only the move token).
type Event struct {
	Kind    EventKind
	Move    domain.Move
	ScoreCP *int
	Depth   int
	Err     error
}

// Subscriber receives events synchronously on the adapter's reader goroutine.
type Subscriber func(Event)

// ErrEngineUnavailable is returned when the engine process cannot be created
// or fails its handshake. Not retryable within the session.
var ErrEngineUnavailable = fmt.Errorf("engine unavailable")

// Adapter owns a single analysis-engine process and its line protocol.
// At most one live session per activation period; Terminate then a fresh
// Initialize starts a new one.
type Adapter struct {
	binaryPath string
	opt        Options
	logger     *zap.Logger

	mu     sync.Mutex
	state  SessionState
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	// accumulator for the in-flight search; reset before every Analyze so
	// stale values never leak into the next position's first event
	curMove  domain.Move
	curScore *int
	curDepth int

	subMu sync.RWMutex
	subs  []Subscriber

	readerDone chan struct{}
}

func NewAdapter(binaryPath string, opt Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		binaryPath: binaryPath,
		opt:        opt,
		logger:     logger,
		state:      StateUninitialized,
	}
}

// Subscribe registers an event consumer. Delivery is synchronous and in
// registration order.
func (a *Adapter) Subscribe(sub Subscriber) {
	a.subMu.Lock()
	a.subs = append(a.subs, sub)
	a.subMu.Unlock()
}

func (a *Adapter) State() SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Initialize spawns the engine process and performs the uci/isready handshake.
// On success the session is idle and a Ready event is emitted.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateUninitialized {
		a.mu.Unlock()
		return fmt.Errorf("initialize: session already %s", a.state)
	}
	a.mu.Unlock()

	if _, err := os.Stat(a.binaryPath); err != nil {
		return fmt.Errorf("%w: engine binary check: %v", ErrEngineUnavailable, err)
	}

	cmd := exec.Command(a.binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: create stdin pipe: %v", ErrEngineUnavailable, err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("%w: create stdout pipe: %v", ErrEngineUnavailable, err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return fmt.Errorf("%w: start engine: %v", ErrEngineUnavailable, err)
	}

	a.mu.Lock()
	a.cmd = cmd
	a.stdin = stdin
	a.stdout = bufio.NewReader(stdoutPipe)
	a.mu.Unlock()

	if err := a.handshake(ctx); err != nil {
		a.teardown(StateUninitialized)
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	// the reader starts only after a successful handshake, so readerDone must
	// not exist before this point: Terminate would wait on a loop that never ran
	a.mu.Lock()
	a.state = StateIdle
	a.readerDone = make(chan struct{})
	a.mu.Unlock()

	go a.readLoop()
	a.emit(Event{Kind: EventReady})
	return nil
}

func (a *Adapter) handshake(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := a.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := a.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if err := a.applyOptions(); err != nil {
		return err
	}
	if err := a.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := a.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (a *Adapter) applyOptions() error {
	threads := a.opt.Threads
	if threads <= 0 {
		threads = 1
	}
	hash := a.opt.HashMB
	if hash <= 0 {
		hash = 128
	}
	multipv := a.opt.MultiPV
	if multipv <= 0 {
		multipv = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threads),
		fmt.Sprintf("setoption name Hash value %d\n", hash),
		fmt.Sprintf("setoption name MultiPV value %d\n", multipv),
	}
	for _, cmd := range cmds {
		if err := a.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

// Analyze submits a new search. A prior in-flight search is simply superseded;
// the engine streams results for the newest position. Non-blocking: results
// arrive via the event stream.
func (a *Adapter) Analyze(fen string, depth int) error {
	a.mu.Lock()
	switch a.state {
	case StateIdle, StateAnalyzing:
	default:
		a.mu.Unlock()
		return fmt.Errorf("analyze: session %s", a.state)
	}
	a.curMove = ""
	a.curScore = nil
	a.curDepth = 0
	a.state = StateAnalyzing
	a.mu.Unlock()

	cmd := buildPositionCommand(fen) + fmt.Sprintf("go depth %d\n", depth)
	if err := a.send(cmd); err != nil {
		return fmt.Errorf("send analyze: %w", err)
	}
	return nil
}

// Stop requests early termination of the in-flight search. No-op unless
// analyzing; the engine answers with its usual bestmove line.
func (a *Adapter) Stop() {
	a.mu.Lock()
	analyzing := a.state == StateAnalyzing
	a.mu.Unlock()
	if !analyzing {
		return
	}
	if err := a.send("stop\n"); err != nil {
		a.logger.Warn("engine stop failed", zap.Error(err))
	}
}

// Terminate tears down the process unconditionally. Safe to call multiple
// times; the session returns to uninitialized and later engine output is
// discarded.
func (a *Adapter) Terminate() {
	a.teardown(StateStopped)

	a.mu.Lock()
	done := a.readerDone
	a.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-time.After(defaultReadyTimeout):
		}
	}

	a.mu.Lock()
	a.state = StateUninitialized
	a.cmd = nil
	a.stdin = nil
	a.stdout = nil
	a.readerDone = nil
	a.mu.Unlock()
}

func (a *Adapter) teardown(state SessionState) {
	a.mu.Lock()
	a.state = state
	stdin := a.stdin
	cmd := a.cmd
	a.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}

// readLoop drains the engine's stdout for the session's lifetime, parsing
// lines into events. An unexpected EOF while not stopping is a runtime error.
func (a *Adapter) readLoop() {
	a.mu.Lock()
	reader := a.stdout
	done := a.readerDone
	a.mu.Unlock()
	defer close(done)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			a.mu.Lock()
			stopping := a.state == StateStopped || a.state == StateUninitialized
			if !stopping {
				a.state = StateError
			}
			a.mu.Unlock()
			if !stopping {
				a.logger.Error("engine read failed", zap.Error(err))
				a.emit(Event{Kind: EventError, Err: err})
			}
			return
		}
		a.handleLine(strings.TrimSpace(line))
	}
}

func (a *Adapter) handleLine(line string) {
	switch {
	case strings.HasPrefix(line, "info "):
		move, scoreCP, depth, ok := parseInfo(line)
		if !ok {
			// partial info lines missing score/depth/pv are expected noise
			return
		}
		a.mu.Lock()
		a.curMove = move
		a.curScore = scoreCP
		a.curDepth = depth
		a.mu.Unlock()
		a.emit(Event{Kind: EventInfo, Move: move, ScoreCP: scoreCP, Depth: depth})

	case strings.HasPrefix(line, "bestmove"):
		move, ok := parseBestMove(line)
		a.mu.Lock()
		scoreCP := a.curScore
		depth := a.curDepth
		if a.state == StateAnalyzing {
			a.state = StateIdle
		}
		a.mu.Unlock()
		if !ok {
			// "bestmove (none)" — nothing actionable, never history material
			a.logger.Debug("engine reported no move", zap.String("line", line))
			return
		}
		a.emit(Event{Kind: EventBestMove, Move: move, ScoreCP: scoreCP, Depth: depth})
	}
}

func (a *Adapter) emit(ev Event) {
	a.mu.Lock()
	discarded := a.state == StateStopped || a.state == StateUninitialized
	a.mu.Unlock()
	if discarded {
		return
	}

	a.subMu.RLock()
	subs := make([]Subscriber, len(a.subs))
	copy(subs, a.subs)
	a.subMu.RUnlock()
	for _, sub := range subs {
		if sub != nil {
			sub(ev)
		}
	}
}

func (a *Adapter) send(msg string) error {
	a.mu.Lock()
	stdin := a.stdin
	a.mu.Unlock()
	if stdin == nil {
		return fmt.Errorf("engine stdin closed")
	}
	_, err := io.WriteString(stdin, msg)
	return err
}

// awaitToken is only used during the handshake, before the read loop starts.
func (a *Adapter) awaitToken(ctx context.Context, token string) error {
	type result struct {
		line string
		err  error
	}
	for {
		ch := make(chan result, 1)
		go func() {
			line, err := a.stdout.ReadString('\n')
			ch <- result{line: strings.TrimSpace(line), err: err}
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.err != nil {
				return res.err
			}
			if strings.Contains(res.line, token) {
				return nil
			}
		}
	}
}

func buildPositionCommand(fen string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	sb.WriteString("\n")
	return sb.String()
}
