package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout   = 4 * time.Second
	defaultMoveTimeMillis = 1000
	defaultEventBuffer    = 64
)

var (
	ErrTransport = errors.New("engine transport error")
	ErrClosed    = errors.New("engine adapter closed")
)

type RequestID uint64

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateAnalyzing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateAnalyzing:
		return "analyzing"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

type EventKind int

const (
	EventScore EventKind = iota + 1
	EventBestMove
)

// Event is one parsed engine output, tagged with the request it belongs to.
// For EventBestMove, Score carries the last figure seen during that search
// when HasScore is set.
type Event struct {
	Request  RequestID
	Kind     EventKind
	Score    Score
	HasScore bool
	BestMove string
}

type Options struct {
	ReadyTimeout time.Duration
	EventBuffer  int
	Logger       *zap.Logger
	// Threads and HashMB are sent as setoption after uciok when positive.
	Threads int
	HashMB  int
}

// Transport is the byte stream of one engine worker. Close tears the worker
// down; it may be nil when closing In is enough.
type Transport struct {
	In    io.WriteCloser
	Out   io.Reader
	Close func() error
}

// Adapter drives one long-lived engine worker. Requests never block on the
// engine: every go is answered by exactly one bestmove, so outstanding ids
// are kept in order and each output line is tagged with the oldest one.
type Adapter struct {
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stop   func() error
	logger *zap.Logger
	tuning Options

	writeMu sync.Mutex
	mu      sync.Mutex
	state   State
	nextID  RequestID
	pending []RequestID

	// reader goroutine only
	last    Score
	hasLast bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Start launches the engine binary and completes the handshake.
func Start(ctx context.Context, binaryPath string, opt Options) (*Adapter, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	stopProcess := func() error {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}

	return New(ctx, Transport{In: stdin, Out: stdoutPipe, Close: stopProcess}, opt)
}

// New performs the uci/uciok handshake on an existing transport and starts
// streaming events. The transport is torn down when the handshake fails.
func New(ctx context.Context, tr Transport, opt Options) (*Adapter, error) {
	if tr.In == nil || tr.Out == nil {
		return nil, fmt.Errorf("transport requires both directions")
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := opt.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}

	a := &Adapter{
		stdin:  tr.In,
		stdout: bufio.NewReader(tr.Out),
		stop:   tr.Close,
		logger: logger,
		tuning: opt,
		state:  StateUninitialized,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}

	timeout := opt.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	if err := a.handshake(ctx, timeout); err != nil {
		a.Close()
		return nil, err
	}

	a.mu.Lock()
	a.state = StateReady
	a.mu.Unlock()

	go a.readLoop()
	return a, nil
}

// Events is closed once the worker stops producing output.
func (a *Adapter) Events() <-chan Event { return a.events }

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// RequestAnalysis resets the engine's game state and starts a search of fen
// bounded by budget. Earlier requests are superseded, not cancelled; their
// remaining output still arrives under their own id.
func (a *Adapter) RequestAnalysis(fen string, budget time.Duration) (RequestID, error) {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	// the id is queued before writing so a fast bestmove finds its owner
	a.mu.Lock()
	if a.state == StateClosed {
		a.mu.Unlock()
		return 0, ErrClosed
	}
	a.nextID++
	id := a.nextID
	a.pending = append(a.pending, id)
	a.state = StateAnalyzing
	outstanding := len(a.pending)
	a.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("ucinewgame\n")
	sb.WriteString(buildPositionCommand(fen))
	sb.WriteString(buildGoCommand(budget.Milliseconds()))

	if _, err := io.WriteString(a.stdin, sb.String()); err != nil {
		a.drop(id)
		a.logger.Error("engine_transport_error", zap.String("op", "request"), zap.Uint64("request_id", uint64(id)), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	a.logger.Debug("analysis_request",
		zap.Uint64("request_id", uint64(id)),
		zap.String("fen", fen),
		zap.Int64("movetime_ms", budget.Milliseconds()),
		zap.Int("outstanding", outstanding),
	)
	return id, nil
}

// Close terminates the worker. Pending requests are dropped silently.
func (a *Adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.state = StateClosed
		a.pending = nil
		a.mu.Unlock()

		close(a.done)
		if a.stdin != nil {
			a.stdin.Close()
		}
		if a.stop != nil {
			err = a.stop()
		}
	})
	return err
}

func (a *Adapter) handshake(ctx context.Context, timeout time.Duration) error {
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := io.WriteString(a.stdin, "uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := a.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	for _, cmd := range setOptionCommands(a.tuning) {
		if _, err := io.WriteString(a.stdin, cmd); err != nil {
			return fmt.Errorf("send setoption: %w", err)
		}
	}
	return nil
}

func setOptionCommands(opt Options) []string {
	var out []string
	if opt.Threads > 0 {
		out = append(out, fmt.Sprintf("setoption name Threads value %d\n", opt.Threads))
	}
	if opt.HashMB > 0 {
		out = append(out, fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB))
	}
	return out
}

func (a *Adapter) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := a.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (a *Adapter) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := a.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

func (a *Adapter) readLoop() {
	defer close(a.events)
	for {
		line, err := a.stdout.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if !a.handleLine(trimmed) {
				return
			}
		}
		if err != nil {
			a.transportLost(err)
			return
		}
	}
}

func (a *Adapter) transportLost(err error) {
	a.mu.Lock()
	closing := a.state == StateClosed
	if !closing {
		a.state = StateReady
		a.pending = nil
	}
	a.mu.Unlock()

	if closing {
		return
	}
	a.logger.Error("engine_transport_error", zap.String("op", "read"), zap.Error(err))
}

func (a *Adapter) handleLine(line string) bool {
	parsed := ParseLine(line)
	switch parsed.Kind {
	case LineScore:
		id, ok := a.head()
		if !ok {
			return true
		}
		a.last = parsed.Score
		a.hasLast = true
		return a.emit(Event{Request: id, Kind: EventScore, Score: parsed.Score, HasScore: true})
	case LineBestMove:
		id, ok := a.pop()
		if !ok {
			return true
		}
		ev := Event{Request: id, Kind: EventBestMove, BestMove: parsed.Move, Score: a.last, HasScore: a.hasLast}
		a.last = Score{}
		a.hasLast = false
		return a.emit(ev)
	default:
		return true
	}
}

func (a *Adapter) head() (RequestID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return 0, false
	}
	return a.pending[0], true
}

func (a *Adapter) pop() (RequestID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return 0, false
	}
	id := a.pending[0]
	a.pending = a.pending[1:]
	if len(a.pending) == 0 && a.state == StateAnalyzing {
		a.state = StateReady
	}
	return id, true
}

func (a *Adapter) drop(id RequestID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, p := range a.pending {
		if p == id {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			break
		}
	}
	if len(a.pending) == 0 && a.state == StateAnalyzing {
		a.state = StateReady
	}
}

func (a *Adapter) emit(ev Event) bool {
	select {
	case a.events <- ev:
		return true
	case <-a.done:
		return false
	}
}
