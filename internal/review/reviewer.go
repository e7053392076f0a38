package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/chess/rules"
	"github.com/park285/cheese-review/internal/chess/uci"
	"github.com/park285/cheese-review/internal/evalstore"
	"github.com/park285/cheese-review/internal/timeline"
)

const (
	defaultMoveTime = time.Second
	memoTimeout     = 2 * time.Second
)

var ErrNotRunning = errors.New("review loop not running")

// Analyzer is the engine side of the review: fire-and-forget requests and
// a stream of tagged answers.
type Analyzer interface {
	RequestAnalysis(fen string, budget time.Duration) (uci.RequestID, error)
	Events() <-chan uci.Event
}

type Config struct {
	MoveTime time.Duration
	Debounce time.Duration
	Viewer   analysis.Color
}

type Option func(*Reviewer)

func WithLogger(l *zap.Logger) Option {
	return func(r *Reviewer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMemo primes the bar from earlier settled answers and records new ones.
func WithMemo(repo evalstore.Repository) Option {
	return func(r *Reviewer) { r.memo = repo }
}

// barSample is a score waiting out the debounce window. It is normalised
// for the viewer at the moment it settles.
type barSample struct {
	epoch uint64
	score uci.Score
	ply   int
}

type Arrow struct {
	From string
	To   string
}

// State is the read-only view handed to the presentation layer.
type State struct {
	SessionID        string
	Position         string
	Cursor           int
	Length           int
	HasDeviation     bool
	CheckpointCursor int
	Viewer           analysis.Color
	Bar              float64
	Score            *uci.Score
	ScoreText        string
	Arrow            *Arrow
	Request          uci.RequestID
	UpdatedAt        time.Time
}

// Reviewer routes timeline changes to the engine and engine answers to the
// bar and arrow. Everything it owns is touched only by the Run goroutine.
type Reviewer struct {
	id     string
	rules  rules.Engine
	engine Analyzer
	memo   evalstore.Repository
	logger *zap.Logger
	cfg    Config

	cmds    chan func()
	running chan struct{}
	done    chan struct{}
	runCtx  context.Context

	// loop-owned
	tl      *timeline.Timeline
	viewer  analysis.Color
	current uci.RequestID
	epoch   uint64
	fen     string
	ply     int
	arrow   *Arrow
	score   *uci.Score
	bar     float64
	barSink *analysis.Debouncer[barSample]

	mu   sync.RWMutex
	snap State

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

func New(engine Analyzer, rulesEngine rules.Engine, cfg Config, opts ...Option) *Reviewer {
	if cfg.MoveTime <= 0 {
		cfg.MoveTime = defaultMoveTime
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = analysis.DefaultDebounce
	}
	r := &Reviewer{
		id:      uuid.NewString(),
		rules:   rulesEngine,
		engine:  engine,
		logger:  zap.NewNop(),
		cfg:     cfg,
		cmds:    make(chan func()),
		running: make(chan struct{}),
		done:    make(chan struct{}),
		tl:      timeline.New(rules.StartingPosition),
		viewer:  cfg.Viewer,
		bar:     0.5,
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("review_id", r.id))
	r.barSink = analysis.NewDebouncer(cfg.Debounce, func(v barSample) {
		r.post(func() {
			// the cursor moved while the sample waited
			if v.epoch != r.epoch {
				return
			}
			r.bar = analysis.Normalize(v.score, v.ply, r.viewer)
			r.publish()
		})
	})
	r.snap = r.buildState()
	return r
}

// Run is the control loop. It analyses the starting position, then serves
// commands and engine events until ctx ends.
func (r *Reviewer) Run(ctx context.Context) error {
	r.runCtx = ctx
	close(r.running)
	defer close(r.done)
	defer r.barSink.Stop()

	var events <-chan uci.Event
	if r.engine != nil {
		events = r.engine.Events()
	}
	r.cursorChanged()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-r.cmds:
			fn()
		case ev, ok := <-events:
			if !ok {
				r.logger.Warn("engine_events_closed")
				events = nil
				continue
			}
			r.handleEvent(ev)
		}
	}
}

func (r *Reviewer) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Subscribe registers fn for every published state. fn runs on the control
// loop and must not block.
func (r *Reviewer) Subscribe(fn func(State)) func() {
	r.subMu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn
	r.subMu.Unlock()
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// LoadGame decodes a game record and shows its final position.
func (r *Reviewer) LoadGame(ctx context.Context, record string, viewer analysis.Color) error {
	positions, err := r.rules.DecodeRecord(record)
	if err != nil {
		r.logger.Warn("game_decode_failed", zap.Error(err))
		return err
	}
	return r.LoadPositions(ctx, positions, viewer)
}

func (r *Reviewer) LoadPositions(ctx context.Context, positions []string, viewer analysis.Color) error {
	var loadErr error
	err := r.do(ctx, func() {
		if loadErr = r.tl.Load(positions); loadErr != nil {
			return
		}
		r.viewer = viewer
		r.logger.Info("game_loaded", zap.Int("positions", len(positions)), zap.String("viewer", viewer.String()))
		r.cursorChanged()
	})
	if err != nil {
		return err
	}
	return loadErr
}

func (r *Reviewer) ResetToStart(ctx context.Context) error {
	return r.do(ctx, func() {
		r.tl.Reset(rules.StartingPosition)
		r.cursorChanged()
	})
}

func (r *Reviewer) MoveCursor(ctx context.Context, delta int) error {
	return r.do(ctx, func() {
		if r.tl.Move(delta) {
			r.cursorChanged()
		}
	})
}

func (r *Reviewer) Seek(ctx context.Context, index int) error {
	return r.do(ctx, func() {
		if r.tl.Seek(index) {
			r.cursorChanged()
		}
	})
}

// PlayMove validates the move against the displayed position and appends
// it, branching off the loaded game when needed. Illegal moves report false
// and change nothing.
func (r *Reviewer) PlayMove(ctx context.Context, from, to, promo string) (bool, error) {
	var accepted bool
	err := r.do(ctx, func() {
		next, ok := rules.Validate(r.rules, r.tl.Current(), from, to, promo)
		if !ok {
			r.logger.Debug("move_rejected", zap.String("from", from), zap.String("to", to))
			return
		}
		deviating := !r.tl.HasDeviation()
		r.tl.Append(next)
		if deviating {
			r.logger.Info("deviation_started", zap.Int("cursor", r.tl.Cursor()-1))
		}
		accepted = true
		r.cursorChanged()
	})
	return accepted, err
}

// RestoreCheckpoint returns to the loaded game. Without a deviation it is a
// no-op reporting timeline.ErrNoCheckpoint.
func (r *Reviewer) RestoreCheckpoint(ctx context.Context) error {
	var restoreErr error
	err := r.do(ctx, func() {
		if restoreErr = r.tl.Restore(); restoreErr != nil {
			return
		}
		r.cursorChanged()
	})
	if err != nil {
		return err
	}
	return restoreErr
}

func (r *Reviewer) SetViewer(ctx context.Context, viewer analysis.Color) error {
	return r.do(ctx, func() {
		if r.viewer == viewer {
			return
		}
		r.viewer = viewer
		if r.score != nil {
			r.bar = analysis.Normalize(*r.score, r.ply, r.viewer)
		} else {
			r.bar = 1 - r.bar
		}
		r.publish()
	})
}

func (r *Reviewer) do(ctx context.Context, fn func()) error {
	select {
	case <-r.running:
	case <-ctx.Done():
		return ctx.Err()
	}
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case r.cmds <- wrapped:
	case <-r.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		return ErrNotRunning
	}
}

// post queues fn on the loop without waiting; dropped once the loop ended.
func (r *Reviewer) post(fn func()) {
	go func() {
		select {
		case r.cmds <- fn:
		case <-r.done:
		}
	}()
}

func (r *Reviewer) cursorChanged() {
	r.arrow = nil
	r.score = nil
	r.epoch++
	r.barSink.Cancel()
	r.fen = r.tl.Current()
	ply, err := rules.PlyIndex(r.fen)
	if err != nil {
		ply = r.tl.Cursor()
	}
	r.ply = ply

	r.primeFromMemo(r.epoch, r.fen, r.ply)

	r.current = 0
	if r.engine != nil {
		id, err := r.engine.RequestAnalysis(r.fen, r.cfg.MoveTime)
		if err != nil {
			r.logger.Warn("analysis_request_failed", zap.String("fen", r.fen), zap.Error(err))
		} else {
			r.current = id
		}
	}
	r.publish()
}

func (r *Reviewer) handleEvent(ev uci.Event) {
	if r.current == 0 || ev.Request != r.current {
		return
	}
	switch ev.Kind {
	case uci.EventScore:
		s := ev.Score
		r.score = &s
		r.barSink.Set(barSample{epoch: r.epoch, score: s, ply: r.ply})
	case uci.EventBestMove:
		r.arrow = parseArrow(ev.BestMove)
		if ev.HasScore {
			s := ev.Score
			r.score = &s
		}
		r.remember(ev)
		r.publish()
	}
}

func (r *Reviewer) primeFromMemo(epoch uint64, fen string, ply int) {
	if r.memo == nil || r.runCtx == nil {
		return
	}
	ctx := r.runCtx
	go func() {
		getCtx, cancel := context.WithTimeout(ctx, memoTimeout)
		defer cancel()
		entry, err := r.memo.Get(getCtx, fen)
		if err != nil {
			if !errors.Is(err, evalstore.ErrNotFound) {
				r.logger.Warn("memo_lookup_failed", zap.Error(err))
			}
			return
		}
		if !entry.HasScore {
			return
		}
		r.post(func() {
			// fresh engine output wins over the memo
			if r.epoch != epoch || r.score != nil {
				return
			}
			r.barSink.Set(barSample{epoch: epoch, score: entry.Score, ply: ply})
		})
	}()
}

func (r *Reviewer) remember(ev uci.Event) {
	if r.memo == nil || r.runCtx == nil || ev.BestMove == "" {
		return
	}
	entry := &evalstore.Entry{
		FEN:        r.fen,
		MoveTimeMS: r.cfg.MoveTime.Milliseconds(),
		BestMove:   ev.BestMove,
		HasScore:   ev.HasScore,
		Score:      ev.Score,
		UpdatedAt:  time.Now(),
	}
	ctx := r.runCtx
	go func() {
		putCtx, cancel := context.WithTimeout(ctx, memoTimeout)
		defer cancel()
		if err := r.memo.Put(putCtx, entry); err != nil {
			r.logger.Warn("memo_store_failed", zap.Error(err))
		}
	}()
}

func (r *Reviewer) publish() {
	st := r.buildState()
	r.mu.Lock()
	r.snap = st
	r.mu.Unlock()

	r.subMu.Lock()
	subs := make([]func(State), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()
	for _, fn := range subs {
		fn(st)
	}
}

func (r *Reviewer) buildState() State {
	st := State{
		SessionID:        r.id,
		Position:         r.tl.Current(),
		Cursor:           r.tl.Cursor(),
		Length:           r.tl.Len(),
		HasDeviation:     r.tl.HasDeviation(),
		CheckpointCursor: -1,
		Viewer:           r.viewer,
		Bar:              r.bar,
		Request:          r.current,
		UpdatedAt:        time.Now(),
	}
	if cp, ok := r.tl.Checkpoint(); ok {
		st.CheckpointCursor = cp.Cursor
	}
	if r.score != nil {
		s := *r.score
		st.Score = &s
		st.ScoreText = analysis.FormatScore(s, r.ply)
	}
	if r.arrow != nil {
		a := *r.arrow
		st.Arrow = &a
	}
	return st
}

func parseArrow(move string) *Arrow {
	if len(move) < 4 {
		return nil
	}
	return &Arrow{From: move[0:2], To: move[2:4]}
}

func (s State) String() string {
	return fmt.Sprintf("cursor=%d/%d bar=%.3f deviation=%v", s.Cursor, s.Length, s.Bar, s.HasDeviation)
}
