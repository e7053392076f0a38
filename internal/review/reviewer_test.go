package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/chess/rules"
	"github.com/park285/cheese-review/internal/chess/uci"
	"github.com/park285/cheese-review/internal/evalstore"
	"github.com/park285/cheese-review/internal/timeline"
)

type request struct {
	id  uci.RequestID
	fen string
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	next     uci.RequestID
	requests []request
	fail     bool
	events   chan uci.Event
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{events: make(chan uci.Event, 16)}
}

func (f *fakeAnalyzer) RequestAnalysis(fen string, _ time.Duration) (uci.RequestID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, uci.ErrTransport
	}
	f.next++
	f.requests = append(f.requests, request{id: f.next, fen: fen})
	return f.next, nil
}

func (f *fakeAnalyzer) Events() <-chan uci.Event { return f.events }

func (f *fakeAnalyzer) last() request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return request{}
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeAnalyzer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func startReviewer(t *testing.T, engine Analyzer, opts ...Option) *Reviewer {
	t.Helper()
	return startReviewerWith(t, engine, Config{Debounce: 30 * time.Millisecond}, opts...)
}

func startReviewerWith(t *testing.T, engine Analyzer, cfg Config, opts ...Option) *Reviewer {
	t.Helper()
	r := New(engine, rules.Standard{}, cfg, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return r
}

func gamePositions(t *testing.T) []string {
	t.Helper()
	positions, err := rules.Standard{}.DecodeRecord("1. e4 e5 2. Nf3 *")
	require.NoError(t, err)
	require.Len(t, positions, 4)
	return positions
}

func TestRunAnalysesStartingPosition(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewer(t, engine)

	require.Eventually(t, func() bool { return engine.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, rules.StartingPosition, engine.last().fen)
	assert.Equal(t, 0.5, r.Snapshot().Bar)
	assert.Equal(t, 1, r.Snapshot().Length)
}

func TestLoadAndBranchScenario(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewer(t, engine)
	ctx := context.Background()
	positions := gamePositions(t)

	require.NoError(t, r.LoadPositions(ctx, positions, analysis.White))
	st := r.Snapshot()
	assert.Equal(t, 3, st.Cursor)
	assert.Equal(t, positions[3], st.Position)
	assert.Equal(t, positions[3], engine.last().fen)

	require.NoError(t, r.MoveCursor(ctx, -2))
	st = r.Snapshot()
	assert.Equal(t, 1, st.Cursor)
	assert.Equal(t, positions[1], engine.last().fen)

	ok, err := r.PlayMove(ctx, "d7", "d5", "")
	require.NoError(t, err)
	require.True(t, ok)

	st = r.Snapshot()
	assert.Equal(t, 3, st.Length)
	assert.Equal(t, 2, st.Cursor)
	assert.True(t, st.HasDeviation)
	assert.Equal(t, 1, st.CheckpointCursor)
	assert.Equal(t, st.Position, engine.last().fen)

	require.NoError(t, r.RestoreCheckpoint(ctx))
	st = r.Snapshot()
	assert.Equal(t, 4, st.Length)
	assert.Equal(t, 1, st.Cursor)
	assert.False(t, st.HasDeviation)
	assert.Equal(t, positions[1], st.Position)
	assert.Equal(t, positions[1], engine.last().fen)
}

func TestIllegalMoveChangesNothing(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewer(t, engine)
	ctx := context.Background()
	require.NoError(t, r.LoadPositions(ctx, gamePositions(t), analysis.White))
	before := engine.count()

	ok, err := r.PlayMove(ctx, "e2", "e5", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, engine.count())
	assert.False(t, r.Snapshot().HasDeviation)
	assert.Equal(t, 4, r.Snapshot().Length)
}

func TestRestoreWithoutCheckpoint(t *testing.T) {
	r := startReviewer(t, newFakeAnalyzer())
	err := r.RestoreCheckpoint(context.Background())
	assert.ErrorIs(t, err, timeline.ErrNoCheckpoint)
}

func TestLoadGameRejectsMalformedRecord(t *testing.T) {
	r := startReviewer(t, newFakeAnalyzer())
	err := r.LoadGame(context.Background(), "1. e4 e5 2. Ke3 *", analysis.White)
	assert.ErrorIs(t, err, rules.ErrMalformedRecord)
	assert.Equal(t, rules.StartingPosition, r.Snapshot().Position)
}

func TestStaleEventsAreIgnored(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewer(t, engine)
	ctx := context.Background()
	require.NoError(t, r.LoadPositions(ctx, gamePositions(t), analysis.White))

	stale := engine.last().id
	require.NoError(t, r.MoveCursor(ctx, -1))
	current := engine.last().id
	require.NotEqual(t, stale, current)

	engine.events <- uci.Event{Request: stale, Kind: uci.EventScore, Score: uci.Centipawn(900)}
	engine.events <- uci.Event{Request: stale, Kind: uci.EventBestMove, BestMove: "g1f3"}
	engine.events <- uci.Event{Request: current, Kind: uci.EventBestMove, BestMove: "g8f6"}

	require.Eventually(t, func() bool { return r.Snapshot().Arrow != nil }, time.Second, 5*time.Millisecond)
	st := r.Snapshot()
	assert.Equal(t, &Arrow{From: "g8", To: "f6"}, st.Arrow)
	assert.Nil(t, st.Score)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0.5, r.Snapshot().Bar)
}

func TestNavigationClearsArrow(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewer(t, engine)
	ctx := context.Background()
	require.NoError(t, r.LoadPositions(ctx, gamePositions(t), analysis.White))

	engine.events <- uci.Event{Request: engine.last().id, Kind: uci.EventBestMove, BestMove: "b8c6"}
	require.Eventually(t, func() bool { return r.Snapshot().Arrow != nil }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.MoveCursor(ctx, -1))
	assert.Nil(t, r.Snapshot().Arrow)

	before := engine.count()
	require.NoError(t, r.MoveCursor(ctx, 100))
	require.NoError(t, r.MoveCursor(ctx, 100))
	assert.Equal(t, before+1, engine.count())
}

func TestBarPublishesOnlySettledScore(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewer(t, engine)
	require.Eventually(t, func() bool { return engine.count() == 1 }, time.Second, 5*time.Millisecond)

	var (
		mu   sync.Mutex
		bars []float64
	)
	cancel := r.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		if len(bars) == 0 || bars[len(bars)-1] != st.Bar {
			bars = append(bars, st.Bar)
		}
	})
	defer cancel()

	id := engine.last().id
	engine.events <- uci.Event{Request: id, Kind: uci.EventScore, Score: uci.Centipawn(50)}
	engine.events <- uci.Event{Request: id, Kind: uci.EventScore, Score: uci.Centipawn(-9999)}

	final := analysis.Normalize(uci.Centipawn(-9999), 0, analysis.White)
	require.Eventually(t, func() bool { return r.Snapshot().Bar == final }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []float64{final}, bars)
	assert.Equal(t, "-99.99", r.Snapshot().ScoreText)
}

func TestSetViewerFlipsBar(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewer(t, engine)
	ctx := context.Background()
	require.Eventually(t, func() bool { return engine.count() == 1 }, time.Second, 5*time.Millisecond)

	engine.events <- uci.Event{Request: engine.last().id, Kind: uci.EventScore, Score: uci.Centipawn(300)}
	white := analysis.Normalize(uci.Centipawn(300), 0, analysis.White)
	require.Eventually(t, func() bool { return r.Snapshot().Bar == white }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.SetViewer(ctx, analysis.Black))
	black := analysis.Normalize(uci.Centipawn(300), 0, analysis.Black)
	require.Eventually(t, func() bool { return r.Snapshot().Bar == black }, time.Second, 5*time.Millisecond)
	assert.Equal(t, analysis.Black, r.Snapshot().Viewer)
}

func TestNavigationDropsPendingBar(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewerWith(t, engine, Config{Debounce: 150 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, r.LoadPositions(ctx, gamePositions(t), analysis.White))
	engine.events <- uci.Event{Request: engine.last().id, Kind: uci.EventScore, Score: uci.Centipawn(900)}
	require.Eventually(t, func() bool { return len(engine.events) == 0 }, time.Second, time.Millisecond)

	require.NoError(t, r.MoveCursor(ctx, -1))
	require.NoError(t, r.SetViewer(ctx, analysis.Black))
	current := engine.last().id

	time.Sleep(300 * time.Millisecond)
	st := r.Snapshot()
	assert.Equal(t, 0.5, st.Bar)
	assert.Nil(t, st.Score)
	assert.Equal(t, current, st.Request)
	assert.Equal(t, analysis.Black, st.Viewer)
}

func TestPendingBarSettlesInNewPerspective(t *testing.T) {
	engine := newFakeAnalyzer()
	r := startReviewer(t, engine)
	ctx := context.Background()
	require.Eventually(t, func() bool { return engine.count() == 1 }, time.Second, 5*time.Millisecond)

	engine.events <- uci.Event{Request: engine.last().id, Kind: uci.EventScore, Score: uci.Centipawn(300)}
	require.NoError(t, r.SetViewer(ctx, analysis.Black))

	black := analysis.Normalize(uci.Centipawn(300), 0, analysis.Black)
	require.Eventually(t, func() bool { return r.Snapshot().Bar == black }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, black, r.Snapshot().Bar)
}

func TestRequestFailureKeepsNavigating(t *testing.T) {
	engine := newFakeAnalyzer()
	engine.fail = true
	r := startReviewer(t, engine)
	ctx := context.Background()

	require.NoError(t, r.LoadPositions(ctx, gamePositions(t), analysis.White))
	require.NoError(t, r.MoveCursor(ctx, -1))
	st := r.Snapshot()
	assert.Equal(t, 2, st.Cursor)
	assert.Zero(t, st.Request)
}

func TestMemoPrimesBarAndRecordsBestMove(t *testing.T) {
	engine := newFakeAnalyzer()
	memo := evalstore.NewMemoryRepository()
	ctx := context.Background()
	positions := gamePositions(t)
	require.NoError(t, memo.Put(ctx, &evalstore.Entry{FEN: positions[3], MoveTimeMS: 1000, BestMove: "b8c6", HasScore: true, Score: uci.Centipawn(-40)}))

	r := startReviewer(t, engine, WithMemo(memo))
	require.NoError(t, r.LoadPositions(ctx, positions, analysis.White))

	primed := analysis.Normalize(uci.Centipawn(-40), 3, analysis.White)
	require.Eventually(t, func() bool { return r.Snapshot().Bar == primed }, time.Second, 5*time.Millisecond)
	assert.Nil(t, r.Snapshot().Arrow)

	require.NoError(t, r.MoveCursor(ctx, -1))
	engine.events <- uci.Event{Request: engine.last().id, Kind: uci.EventBestMove, BestMove: "g1f3", HasScore: true, Score: uci.Centipawn(35)}
	require.Eventually(t, func() bool {
		e, err := memo.Get(ctx, positions[2])
		return err == nil && e.BestMove == "g1f3"
	}, time.Second, 5*time.Millisecond)
}

func TestCommandsAfterShutdown(t *testing.T) {
	r := New(newFakeAnalyzer(), rules.Standard{}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	cancel()
	require.True(t, errors.Is(<-errCh, context.Canceled))

	err := r.MoveCursor(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotRunning)
}
