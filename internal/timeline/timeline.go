package timeline

import (
	"errors"
)

var (
	ErrNoCheckpoint  = errors.New("timeline has no checkpoint")
	ErrEmptyTimeline = errors.New("timeline requires at least one position")
)

// Position is an encoded board state (FEN). Never mutated once stored.
type Position = string

// Checkpoint is the state saved right before the first own move diverged
// from the loaded sequence.
type Checkpoint struct {
	Positions []Position
	Cursor    int
}

// Timeline is not safe for concurrent use; the review loop owns it.
type Timeline struct {
	positions  []Position
	cursor     int
	checkpoint *Checkpoint
}

func New(base Position) *Timeline {
	return &Timeline{positions: []Position{base}}
}

// Load replaces the sequence and parks the cursor on the last position.
func (t *Timeline) Load(positions []Position) error {
	if len(positions) == 0 {
		return ErrEmptyTimeline
	}
	t.positions = append([]Position(nil), positions...)
	t.cursor = len(t.positions) - 1
	t.checkpoint = nil
	return nil
}

func (t *Timeline) Reset(base Position) {
	t.positions = []Position{base}
	t.cursor = 0
	t.checkpoint = nil
}

// Move shifts the cursor by delta, clamping silently at both ends.
func (t *Timeline) Move(delta int) bool {
	return t.Seek(t.cursor + delta)
}

func (t *Timeline) Seek(index int) bool {
	next := clamp(index, 0, len(t.positions)-1)
	if next == t.cursor {
		return false
	}
	t.cursor = next
	return true
}

// Append drops everything after the cursor and pushes pos as the new tip.
// The first divergence saves a checkpoint; later divergences can only move
// the saved cursor earlier, the saved positions stay the loaded reference.
func (t *Timeline) Append(pos Position) {
	if t.checkpoint == nil {
		t.checkpoint = &Checkpoint{
			Positions: append([]Position(nil), t.positions...),
			Cursor:    t.cursor,
		}
	} else if t.cursor < t.checkpoint.Cursor {
		t.checkpoint.Cursor = t.cursor
	}

	kept := make([]Position, t.cursor+1, t.cursor+2)
	copy(kept, t.positions[:t.cursor+1])
	t.positions = append(kept, pos)
	t.cursor = len(t.positions) - 1
}

func (t *Timeline) Restore() error {
	if t.checkpoint == nil {
		return ErrNoCheckpoint
	}
	t.positions = t.checkpoint.Positions
	t.cursor = clamp(t.checkpoint.Cursor, 0, len(t.positions)-1)
	t.checkpoint = nil
	return nil
}

func (t *Timeline) HasDeviation() bool { return t.checkpoint != nil }

func (t *Timeline) Current() Position { return t.positions[t.cursor] }

func (t *Timeline) Cursor() int { return t.cursor }

func (t *Timeline) Len() int { return len(t.positions) }

func (t *Timeline) Positions() []Position {
	return append([]Position(nil), t.positions...)
}

func (t *Timeline) Checkpoint() (Checkpoint, bool) {
	if t.checkpoint == nil {
		return Checkpoint{}, false
	}
	return Checkpoint{
		Positions: append([]Position(nil), t.checkpoint.Positions...),
		Cursor:    t.checkpoint.Cursor,
	}, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
