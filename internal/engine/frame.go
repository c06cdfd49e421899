package engine

import (
	"github.com/BrainbaseHQ/lotus-prompt/api"
	"github.com/BrainbaseHQ/lotus-prompt/script"
)

// Frame is one active instantiation of a loop. Bindings are local to the
// current iteration and never outlive it unless the script copies them
// into the session state store. The resume slice holds the remainder of
// an until-block that is waiting for a nested loop to finish.
type Frame struct {
	loop       *script.Loop
	parent     *Frame
	depth      int
	iterations int
	bindings   map[string]any
	resume     []script.Statement
	turn       *api.TurnResult
}

func newFrame(loop *script.Loop, parent *Frame) *Frame {
	depth := 1
	if parent != nil {
		depth = parent.depth + 1
	}
	return &Frame{
		loop:     loop,
		parent:   parent,
		depth:    depth,
		bindings: make(map[string]any),
	}
}

// lastTurn returns the most recent exchange result visible from this
// frame, walking up to the parent when the frame has not exchanged yet.
func (f *Frame) lastTurn() *api.TurnResult {
	for frame := f; frame != nil; frame = frame.parent {
		if frame.turn != nil {
			return frame.turn
		}
	}
	return nil
}

// reset prepares the frame for a fresh iteration: bindings are
// discarded, the exchange result is cleared.
func (f *Frame) reset() {
	f.bindings = make(map[string]any)
	f.turn = nil
}

// signal is the value returned by block execution that drives explicit
// frame-stack unwinding, instead of relying on host-language stack
// unwinding.
type signal int

const (
	// sigFallthrough: the block ran to completion without a control
	// statement. Treated identically to an explicit continue.
	sigFallthrough signal = iota
	sigContinue
	sigBreak
	// sigPush: a nested loop statement pushed a child frame; the current
	// frame's resume slice holds the rest of its block.
	sigPush
	sigTransfer
)
