package engine

import "errors"

var (
	// ErrLoopCeiling is returned when a frame runs more consecutive
	// unmatched iterations than the configured ceiling allows.
	ErrLoopCeiling = errors.New("loop iteration ceiling exceeded")

	// ErrDepthCeiling is returned when nesting pushes the frame stack past
	// the configured depth ceiling.
	ErrDepthCeiling = errors.New("frame depth ceiling exceeded")

	// ErrSessionAborted is returned when a session is canceled at a
	// suspension point.
	ErrSessionAborted = errors.New("session aborted")
)
