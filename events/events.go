// Package events defines the observable event stream of a session:
// everything that crosses the boundary between the engine and the
// outside world is reported here. Hooks subscribe through a broker and
// receive callbacks in session order.
package events

import (
	"context"

	"github.com/BrainbaseHQ/lotus-prompt/api"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Event is a session lifecycle or side-effect notification.
type Event interface {
	event()
}

// Say reports a one-directional agent utterance.
type Say struct {
	SessionID uuid.UUID       `json:"session_id"`
	Message   string          `json:"message"`
	Exact     bool            `json:"exact"`
	Model     string          `json:"model,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (Say) event() {}

// UserMessage reports a user-side message observed by the exchanger.
type UserMessage struct {
	SessionID uuid.UUID       `json:"session_id"`
	Content   string          `json:"content"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (UserMessage) event() {}

// Turn reports a completed exchange and the iteration it belongs to.
type Turn struct {
	SessionID uuid.UUID       `json:"session_id"`
	Turn      api.TurnResult  `json:"turn"`
	Iteration int             `json:"iteration"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (Turn) event() {}

// Extraction reports the outcome of an extract statement. Fields holds
// only the resolved values; requested fields the oracle could not
// resolve are absent.
type Extraction struct {
	SessionID uuid.UUID       `json:"session_id"`
	Into      string          `json:"into"`
	Fields    map[string]any  `json:"fields"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (Extraction) event() {}

// Transfer reports the terminal hand-off of a session to an external
// channel layer.
type Transfer struct {
	SessionID   uuid.UUID       `json:"session_id"`
	Destination string          `json:"destination"`
	Timestamp   strfmt.DateTime `json:"timestamp"`
}

func (Transfer) event() {}

// Error reports a session-level failure. Data-quality conditions are
// never reported here; they surface to scripts as ordinary data.
type Error struct {
	SessionID uuid.UUID       `json:"session_id"`
	Message   string          `json:"message"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (Error) event() {}

// End reports session termination and why it happened.
type End struct {
	SessionID uuid.UUID       `json:"session_id"`
	Reason    EndReason       `json:"reason"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (End) event() {}

// EndReason enumerates the ways a session terminates.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndTransfer  EndReason = "transfer"
	EndAborted   EndReason = "aborted"
	EndLoopGuard EndReason = "loop_guard"
	EndError     EndReason = "error"
)

// Hook receives session events in order. Implementations must be safe
// for use from the session's goroutine and should not block.
type Hook interface {
	OnSay(context.Context, Say)
	OnUserMessage(context.Context, UserMessage)
	OnTurn(context.Context, Turn)
	OnExtraction(context.Context, Extraction)
	OnTransfer(context.Context, Transfer)
	OnError(context.Context, Error)
	OnEnd(context.Context, End)
}

// NoopHook ignores every event. Embed it to implement only the
// callbacks you care about.
type NoopHook struct{}

func (NoopHook) OnSay(context.Context, Say)                 {}
func (NoopHook) OnUserMessage(context.Context, UserMessage) {}
func (NoopHook) OnTurn(context.Context, Turn)               {}
func (NoopHook) OnExtraction(context.Context, Extraction)   {}
func (NoopHook) OnTransfer(context.Context, Transfer)       {}
func (NoopHook) OnError(context.Context, Error)             {}
func (NoopHook) OnEnd(context.Context, End)                 {}

// Dispatch routes an event to the matching hook callback.
func Dispatch(ctx context.Context, hook Hook, event Event) {
	switch evt := event.(type) {
	case Say:
		hook.OnSay(ctx, evt)
	case UserMessage:
		hook.OnUserMessage(ctx, evt)
	case Turn:
		hook.OnTurn(ctx, evt)
	case Extraction:
		hook.OnExtraction(ctx, evt)
	case Transfer:
		hook.OnTransfer(ctx, evt)
	case Error:
		hook.OnError(ctx, evt)
	case End:
		hook.OnEnd(ctx, evt)
	}
}
