// Package api defines the contracts between the lotus engine and its
// external collaborators: the turn exchange service, the trigger
// evaluator, and the extraction oracle. The engine depends only on these
// interfaces; concrete backends live under provider.
package api

import (
	"context"

	"github.com/google/uuid"
)

// ExchangeParams carries everything an exchanger needs to drive one
// model/user round.
type ExchangeParams struct {
	// SessionID identifies the conversation the exchange belongs to.
	SessionID uuid.UUID

	// SystemPrompt is the rendered instruction for the agent side of the
	// exchange.
	SystemPrompt string

	// FirstPrompt, when true, makes the agent speak before suspending for
	// the user's reply. When false the exchange waits for the user first.
	FirstPrompt bool

	// DefaultValues and Info are opaque parameter maps passed through from
	// the script's talk statement.
	DefaultValues map[string]any
	Info          map[string]any

	// Prevents unkeyed literals
	_ struct{}
}

// TurnResult is the outcome of one exchange: the combined round's content
// plus the parameters it was produced with. Extraction and summarization
// over the content are capabilities of the extraction oracle, not stored
// data.
type TurnResult struct {
	// Content is the raw combined content of the round, typically the
	// user's message followed by the agent's reply.
	Content string `json:"content"`

	// UserMessage and AgentMessage split the round when the exchanger can
	// distinguish the two sides.
	UserMessage  string `json:"user_message,omitempty"`
	AgentMessage string `json:"agent_message,omitempty"`

	// FirstPrompt records whether the agent initiated the round.
	FirstPrompt bool `json:"first_prompt"`

	// Model is the model hint the round was produced with, if any.
	Model string `json:"model,omitempty"`
}

// Exchanger drives one model/user exchange. It is the sole cross-turn
// suspension boundary the engine understands: the call blocks until both
// sides have spoken or ctx is canceled.
type Exchanger interface {
	Exchange(ctx context.Context, params ExchangeParams) (TurnResult, error)
}

// Trigger is one until clause's completion condition, paired with its
// declaration index so evaluators can report matches by position.
type Trigger struct {
	Index       int
	Description string
}

// TriggerEvaluator judges which, if any, of the declared completion
// conditions hold for the current iteration. It must be side-effect free
// on state and may report zero, one, or several candidate indices; the
// engine breaks ties deterministically by declaration order. A failed or
// empty evaluation is treated as no match for the iteration.
type TriggerEvaluator interface {
	Evaluate(ctx context.Context, triggers []Trigger, turn TurnResult, state map[string]any) ([]int, error)
}

// Extractor converts unstructured content into structured fields guided
// by a schema, and produces focused summaries. Extract never fabricates
// fields: the result keys are a subset of the schema's keys and
// unresolved fields are simply absent.
type Extractor interface {
	Extract(ctx context.Context, content, question string, schema Schema) (*Fields, error)
	Summarize(ctx context.Context, content, focus, format string) (string, error)
}

// Say delivers a one-directional agent utterance. When exact is true the
// message goes out verbatim; otherwise it is a directive the generation
// layer may rephrase while preserving meaning. Implementations must not
// block on a reply.
type Sayer interface {
	Say(ctx context.Context, sessionID uuid.UUID, message string, exact bool, model string) error
}

// Transport is the channel adapter surface used by exchanger
// implementations: deliver pushes a message to the user's channel, listen
// blocks for the next user message. Platform internals stay behind it.
type Transport interface {
	Deliver(ctx context.Context, message string) error
	Listen(ctx context.Context) (string, error)
}
