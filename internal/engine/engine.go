// Package engine implements the control-flow interpreter at the core of
// the runtime: an explicit frame stack over the script's loops, one
// cooperative execution context per session. Statements run strictly in
// program order; the only suspension points are the turn exchange,
// oracle calls, external network calls, and timed pauses.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrainbaseHQ/lotus-prompt/api"
	"github.com/BrainbaseHQ/lotus-prompt/broker"
	"github.com/BrainbaseHQ/lotus-prompt/events"
	"github.com/BrainbaseHQ/lotus-prompt/internal/httpx"
	"github.com/BrainbaseHQ/lotus-prompt/metrics"
	"github.com/BrainbaseHQ/lotus-prompt/pkg/slogx"
	"github.com/BrainbaseHQ/lotus-prompt/script"
	"github.com/BrainbaseHQ/lotus-prompt/state"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Config carries the engine's safety ceilings and degradation policy.
type Config struct {
	// MaxIterations is the per-frame ceiling on consecutive unmatched
	// iterations. Reaching it trips the infinite-loop guard.
	MaxIterations int

	// MaxDepth bounds the frame stack against runaway nesting.
	MaxDepth int

	// FallbackMessage, when set, is said verbatim before a guard-tripped
	// session terminates.
	FallbackMessage string

	// FallbackTransfer, when set, hands a guard-tripped session off to
	// this destination instead of ending it silently.
	FallbackTransfer string
}

// Deps are the engine's collaborators. Exchanger, Evaluator, and
// Extractor are required; Sayer and HTTP are optional.
type Deps struct {
	Exchanger api.Exchanger
	Evaluator api.TriggerEvaluator
	Extractor api.Extractor
	Sayer     api.Sayer
	HTTP      httpx.Caller
	Store     state.Store
	Topic     broker.Topic
}

// Engine interprets one program for one session. It is single-use: a
// session gets its own engine, its own store, and its own frame stack.
type Engine struct {
	sessionID uuid.UUID
	program   *script.Program

	exchanger api.Exchanger
	evaluator api.TriggerEvaluator
	extractor api.Extractor
	sayer     api.Sayer
	http      httpx.Caller
	store     state.Store
	topic     broker.Topic

	config Config
	stack  []*Frame
}

// New builds an engine for the given session over a validated program.
func New(sessionID uuid.UUID, program *script.Program, deps Deps, config Config) (*Engine, error) {
	if program == nil {
		return nil, fmt.Errorf("program is required")
	}
	if deps.Exchanger == nil {
		return nil, fmt.Errorf("exchanger is required")
	}
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("trigger evaluator is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = 25
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = 16
	}
	return &Engine{
		sessionID: sessionID,
		program:   program,
		exchanger: deps.Exchanger,
		evaluator: deps.Evaluator,
		extractor: deps.Extractor,
		sayer:     deps.Sayer,
		http:      deps.HTTP,
		store:     deps.Store,
		topic:     deps.Topic,
		config:    config,
	}, nil
}

// Run interprets the program to completion. It returns nil when the
// program terminates normally (root frames exhausted or a transfer), and
// an error for the guard conditions and aborts. The process always
// survives: errors are fatal to the session only.
func (e *Engine) Run(ctx context.Context) error {
	reason, err := e.run(ctx)
	end := context.WithoutCancel(ctx)
	if err != nil && reason == events.EndError {
		e.publish(end, events.Error{
			SessionID: e.sessionID,
			Message:   err.Error(),
			Timestamp: now(),
		})
	}
	e.publish(end, events.End{
		SessionID: e.sessionID,
		Reason:    reason,
		Timestamp: now(),
	})
	return err
}

func (e *Engine) run(ctx context.Context) (events.EndReason, error) {
	// Program preamble runs once, in a frame that belongs to no loop.
	root := newFrame(nil, nil)
	sig, err := e.execBlock(ctx, root, e.program.Preamble)
	if err != nil {
		return e.endReason(ctx, err), err
	}
	if sig == sigTransfer {
		return events.EndTransfer, nil
	}

	for _, loop := range e.program.Loops {
		reason, done, err := e.runLoop(ctx, loop)
		if err != nil || done {
			return reason, err
		}
	}
	return events.EndCompleted, nil
}

// runLoop drives one top-level loop and everything nested under it,
// using an explicit frame stack. Unwinding is driven by signal values:
// continue re-enters the top frame, break pops exactly one frame, and a
// popped root frame ends the loop. The boolean result reports whether
// the whole session is over (transfer).
func (e *Engine) runLoop(ctx context.Context, loop *script.Loop) (events.EndReason, bool, error) {
	e.stack = []*Frame{newFrame(loop, nil)}

	for len(e.stack) > 0 {
		f := e.top()

		// A frame returning from a nested loop first finishes the rest of
		// its until-block.
		if f.resume != nil {
			stmts := f.resume
			f.resume = nil
			sig, err := e.execBlock(ctx, f, stmts)
			if err != nil {
				return e.endReason(ctx, err), true, err
			}
			if done, reason := e.applySignal(f, sig); done {
				return reason, true, nil
			}
			continue
		}

		f.iterations++
		if f.iterations > e.config.MaxIterations {
			metrics.LoopGuardTrips.Inc()
			err := fmt.Errorf("%w: %d unmatched iterations", ErrLoopCeiling, f.iterations-1)
			e.fallback(ctx)
			e.publish(ctx, events.Error{
				SessionID: e.sessionID,
				Message:   err.Error(),
				Timestamp: now(),
			})
			return events.EndLoopGuard, true, err
		}
		metrics.Iterations.Inc()
		f.reset()

		// Preamble statements, in order, before the exchange.
		if _, err := e.execBlock(ctx, f, f.loop.Body); err != nil {
			return e.endReason(ctx, err), true, err
		}

		matched, idx, err := e.exchangeAndEvaluate(ctx, f)
		if err != nil {
			return e.endReason(ctx, err), true, err
		}
		if !matched {
			continue
		}

		sig, err := e.execBlock(ctx, f, f.loop.Untils[idx].Block)
		if err != nil {
			return e.endReason(ctx, err), true, err
		}
		if done, reason := e.applySignal(f, sig); done {
			return reason, true, nil
		}
	}

	return events.EndCompleted, false, nil
}

// exchangeAndEvaluate performs the iteration's suspension point and
// trigger evaluation. Oracle failures are degradation, not session
// death: the iteration simply goes unmatched.
func (e *Engine) exchangeAndEvaluate(ctx context.Context, f *Frame) (bool, int, error) {
	talk := f.loop.Talk

	prompt, err := e.render(ctx, f, talk.SystemPrompt)
	if err != nil {
		e.warn(ctx, "prompt template failed", err)
		prompt = talk.SystemPrompt
	}

	turn, err := e.exchanger.Exchange(ctx, api.ExchangeParams{
		SessionID:     e.sessionID,
		SystemPrompt:  prompt,
		FirstPrompt:   talk.FirstPrompt,
		DefaultValues: talk.DefaultValues,
		Info:          talk.Info,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false, 0, ErrSessionAborted
		}
		metrics.ExternalCallFailures.Inc()
		e.warn(ctx, "exchange failed", err)
		return false, 0, nil
	}
	f.turn = &turn

	if turn.UserMessage != "" {
		e.publish(ctx, events.UserMessage{
			SessionID: e.sessionID,
			Content:   turn.UserMessage,
			Timestamp: now(),
		})
	}
	e.publish(ctx, events.Turn{
		SessionID: e.sessionID,
		Turn:      turn,
		Iteration: f.iterations,
		Timestamp: now(),
	})

	triggers := make([]api.Trigger, len(f.loop.Untils))
	for i, until := range f.loop.Untils {
		triggers[i] = api.Trigger{Index: i, Description: until.Trigger}
	}
	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		metrics.ExternalCallFailures.Inc()
		e.warn(ctx, "state snapshot failed", err)
		return false, 0, nil
	}

	matches, err := e.evaluator.Evaluate(ctx, triggers, turn, snapshot)
	if err != nil {
		if ctx.Err() != nil {
			return false, 0, ErrSessionAborted
		}
		metrics.ExternalCallFailures.Inc()
		e.warn(ctx, "trigger evaluation failed", err)
		return false, 0, nil
	}

	// The evaluator returns candidates; the engine breaks ties by
	// declaration order, deterministically.
	best := -1
	for _, idx := range matches {
		if idx < 0 || idx >= len(f.loop.Untils) {
			continue
		}
		if best == -1 || idx < best {
			best = idx
		}
	}
	if best == -1 {
		return false, 0, nil
	}
	return true, best, nil
}

// applySignal updates the frame stack for a block's outcome. It returns
// done=true when the signal ends the whole session.
func (e *Engine) applySignal(f *Frame, sig signal) (bool, events.EndReason) {
	switch sig {
	case sigPush:
		// A child frame is already on the stack; the driver will pick it up.
	case sigBreak:
		e.pop()
	case sigContinue, sigFallthrough:
		// Fallthrough is policy-identical to an explicit continue: the
		// owning frame re-enters with a fresh iteration streak.
		f.iterations = 0
	case sigTransfer:
		return true, events.EndTransfer
	}
	return false, ""
}

// fallback emits the configured degradation behavior before a
// guard-tripped session terminates.
func (e *Engine) fallback(ctx context.Context) {
	if e.config.FallbackMessage != "" {
		e.publish(ctx, events.Say{
			SessionID: e.sessionID,
			Message:   e.config.FallbackMessage,
			Exact:     true,
			Timestamp: now(),
		})
		if e.sayer != nil {
			if err := e.sayer.Say(ctx, e.sessionID, e.config.FallbackMessage, true, ""); err != nil {
				e.warn(ctx, "fallback say failed", err)
			}
		}
	}
	if e.config.FallbackTransfer != "" {
		metrics.Transfers.Inc()
		e.publish(ctx, events.Transfer{
			SessionID:   e.sessionID,
			Destination: e.config.FallbackTransfer,
			Timestamp:   now(),
		})
	}
}

func (e *Engine) endReason(ctx context.Context, err error) events.EndReason {
	switch {
	case errors.Is(err, ErrSessionAborted) || ctx.Err() != nil:
		return events.EndAborted
	case errors.Is(err, ErrLoopCeiling):
		return events.EndLoopGuard
	default:
		return events.EndError
	}
}

func (e *Engine) top() *Frame {
	return e.stack[len(e.stack)-1]
}

func (e *Engine) push(f *Frame) {
	e.stack = append(e.stack, f)
}

func (e *Engine) pop() {
	e.stack = e.stack[:len(e.stack)-1]
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.topic == nil {
		return
	}
	if err := e.topic.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish event", slogx.Error(err), slogx.SessionID(e.sessionID))
	}
}

func now() strfmt.DateTime {
	return strfmt.DateTime(time.Now())
}
