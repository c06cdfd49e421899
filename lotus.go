package lotus

import (
	"context"
	"fmt"
	"time"

	"github.com/BrainbaseHQ/lotus-prompt/api"
	"github.com/BrainbaseHQ/lotus-prompt/broker"
	"github.com/BrainbaseHQ/lotus-prompt/internal/engine"
	"github.com/BrainbaseHQ/lotus-prompt/internal/httpx"
	"github.com/BrainbaseHQ/lotus-prompt/internal/registry"
	"github.com/BrainbaseHQ/lotus-prompt/script"
	"github.com/BrainbaseHQ/lotus-prompt/state"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

// Version is the release version of the lotus runtime.
const Version = "0.3.0"

// Manager creates and multiplexes sessions over one shared program. The
// program tree is read-only; every session gets an isolated state store
// and frame stack.
type Manager struct {
	program   *script.Program
	exchanger api.Exchanger
	evaluator api.TriggerEvaluator
	extractor api.Extractor
	sayer     api.Sayer
	http      httpx.Caller
	events    broker.Broker
	stores    func(uuid.UUID) state.Store
	engineCfg engine.Config

	// retainState keeps the state store's contents on teardown instead of
	// clearing them.
	retainState bool

	sessions registry.Registry[*Session]
}

var (
	// WithExchanger sets the turn exchange service. Required.
	WithExchanger = opts.ForName[Manager, api.Exchanger]("exchanger")

	// WithEvaluator sets the trigger evaluator oracle. Required.
	WithEvaluator = opts.ForName[Manager, api.TriggerEvaluator]("evaluator")

	// WithExtractor sets the extraction oracle. Required.
	WithExtractor = opts.ForName[Manager, api.Extractor]("extractor")

	// WithSayer sets the one-directional output channel for say
	// statements. Optional; say events are always published regardless.
	WithSayer = opts.ForName[Manager, api.Sayer]("sayer")

	// WithHTTP sets the external network collaborator.
	WithHTTP = opts.ForName[Manager, httpx.Caller]("http")

	// WithBroker sets the event broker sessions publish on.
	WithBroker = opts.ForName[Manager, broker.Broker]("events")

	// WithRetainState keeps session state on teardown, for deployments
	// that read it back after the conversation ends.
	WithRetainState = opts.ForName[Manager, bool]("retainState")
)

// WithStores sets the per-session state store factory. The default hands
// every session a fresh in-memory store.
func WithStores(factory func(sessionID uuid.UUID) state.Store) opts.Option[Manager] {
	return opts.Type[Manager](func(m *Manager) error {
		m.stores = factory
		return nil
	})
}

// Limits carries the engine's safety ceilings and degradation policy.
// Zero values fall back to the engine defaults (25 iterations, depth 16).
type Limits struct {
	// MaxIterations caps consecutive unmatched iterations per loop frame
	// before the infinite-loop guard trips.
	MaxIterations int

	// MaxDepth bounds the frame stack against runaway nesting.
	MaxDepth int

	// FallbackMessage is said verbatim before a guard-tripped session
	// terminates.
	FallbackMessage string

	// FallbackTransfer, when set, hands guard-tripped sessions off to
	// this destination.
	FallbackTransfer string
}

// WithLimits overrides the engine's ceilings and fallback policy.
func WithLimits(limits Limits) opts.Option[Manager] {
	return opts.Type[Manager](func(m *Manager) error {
		m.engineCfg = engine.Config{
			MaxIterations:    limits.MaxIterations,
			MaxDepth:         limits.MaxDepth,
			FallbackMessage:  limits.FallbackMessage,
			FallbackTransfer: limits.FallbackTransfer,
		}
		return nil
	})
}

// New builds a Manager for a validated program.
func New(program *script.Program, options ...opts.Option[Manager]) (*Manager, error) {
	if program == nil {
		return nil, fmt.Errorf("program is required")
	}
	if err := program.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		program:  program,
		events:   broker.Local(),
		http:     httpx.New(30 * time.Second),
		stores:   func(uuid.UUID) state.Store { return state.NewMemory() },
		sessions: registry.New[*Session](),
	}
	if err := opts.Apply(m, options); err != nil {
		return nil, err
	}

	if m.exchanger == nil {
		return nil, fmt.Errorf("an exchanger is required")
	}
	if m.evaluator == nil {
		return nil, fmt.Errorf("a trigger evaluator is required")
	}
	if m.extractor == nil {
		return nil, fmt.Errorf("an extractor is required")
	}
	return m, nil
}

// Program returns the shared program tree.
func (m *Manager) Program() *script.Program {
	return m.program
}

// Get returns a running session by id.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	return m.sessions.Get(id.String())
}

// SessionIDs lists the sessions currently running.
func (m *Manager) SessionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, m.sessions.Len())
	m.sessions.ForEach(func(_ string, s *Session) bool {
		ids = append(ids, s.id)
		return true
	})
	return ids
}

// Abort cancels a running session at its next suspension point. It
// reports whether the session was found.
func (m *Manager) Abort(id uuid.UUID) bool {
	s, ok := m.sessions.Get(id.String())
	if !ok {
		return false
	}
	s.cancel()
	return true
}

// Run starts a session and blocks until it terminates. Convenience for
// single-conversation callers; concurrent callers use StartSession.
func (m *Manager) Run(ctx context.Context, hook Hook) error {
	session, err := m.StartSession(ctx, hook)
	if err != nil {
		return err
	}
	return session.Wait(ctx)
}
