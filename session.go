package lotus

import (
	"context"
	"log/slog"

	"github.com/BrainbaseHQ/lotus-prompt/broker"
	"github.com/BrainbaseHQ/lotus-prompt/events"
	"github.com/BrainbaseHQ/lotus-prompt/internal/engine"
	"github.com/BrainbaseHQ/lotus-prompt/metrics"
	"github.com/BrainbaseHQ/lotus-prompt/pkg/slogx"
	"github.com/BrainbaseHQ/lotus-prompt/pkg/uuidx"
	"github.com/BrainbaseHQ/lotus-prompt/state"
	"github.com/google/uuid"
)

// Hook receives a session's event stream. It is the events.Hook
// interface re-exported for callers of the root package.
type Hook = events.Hook

// Session is one active conversation: an isolated state store, a frame
// stack owned by the engine, and a goroutine interpreting the program.
type Session struct {
	id     uuid.UUID
	store  state.Store
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// ID returns the session's identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Store exposes the session's state store, chiefly so observers can read
// collected values after termination when state is retained.
func (s *Session) Store() state.Store {
	return s.store
}

// Wait blocks until the session terminates and returns its outcome.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the session terminates.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// StartSession creates an isolated session and runs it on its own
// goroutine. The optional hook is subscribed to the session's topic
// before the first statement executes, so it observes the stream from
// the beginning. Canceling ctx aborts the session at its next suspension
// point without affecting other sessions.
func (m *Manager) StartSession(ctx context.Context, hook Hook) (*Session, error) {
	id := uuidx.New()
	store := m.stores(id)
	topic := m.events.Topic(ctx, id.String())

	// The subscription outlives the session's cancelation so hooks still
	// see the final End event after an abort.
	subCtx := context.WithoutCancel(ctx)
	var sub broker.Subscription
	if hook != nil {
		var err error
		sub, err = topic.Subscribe(subCtx, hook)
		if err != nil {
			return nil, err
		}
	}

	eng, err := engine.New(id, m.program, engine.Deps{
		Exchanger: m.exchanger,
		Evaluator: m.evaluator,
		Extractor: m.extractor,
		Sayer:     m.sayer,
		HTTP:      m.http,
		Store:     store,
		Topic:     topic,
	}, m.engineCfg)
	if err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	session := &Session{
		id:     id,
		store:  store,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.sessions.Add(id.String(), session)
	metrics.ActiveSessions.Inc()

	go func() {
		defer func() {
			m.teardown(session)
			if sub != nil {
				sub.Unsubscribe()
			}
			cancel()
			close(session.done)
		}()
		session.err = eng.Run(runCtx)
		if session.err != nil {
			slog.Warn("session ended with error", slogx.SessionID(id), slogx.Error(session.err))
		}
	}()

	return session, nil
}

// teardown releases a session's resources: it is dropped from the
// registry and its state store is cleared unless retention is on. Other
// sessions are untouched.
func (m *Manager) teardown(s *Session) {
	m.sessions.Del(s.id.String())
	metrics.ActiveSessions.Dec()
	if !m.retainState {
		if err := s.store.Clear(context.Background()); err != nil {
			slog.Warn("failed to clear session state", slogx.SessionID(s.id), slogx.Error(err))
		}
	}
}
