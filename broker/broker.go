// Package broker fans session events out to subscribed hooks. The local
// broker serves single-process deployments; the NATS broker bridges the
// same stream across processes.
package broker

import (
	"context"

	"github.com/BrainbaseHQ/lotus-prompt/events"
)

// Broker hands out one topic per session.
type Broker interface {
	Topic(ctx context.Context, id string) Topic
}

// Topic is a session-scoped publish/subscribe channel.
type Topic interface {
	Publish(ctx context.Context, event events.Event) error
	Subscribe(ctx context.Context, hook events.Hook) (Subscription, error)
}

// Subscription is a handle to an active hook registration.
type Subscription interface {
	ID() string
	Unsubscribe()
}
