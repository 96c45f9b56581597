package main

import (
	"context"
	"sync/atomic"

	"fleet/internal/service"
)

// deferredPublisher forwards to a publisher set after construction. The broker
// consumer drives the trip service, which itself publishes through the broker.
type deferredPublisher struct {
	target atomic.Pointer[service.Publisher]
}

func (p *deferredPublisher) set(pub service.Publisher) {
	p.target.Store(&pub)
}

// Publish drops the notification when no publisher is set.
func (p *deferredPublisher) Publish(ctx context.Context, n service.Notification) error {
	pub := p.target.Load()
	if pub == nil {
		return nil
	}
	return (*pub).Publish(ctx, n)
}
