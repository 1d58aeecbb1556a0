package channels

import (
	"context"
	"sync/atomic"

	"gewebridge/pkg/bus"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	HealthCheck(ctx context.Context) error
}

type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	running atomic.Bool
}

func NewBaseChannel(name string, messageBus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{name: name, bus: messageBus}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}
