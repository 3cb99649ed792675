// Package publisher decouples value updates from transport writes: callers
// enqueue, one goroutine per publisher writes to the ValuePort in order.
package publisher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/queue"
)

type command struct {
	exit  bool
	name  string
	value cty.Value
}

// Publisher owns the set of names registered at construction.
type Publisher struct {
	ctx    context.Context
	port   secondary.ValuePort
	logger primary.Logger

	names  map[string]struct{}
	queue  *queue.Queue[command]
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

// New registers the initial values with the port before returning and starts
// the consumer goroutine.
func New(ctx context.Context, port secondary.ValuePort, initial []domain.NamedValue, logger primary.Logger) (*Publisher, error) {
	if err := port.AddNamedValues(ctx, initial); err != nil {
		return nil, fmt.Errorf("failed to register values: %w", err)
	}

	p := &Publisher{
		ctx:    context.WithoutCancel(ctx),
		port:   port,
		logger: logger,
		names:  make(map[string]struct{}, len(initial)),
		queue:  queue.New[command](),
		done:   make(chan struct{}),
	}
	for _, v := range initial {
		p.names[v.Name] = struct{}{}
	}

	go p.run()
	return p, nil
}

// Publish enqueues an update and never waits for the transport. It returns
// false for names that were not registered and after Close.
func (p *Publisher) Publish(name string, value cty.Value) bool {
	if _, ok := p.names[name]; !ok {
		return false
	}
	if p.closed.Load() {
		return false
	}
	p.queue.Push(command{name: name, value: value})
	return true
}

// Close delivers everything queued so far and stops the consumer.
func (p *Publisher) Close() {
	p.once.Do(func() {
		p.closed.Store(true)
		p.queue.Push(command{exit: true})
		<-p.done
	})
}

func (p *Publisher) run() {
	defer close(p.done)

	for {
		cmd, err := p.queue.Pop(p.ctx)
		if err != nil || cmd.exit {
			return
		}
		if err := p.port.UpdateNamedValue(p.ctx, cmd.name, cmd.value); err != nil {
			p.logger.Error("Failed to publish value", "name", cmd.name, "error", err)
		}
	}
}
