// Package valuehub is an in-process value transport, used when no Redis
// server is configured.
package valuehub

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

var (
	_ secondary.ValuePort   = (*Hub)(nil)
	_ secondary.ValueSource = (*Hub)(nil)
)

type subscription struct {
	prefix string
	fn     func(domain.NamedValue)
}

// Hub keeps the current value of every exposed name and calls subscribers
// synchronously from the updating goroutine.
type Hub struct {
	mu     sync.RWMutex
	values map[string]cty.Value
	order  []string
	subs   map[uint64]*subscription
	nextID uint64
}

func New() *Hub {
	return &Hub{
		values: make(map[string]cty.Value),
		subs:   make(map[uint64]*subscription),
	}
}

// AddNamedValues exposes values. Names already exposed are rejected.
func (h *Hub) AddNamedValues(_ context.Context, values []domain.NamedValue) error {
	h.mu.Lock()
	for _, v := range values {
		if _, exists := h.values[v.Name]; exists {
			h.mu.Unlock()
			return fmt.Errorf("value %s already exposed", v.Name)
		}
	}
	for _, v := range values {
		h.values[v.Name] = v.Value
		h.order = append(h.order, v.Name)
	}
	h.mu.Unlock()

	for _, v := range values {
		h.notify(v)
	}
	return nil
}

func (h *Hub) UpdateNamedValue(_ context.Context, name string, value cty.Value) error {
	h.mu.Lock()
	if _, exists := h.values[name]; !exists {
		h.mu.Unlock()
		return fmt.Errorf("value %s not exposed", name)
	}
	h.values[name] = value
	h.mu.Unlock()

	h.notify(domain.NamedValue{Name: name, Value: value})
	return nil
}

// Get returns the current value of name.
func (h *Hub) Get(name string) (cty.Value, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.values[name]
	return v, ok
}

// Snapshot returns the values under prefix in the order they were exposed.
func (h *Hub) Snapshot(_ context.Context, prefix string) ([]domain.NamedValue, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var values []domain.NamedValue
	for _, name := range h.order {
		if strings.HasPrefix(name, prefix) {
			values = append(values, domain.NamedValue{Name: name, Value: h.values[name]})
		}
	}
	return values, nil
}

func (h *Hub) Subscribe(ctx context.Context, prefix string, fn func(domain.NamedValue)) (func(), error) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = &subscription{prefix: prefix, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}, nil
}

func (h *Hub) notify(v domain.NamedValue) {
	h.mu.RLock()
	var targets []func(domain.NamedValue)
	for _, sub := range h.subs {
		if strings.HasPrefix(v.Name, sub.prefix) {
			targets = append(targets, sub.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(v)
	}
}
