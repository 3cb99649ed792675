// Package mirror rebuilds job state on the observing side from the named
// values a job publishes.
package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/protocol"
	"gitlab.com/autoserver-2025.net/internal/queue"
)

// JobInfoIO receives decoded job updates. Empty log, message, output and
// breakpoint values are not reported.
type JobInfoIO interface {
	JobStateUpdated(state domain.JobState)
	InstructionStateUpdated(index uint32, state domain.InstructionState)
	VariableUpdated(index uint32, value cty.Value, connected bool)
	PutLog(entry domain.LogEntry)
	Message(entry domain.LogEntry)
	OutputValue(out domain.OutputValue)
	BreakpointHit(index uint32)
	InputRequested(req domain.UserInputRequest)
	InputWithdrawn()
}

type binding func(value cty.Value) error

// Mirror binds every known name to a decoder for its kind.
type Mirror struct {
	io     JobInfoIO
	logger primary.Logger

	mu       sync.Mutex
	bindings map[string]binding
}

func New(io JobInfoIO, logger primary.Logger) *Mirror {
	return &Mirror{
		io:       io,
		logger:   logger,
		bindings: make(map[string]binding),
	}
}

// AddNamedValues binds the recognised names and applies their initial values.
// Names of unknown kind are skipped.
func (m *Mirror) AddNamedValues(values []domain.NamedValue) {
	for _, v := range values {
		kind, index := protocol.ParseValueName(v.Name)
		bind := m.bind(kind, index)
		if bind == nil {
			m.logger.Debug("Ignoring value of unknown kind", "name", v.Name)
			continue
		}

		m.mu.Lock()
		m.bindings[v.Name] = bind
		m.mu.Unlock()

		if err := bind(v.Value); err != nil {
			m.logger.Warn("Failed to decode value", "name", v.Name, "error", err)
		}
	}
}

// UpdateNamedValue applies value through the binding of name. It returns
// false for names never added and for values that do not decode.
func (m *Mirror) UpdateNamedValue(name string, value cty.Value) bool {
	m.mu.Lock()
	bind, ok := m.bindings[name]
	m.mu.Unlock()
	if !ok {
		return false
	}
	if err := bind(value); err != nil {
		m.logger.Warn("Failed to decode value", "name", name, "error", err)
		return false
	}
	return true
}

// Follow mirrors the values under prefix from source until ctx ends. Updates
// received while the initial snapshot is loaded are applied after it; names
// exposed later are bound on their first update.
func (m *Mirror) Follow(ctx context.Context, source secondary.ValueSource, prefix string) error {
	updates := queue.New[domain.NamedValue]()
	cancel, err := source.Subscribe(ctx, prefix, updates.Push)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", prefix, err)
	}
	defer cancel()

	snapshot, err := source.Snapshot(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to load values of %s: %w", prefix, err)
	}
	m.AddNamedValues(snapshot)

	for {
		v, err := updates.Pop(ctx)
		if err != nil {
			return err
		}
		if !m.UpdateNamedValue(v.Name, v.Value) && !m.known(v.Name) {
			m.AddNamedValues([]domain.NamedValue{v})
		}
	}
}

func (m *Mirror) known(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bindings[name]
	return ok
}

func (m *Mirror) bind(kind protocol.ValueKind, index uint32) binding {
	switch kind {
	case protocol.KindJobState:
		return func(v cty.Value) error {
			state, err := protocol.DecodeJobState(v)
			if err != nil {
				return err
			}
			m.io.JobStateUpdated(state)
			return nil
		}
	case protocol.KindInstruction:
		return func(v cty.Value) error {
			state, err := protocol.DecodeInstructionState(v)
			if err != nil {
				return err
			}
			m.io.InstructionStateUpdated(index, state)
			return nil
		}
	case protocol.KindVariable:
		return func(v cty.Value) error {
			value, connected, err := protocol.DecodeVariable(v)
			if err != nil {
				return err
			}
			m.io.VariableUpdated(index, value, connected)
			return nil
		}
	case protocol.KindLog:
		return unlessEmpty(func(v cty.Value) error {
			entry, err := protocol.DecodeLogEntry(v)
			if err != nil {
				return err
			}
			m.io.PutLog(entry)
			return nil
		})
	case protocol.KindMessage:
		return unlessEmpty(func(v cty.Value) error {
			entry, err := protocol.DecodeLogEntry(v)
			if err != nil {
				return err
			}
			m.io.Message(entry)
			return nil
		})
	case protocol.KindOutputValue:
		return unlessEmpty(func(v cty.Value) error {
			out, err := protocol.DecodeOutputValue(v)
			if err != nil {
				return err
			}
			m.io.OutputValue(out)
			return nil
		})
	case protocol.KindBreakpoint:
		return unlessEmpty(func(v cty.Value) error {
			instr, err := protocol.DecodeBreakpointHit(v)
			if err != nil {
				return err
			}
			m.io.BreakpointHit(instr)
			return nil
		})
	case protocol.KindInputRequest:
		return func(v cty.Value) error {
			if anyvalue.IsEmpty(v) {
				m.io.InputWithdrawn()
				return nil
			}
			req, err := protocol.DecodeUserInputRequest(v)
			if err != nil {
				return err
			}
			m.io.InputRequested(req)
			return nil
		}
	default:
		return nil
	}
}

func unlessEmpty(b binding) binding {
	return func(v cty.Value) error {
		if anyvalue.IsEmpty(v) {
			return nil
		}
		return b(v)
	}
}
