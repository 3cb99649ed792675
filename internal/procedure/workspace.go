package procedure

import (
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

// Variable is a named workspace slot.
type Variable struct {
	name       string
	typeName   string
	attributes []domain.Attribute
	value      cty.Value
	connected  bool
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Type() string { return v.typeName }

func (v *Variable) Attributes() []domain.Attribute {
	return append([]domain.Attribute(nil), v.attributes...)
}

// NewLocalVariable creates a variable that lives only inside the workspace.
func NewLocalVariable(name string, value cty.Value) *Variable {
	attrs := []domain.Attribute{{Name: "name", Value: name}}
	if !anyvalue.IsEmpty(value) {
		if raw, err := anyvalue.ToJSON(value); err == nil {
			attrs = append(attrs, domain.Attribute{Name: "value", Value: string(raw)})
		}
	}
	return &Variable{
		name:       name,
		typeName:   "Local",
		attributes: attrs,
		value:      value,
		connected:  true,
	}
}

// Workspace holds the procedure variables in declaration order.
type Workspace struct {
	mu       sync.RWMutex
	vars     []*Variable
	byName   map[string]int
	listener func(name string, value cty.Value, connected bool)
}

func NewWorkspace() *Workspace {
	return &Workspace{byName: make(map[string]int)}
}

// AddVariable appends a variable. Names must be unique.
func (w *Workspace) AddVariable(v *Variable) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.byName[v.name]; exists {
		return fmt.Errorf("duplicate variable %q", v.name)
	}
	w.byName[v.name] = len(w.vars)
	w.vars = append(w.vars, v)
	return nil
}

// Variables returns the variables in declaration order.
func (w *Workspace) Variables() []*Variable {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]*Variable(nil), w.vars...)
}

func (w *Workspace) VariableNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, len(w.vars))
	for i, v := range w.vars {
		names[i] = v.name
	}
	return names
}

func (w *Workspace) GetValue(name string) (cty.Value, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	idx, ok := w.byName[name]
	if !ok {
		return cty.NilVal, false
	}
	return w.vars[idx].value, true
}

// IsConnected reports whether the variable is backed by a live source.
func (w *Workspace) IsConnected(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	idx, ok := w.byName[name]
	return ok && w.vars[idx].connected
}

// SetValue replaces a variable value and notifies the listener outside the lock.
func (w *Workspace) SetValue(name string, value cty.Value) bool {
	w.mu.Lock()
	idx, ok := w.byName[name]
	if !ok {
		w.mu.Unlock()
		return false
	}
	v := w.vars[idx]
	v.value = value
	connected := v.connected
	listener := w.listener
	w.mu.Unlock()

	if listener != nil {
		listener(name, value, connected)
	}
	return true
}

func (w *Workspace) setListener(fn func(name string, value cty.Value, connected bool)) {
	w.mu.Lock()
	w.listener = fn
	w.mu.Unlock()
}

// nativeValues exposes the variables as plain Go data for expression evaluation.
func (w *Workspace) nativeValues() (map[string]interface{}, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	env := make(map[string]interface{}, len(w.vars))
	for _, v := range w.vars {
		native, err := anyvalue.ToNative(v.value)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", v.name, err)
		}
		env[v.name] = native
	}
	return env, nil
}
