package secondary

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

// ValuePort is the publishing side of the value transport
type ValuePort interface {
	// AddNamedValues exposes new names with their initial values
	AddNamedValues(ctx context.Context, values []domain.NamedValue) error

	// UpdateNamedValue replaces the current value of an exposed name
	UpdateNamedValue(ctx context.Context, name string, value cty.Value) error
}

// ValueSource is the observing side of the value transport
type ValueSource interface {
	// Snapshot returns the current values of all names starting with prefix
	Snapshot(ctx context.Context, prefix string) ([]domain.NamedValue, error)

	// Subscribe calls fn for every update of a name starting with prefix until
	// the returned cancel function is called or ctx ends.
	Subscribe(ctx context.Context, prefix string, fn func(domain.NamedValue)) (func(), error)
}
