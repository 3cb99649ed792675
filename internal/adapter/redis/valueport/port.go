// Package valueport carries named values over Redis: the current value of a
// name is stored under value:<name> and every change is published on the
// channel of the same name.
package valueport

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/core/ports/primary"
	"gitlab.com/autoserver-2025.net/internal/core/ports/secondary"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

const (
	valueKeyPrefix = "value:"
	scanBatchSize  = 100
)

var (
	_ secondary.ValuePort   = (*ValuePort)(nil)
	_ secondary.ValueSource = (*ValuePort)(nil)
)

// ValuePort implements both sides of the value transport with Redis
type ValuePort struct {
	redisClient *redis.Client
	logger      primary.Logger
}

// NewValuePort creates a new Redis value port
func NewValuePort(redisClient *redis.Client, logger primary.Logger) *ValuePort {
	return &ValuePort{
		redisClient: redisClient,
		logger:      logger,
	}
}

func valueKey(name string) string {
	return valueKeyPrefix + name
}

// pattern matches every key or channel of a name starting with prefix.
func pattern(prefix string) string {
	var b strings.Builder
	b.WriteString(valueKeyPrefix)
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

// AddNamedValues stores and announces the initial values in one round trip.
func (p *ValuePort) AddNamedValues(ctx context.Context, values []domain.NamedValue) error {
	if len(values) == 0 {
		return nil
	}
	pipe := p.redisClient.TxPipeline()
	for _, v := range values {
		data, err := anyvalue.Marshal(v.Value)
		if err != nil {
			return fmt.Errorf("failed to encode value %s: %w", v.Name, err)
		}
		pipe.Set(ctx, valueKey(v.Name), data, 0)
		pipe.Publish(ctx, valueKey(v.Name), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("Failed to add values", "count", len(values), "error", err)
		return fmt.Errorf("failed to add values: %w", err)
	}
	return nil
}

func (p *ValuePort) UpdateNamedValue(ctx context.Context, name string, value cty.Value) error {
	data, err := anyvalue.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value %s: %w", name, err)
	}
	pipe := p.redisClient.TxPipeline()
	pipe.Set(ctx, valueKey(name), data, 0)
	pipe.Publish(ctx, valueKey(name), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update value %s: %w", name, err)
	}
	return nil
}

// Snapshot loads the current values under prefix, ordered by name.
func (p *ValuePort) Snapshot(ctx context.Context, prefix string) ([]domain.NamedValue, error) {
	var cursor uint64
	var keys []string

	for {
		batch, next, err := p.redisClient.Scan(ctx, cursor, pattern(prefix), scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan value keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	data, err := p.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve values: %w", err)
	}

	values := make([]domain.NamedValue, 0, len(keys))
	for i, raw := range data {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		v, err := anyvalue.Unmarshal([]byte(s))
		if err != nil {
			p.logger.Warn("Skipping undecodable value", "key", keys[i], "error", err)
			continue
		}
		values = append(values, domain.NamedValue{Name: strings.TrimPrefix(keys[i], valueKeyPrefix), Value: v})
	}
	return values, nil
}

// Subscribe is active when it returns. fn runs on a single goroutine.
func (p *ValuePort) Subscribe(ctx context.Context, prefix string, fn func(domain.NamedValue)) (func(), error) {
	pubsub := p.redisClient.PSubscribe(ctx, pattern(prefix))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", prefix, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			v, err := anyvalue.Unmarshal([]byte(msg.Payload))
			if err != nil {
				p.logger.Warn("Skipping undecodable update", "channel", msg.Channel, "error", err)
				continue
			}
			fn(domain.NamedValue{Name: strings.TrimPrefix(msg.Channel, valueKeyPrefix), Value: v})
		}
	}()

	stop := context.AfterFunc(ctx, func() { pubsub.Close() })
	return func() {
		stop()
		pubsub.Close()
		<-done
	}, nil
}
