package cache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts cache outcomes. Without a configured meter provider the
// instruments are no-ops.
type Metrics struct {
	hits    metric.Int64Counter
	misses  metric.Int64Counter
	absents metric.Int64Counter
}

func NewMetrics() *Metrics {
	meter := otel.Meter("meetcal/cache")

	hits, _ := meter.Int64Counter("feed.cache.hits", metric.WithDescription("Feed requests served from cache"))
	misses, _ := meter.Int64Counter("feed.cache.misses", metric.WithDescription("Feed requests that regenerated the document"))
	absents, _ := meter.Int64Counter("feed.cache.absent", metric.WithDescription("Regenerations that produced no document"))

	return &Metrics{hits: hits, misses: misses, absents: absents}
}

func (m *Metrics) hit(ctx context.Context, key string)    { m.add(ctx, m.hits, key) }
func (m *Metrics) miss(ctx context.Context, key string)   { m.add(ctx, m.misses, key) }
func (m *Metrics) absent(ctx context.Context, key string) { m.add(ctx, m.absents, key) }

func (m *Metrics) add(ctx context.Context, c metric.Int64Counter, key string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.key", key)))
}
