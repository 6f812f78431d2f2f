// Package feed serves team calendar feeds. A Service is built from an
// explicit store and cache storage; it holds no process-wide state.
package feed

import (
	"context"
	"strings"
	"time"

	"meetcal/internal/cache"
	"meetcal/internal/ics"
	"meetcal/internal/model"
	"meetcal/internal/store"
)

// DefaultTTL only collapses bursts of near-simultaneous polls.
const DefaultTTL = time.Second

type Service struct {
	query *store.Query
	cache *cache.Layer
	ttl   time.Duration
}

type Config struct {
	Store   store.Store
	Storage cache.Storage
	Options ics.Options
	TTL     time.Duration

	// CacheOptions are passed through to cache.New.
	CacheOptions []cache.Option
}

func NewService(cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Storage == nil {
		cfg.Storage = cache.NewMemory()
	}
	gen := ics.NewGenerator(cfg.Options)
	return &Service{
		query: store.NewQuery(cfg.Store),
		cache: cache.New(cfg.Storage, gen, cfg.CacheOptions...),
		ttl:   cfg.TTL,
	}
}

// Calendar returns the feed for team, or ok=false when the team has no
// meetings to publish. An empty team is the all-teams feed.
func (s *Service) Calendar(ctx context.Context, team string) (string, bool) {
	team = normalizeTeam(team)
	return s.cache.GetOrGenerate(cache.Key(team), s.ttl, func() []model.Meeting {
		return s.query.Fetch(ctx, team)
	})
}

// Occurrences lists concrete meeting instances for team within
// [from, to]. It bypasses the feed cache.
func (s *Service) Occurrences(ctx context.Context, team string, from, to time.Time) (ics.ExpandResult, error) {
	meetings := s.query.Fetch(ctx, normalizeTeam(team))
	return ics.ExpandOccurrences(meetings, ics.ExpandConfig{RangeStart: from, RangeEnd: to})
}

// Storage exposes the cache backend for maintenance jobs.
func (s *Service) Storage() cache.Storage { return s.cache.Storage() }

func normalizeTeam(team string) string {
	return strings.ToLower(strings.TrimSpace(team))
}
