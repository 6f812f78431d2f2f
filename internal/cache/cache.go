// Package cache memoizes generated feeds per team for a short TTL.
//
// The cache only collapses bursts of near-simultaneous requests. It does not
// single-flight: two callers that miss at the same moment both regenerate,
// and the later write wins. Storage backends must guarantee that a Read
// returns either a whole old entry or a whole new one.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// BaseKey holds the all-teams feed; team feeds derive from it.
const BaseKey = "meeting_ical"

// ErrNotFound is returned by Storage.Read when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Key derives the storage key for a team filter. An empty team selects the
// all-teams feed; any other team gets its own namespaced key.
func Key(team string) string {
	team = strings.ToLower(strings.TrimSpace(team))
	if team == "" {
		return BaseKey
	}
	return BaseKey + "_" + team
}

// Entry is a stored document. Entries are never mutated after creation.
type Entry struct {
	Key       string    `json:"key"`
	Contents  string    `json:"contents"`
	Timestamp time.Time `json:"timestamp"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) < ttl
}

// Storage persists entries. Read returns ErrNotFound for absent keys;
// Delete of an absent key is not an error.
type Storage interface {
	Read(key string) (Entry, error)
	Write(key string, e Entry) error
	Delete(key string) error
}

// Pruner is implemented by storages that can drop stale entries in bulk.
type Pruner interface {
	Prune(olderThan time.Time) (int, error)
}

// Generator renders meeting records into a document; ok is false when
// there is nothing to publish.
type Generator interface {
	Generate(records []model.Meeting) (doc string, ok bool)
}

// FetchFunc supplies the records for a regeneration.
type FetchFunc func() []model.Meeting

type Option func(*Layer)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Layer) { l.now = now }
}

// WithMetrics replaces the default instruments; nil keeps them.
func WithMetrics(m *Metrics) Option {
	return func(l *Layer) {
		if m != nil {
			l.metrics = m
		}
	}
}

// Layer wraps a Generator with time-bounded memoization.
type Layer struct {
	storage Storage
	gen     Generator
	now     func() time.Time
	metrics *Metrics
}

func New(storage Storage, gen Generator, opts ...Option) *Layer {
	l := &Layer{
		storage: storage,
		gen:     gen,
		now:     time.Now,
		metrics: NewMetrics(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Storage exposes the backing store, e.g. for a pruning job.
func (l *Layer) Storage() Storage { return l.storage }

// GetOrGenerate returns a fresh cached document for key, or regenerates it
// from fetch. ok is false when the generator has nothing to publish; that
// result is not cached. Storage failures degrade to regeneration and are
// logged, never returned.
func (l *Layer) GetOrGenerate(key string, ttl time.Duration, fetch FetchFunc) (string, bool) {
	ctx := context.Background()

	e, err := l.storage.Read(key)
	switch {
	case err == nil:
		if e.Fresh(l.now(), ttl) {
			l.metrics.hit(ctx, key)
			return e.Contents, true
		}
	case errors.Is(err, ErrNotFound):
	default:
		appLog.Error("cache: read failed, regenerating", err, "key", key)
	}
	l.metrics.miss(ctx, key)

	doc, ok := l.gen.Generate(fetch())
	if !ok {
		l.metrics.absent(ctx, key)
		appLog.Debug("cache: nothing to publish", "key", key)
		return "", false
	}

	fresh := Entry{Key: key, Contents: doc, Timestamp: l.now()}
	if err := l.storage.Delete(key); err != nil {
		appLog.Error("cache: delete failed", err, "key", key)
	}
	if err := l.storage.Write(key, fresh); err != nil {
		appLog.Error("cache: write failed", err, "key", key)
	}
	return doc, true
}
