package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const meetingsQuery = `SELECT id, team, title, start_date, start_time, recurring, occurrence, cancelled
	 FROM meetings
	 WHERE $1 = '' OR lower(team) = lower($1)
	 ORDER BY id`

// Postgres reads meetings from a table shaped like:
//
//	CREATE TABLE meetings (
//	    id         bigserial PRIMARY KEY,
//	    team       text NOT NULL DEFAULT '',
//	    title      text NOT NULL,
//	    start_date text NOT NULL,  -- YYYY-MM-DD
//	    start_time text NOT NULL,  -- HH:MM:SS, UTC
//	    recurring  text NOT NULL DEFAULT '',
//	    occurrence text NOT NULL DEFAULT '',
//	    cancelled  text[] NOT NULL DEFAULT '{}'
//	);
type Postgres struct {
	db      Querier
	metrics *DBMetrics
}

func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db, metrics: NewDBMetrics()}
}

func (p *Postgres) Meetings(ctx context.Context, team string) ([]model.Meeting, error) {
	start := time.Now()

	var err error

	defer func() { p.metrics.Observe(ctx, "list_meetings", start, err) }()

	rows, err := p.db.Query(ctx, meetingsQuery, team)
	if err != nil {
		return nil, fmt.Errorf("%w: query meetings: %w", model.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id int64
			r  Record
		)
		if err = rows.Scan(&id, &r.Team, &r.Title, &r.StartDate, &r.Time, &r.Recurring, &r.Occurrence, &r.Cancelled); err != nil {
			return nil, fmt.Errorf("%w: scan meeting: %w", model.ErrStoreUnavailable, err)
		}
		r.ID = strconv.FormatInt(id, 10)
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate meetings: %w", model.ErrStoreUnavailable, err)
	}

	// The WHERE clause already filters; convert re-checks with the same rule.
	meetings, errs := convert(records, team)
	for _, e := range errs {
		appLog.Warn("store: skipping meeting", "store", "postgres", "err", e.Error())
	}
	return meetings, nil
}

// OpenPool connects and pings the database at dsn.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

type DBMetrics struct {
	qTotal   metric.Int64Counter
	qErrors  metric.Int64Counter
	qLatency metric.Float64Histogram
}

func NewDBMetrics() *DBMetrics {
	meter := otel.Meter("meetcal/store")

	qTotal, _ := meter.Int64Counter("db.query.total")
	qErrors, _ := meter.Int64Counter("db.query.errors.total")
	qLatency, _ := meter.Float64Histogram("db.query.duration.ms")

	return &DBMetrics{qTotal: qTotal, qErrors: qErrors, qLatency: qLatency}
}

func (m *DBMetrics) Observe(ctx context.Context, op string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", op),
	}

	m.qTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	ms := float64(time.Since(start).Milliseconds())
	m.qLatency.Record(ctx, ms, metric.WithAttributes(attrs...))

	if err != nil {
		m.qErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
