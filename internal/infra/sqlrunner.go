package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// SQLExecutor is what stores need to run sqlinline queries.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// Querier is the subset of *pgxpool.Pool the runner drives.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var (
	markerRegexp = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	ErrMissingMarker = errors.New("sql marker missing or invalid")
)

// SQLRunner strips the "--sql <uuid>" marker line from each query, runs the
// rest and logs the marker with the elapsed time. Errors carry the marker.
type SQLRunner struct {
	db     Querier
	logger zerolog.Logger
	now    func() time.Time
}

func NewSQLRunner(db Querier, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{db: db, logger: logger, now: time.Now}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := r.now()
	tag, err := r.db.Exec(ctx, body, args...)
	r.done(marker, "exec", start, err)
	if err != nil {
		return tag, fmt.Errorf("sql %s: %w", marker, err)
	}
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, body, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &markedRow{
		row:    r.db.QueryRow(ctx, body, args...),
		runner: r,
		marker: marker,
		start:  r.now(),
	}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	start := r.now()
	rows, err := r.db.Query(ctx, body, args...)
	r.done(marker, "query", start, err)
	if err != nil {
		return nil, fmt.Errorf("sql %s: %w", marker, err)
	}
	return rows, nil
}

// done logs a finished statement. Empty single-row results are not failures.
func (r *SQLRunner) done(marker, op string, start time.Time, err error) {
	elapsed := r.now().Sub(start)
	if err != nil && !IsNoRows(err) {
		r.logger.Error().Err(err).Str("marker", marker).Str("op", op).Dur("elapsed", elapsed).Msg("sql: failed")
		return
	}
	r.logger.Debug().Str("marker", marker).Str("op", op).Dur("elapsed", elapsed).Msg("sql: ok")
}

// markedRow defers logging until Scan, when a single-row query actually runs.
type markedRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

func (m *markedRow) Scan(dest ...any) error {
	err := m.row.Scan(dest...)
	m.runner.done(m.marker, "query_row", m.start, err)
	if err != nil {
		return fmt.Errorf("sql %s: %w", m.marker, err)
	}
	return nil
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(...any) error {
	return e.err
}

// extractMarker splits a sqlinline query into its marker and executable body.
func extractMarker(query string) (marker, body string, err error) {
	first, rest, _ := strings.Cut(strings.TrimSpace(query), "\n")
	id, ok := strings.CutPrefix(strings.TrimSpace(first), "--sql ")
	if !ok || !markerRegexp.MatchString(id) {
		return "", "", ErrMissingMarker
	}
	if strings.TrimSpace(rest) == "" {
		return "", "", fmt.Errorf("sql %s: empty query body", id)
	}
	return id, rest, nil
}

// IsNoRows reports whether err signals an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

var _ SQLExecutor = (*SQLRunner)(nil)
