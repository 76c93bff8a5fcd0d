// Package history journals completed requests to a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/webservice/packages/webservice"
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	method      TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	status      INTEGER NOT NULL,
	kind        TEXT    NOT NULL DEFAULT '',
	code        TEXT    NOT NULL DEFAULT '',
	error       TEXT    NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL,
	body_size   INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS requests_created_at ON requests (created_at);
`

// Entry is one journaled attempt.
type Entry struct {
	ID        int64
	Method    string
	URL       string
	Status    int
	Kind      string
	Code      string
	Error     string
	Duration  time.Duration
	BodySize  int
	CreatedAt time.Time
}

// Failed reports whether the attempt ended with an error.
func (e Entry) Failed() bool {
	return e.Kind != ""
}

// Journal is a webservice.Observer that stores one row per attempt.
type Journal struct {
	db           *sql.DB
	logger       *zerolog.Logger
	now          func() time.Time
	queryTimeout time.Duration
}

type Option func(*Journal)

func WithLogger(logger *zerolog.Logger) Option {
	return func(j *Journal) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// Open opens or creates the journal. Accepted forms are sqlite://path,
// sqlite:path and a plain file path; ":memory:" keeps it in memory.
func Open(connectionString string, opts ...Option) (*Journal, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer, and :memory: databases are per connection
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	nop := zerolog.Nop()
	j := &Journal{
		db:           db,
		logger:       &nop,
		now:          time.Now,
		queryTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	switch {
	case connStr == "":
		return "", fmt.Errorf("empty history connection string")
	case strings.HasPrefix(connStr, "sqlite://"):
		return strings.TrimPrefix(connStr, "sqlite://"), nil
	case strings.HasPrefix(connStr, "sqlite:"):
		return strings.TrimPrefix(connStr, "sqlite:"), nil
	case strings.Contains(connStr, "://"):
		return "", fmt.Errorf("unsupported history database: %s", connStr)
	default:
		return connStr, nil
	}
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// ObserveResult implements webservice.Observer. Write failures are logged
// and never affect the result.
func (j *Journal) ObserveResult(method webservice.Method, url string, res *webservice.Result) {
	if res == nil {
		return
	}
	if err := j.Record(context.Background(), method, url, res); err != nil {
		j.logger.Warn().Err(err).Str("url", url).Msg("History write failed")
	}
}

// Record stores res.
func (j *Journal) Record(ctx context.Context, method webservice.Method, url string, res *webservice.Result) error {
	ctx, cancel := context.WithTimeout(ctx, j.queryTimeout)
	defer cancel()

	var (
		kind, errText string
		duration      time.Duration
	)
	if res.Err != nil {
		kind = string(webservice.KindOf(res.Err))
		errText = res.Err.Error()
	}
	if res.Response != nil {
		duration = res.Response.Duration
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO requests (method, url, status, kind, code, error, duration_us, body_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		method.String(), url, res.StatusCode(), kind, res.Code(), errText,
		duration.Microseconds(), len(res.Body), j.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return j.query(ctx, `SELECT id, method, url, status, kind, code, error, duration_us, body_size, created_at
		 FROM requests ORDER BY id DESC LIMIT ?`, limit)
}

// Failures returns up to limit failed entries, newest first.
func (j *Journal) Failures(ctx context.Context, limit int) ([]Entry, error) {
	return j.query(ctx, `SELECT id, method, url, status, kind, code, error, duration_us, body_size, created_at
		 FROM requests WHERE kind != '' ORDER BY id DESC LIMIT ?`, limit)
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, j.queryTimeout)
	defer cancel()

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			durationUs int64
			createdMs  int64
		)
		if err := rows.Scan(&e.ID, &e.Method, &e.URL, &e.Status, &e.Kind, &e.Code, &e.Error,
			&durationUs, &e.BodySize, &createdMs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.Duration = time.Duration(durationUs) * time.Microsecond
		e.CreatedAt = time.UnixMilli(createdMs)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Count returns the number of journaled attempts.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// Prune deletes entries older than age and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := j.now().Add(-age).UnixMilli()
	res, err := j.db.ExecContext(ctx, `DELETE FROM requests WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune failed: %w", err)
	}
	return res.RowsAffected()
}

var _ webservice.Observer = (*Journal)(nil)
