// Package service contains application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/gaepo/sheetlogin/internal/domain/table"
	"github.com/gaepo/sheetlogin/internal/port/outbound"
	"github.com/gaepo/sheetlogin/internal/telemetry"
)

// DefaultTableTTL is how long a loaded table is reused before the source is
// read again.
const DefaultTableTTL = 60 * time.Second

// TableProvider returns the current table snapshot.
type TableProvider interface {
	Table(ctx context.Context) (*table.Table, error)
}

// LoadResult describes one fetch from the source.
type LoadResult struct {
	Source      string
	Rows        int
	Columns     int
	Fingerprint uint64
	Duration    time.Duration
	Err         error
}

// LoaderStatus is a point-in-time view of the loader for health checks.
type LoaderStatus struct {
	Source      string    `json:"source"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
}

// Healthy reports whether the most recent fetch succeeded. A loader that
// has not fetched yet is healthy.
func (s LoaderStatus) Healthy() bool {
	return s.LastError == ""
}

// TableLoader caches the table read from a TableSource for a fixed window.
// Concurrent callers that miss the cache share a single fetch. A failed
// fetch drops the cached snapshot so stale data is never served.
type TableLoader struct {
	source     outbound.TableSource
	logger     *slog.Logger
	ttl        time.Duration
	required   []string
	keyColumns []string
	now        func() time.Time

	group singleflight.Group

	mu              sync.RWMutex
	current         *table.Table
	loadedAt        time.Time
	lastFingerprint uint64
	lastErr         error
	lastErrAt       time.Time
	onLoad          func(LoadResult)

	tracer  trace.Tracer
	fetches metric.Int64Counter
}

// LoaderOption configures TableLoader.
type LoaderOption func(*TableLoader)

// WithTTL sets the freshness window. Zero reloads on every call.
func WithTTL(ttl time.Duration) LoaderOption {
	return func(l *TableLoader) {
		if ttl >= 0 {
			l.ttl = ttl
		}
	}
}

// WithRequiredColumns makes a fetch fail with table.ErrFormat when any of
// the columns is missing.
func WithRequiredColumns(columns ...string) LoaderOption {
	return func(l *TableLoader) {
		l.required = append(l.required, columns...)
	}
}

// WithKeyColumns names the ID and name columns. Rows sharing both values are
// reported when a new snapshot is loaded.
func WithKeyColumns(idColumn, nameColumn string) LoaderOption {
	return func(l *TableLoader) {
		l.keyColumns = []string{table.NormalizeColumn(idColumn), table.NormalizeColumn(nameColumn)}
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *TableLoader) {
		l.now = now
	}
}

// NewTableLoader creates a loader for source.
func NewTableLoader(source outbound.TableSource, logger *slog.Logger, opts ...LoaderOption) *TableLoader {
	l := &TableLoader{
		source: source,
		logger: logger,
		ttl:    DefaultTableTTL,
		now:    time.Now,
		tracer: telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(l)
	}

	counter, err := otel.Meter(telemetry.InstrumentationName).Int64Counter(
		"sheetlogin.table.fetches",
		metric.WithDescription("Number of table fetches from the source"),
	)
	if err != nil {
		logger.Warn("failed to create fetch counter", "error", err)
	}
	l.fetches = counter

	return l
}

// SetOnLoad registers a callback invoked after every fetch, successful or not.
func (l *TableLoader) SetOnLoad(fn func(LoadResult)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLoad = fn
}

// Table returns the cached snapshot while it is fresh, otherwise it fetches
// a new one. Every error matches table.ErrSourceUnavailable.
func (l *TableLoader) Table(ctx context.Context) (*table.Table, error) {
	l.mu.RLock()
	t, at := l.current, l.loadedAt
	l.mu.RUnlock()

	if t != nil && l.ttl > 0 && l.now().Sub(at) < l.ttl {
		return t, nil
	}

	// The shared fetch must not fail for everyone when the first caller
	// goes away. The source applies its own timeout.
	v, err, _ := l.group.Do("table", func() (any, error) {
		return l.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*table.Table), nil
}

// Invalidate drops the cached snapshot so the next call fetches.
func (l *TableLoader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = nil
	l.loadedAt = time.Time{}
}

// Status reports the last load outcome.
func (l *TableLoader) Status() LoaderStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := LoaderStatus{
		Source:      l.source.Name(),
		LoadedAt:    l.loadedAt,
		LastErrorAt: l.lastErrAt,
	}
	if l.current != nil {
		st.Rows = l.current.Len()
		st.Columns = len(l.current.Columns())
		st.Fingerprint = fmt.Sprintf("%016x", l.lastFingerprint)
	}
	if l.lastErr != nil {
		st.LastError = l.lastErr.Error()
	}
	return st
}

func (l *TableLoader) load(ctx context.Context) (*table.Table, error) {
	ctx, span := l.tracer.Start(ctx, "table.Load",
		trace.WithAttributes(attribute.String("source", l.source.Name())))
	defer span.End()

	logger := telemetry.LoggerWithTrace(ctx, l.logger)
	start := time.Now()

	t, err := l.source.Fetch(ctx)
	if err == nil {
		err = t.RequireColumns(l.required...)
	}
	if err != nil && !errors.Is(err, table.ErrSourceUnavailable) {
		err = fmt.Errorf("%w: %v", table.ErrConnection, err)
	}
	elapsed := time.Since(start)

	res := LoadResult{Source: l.source.Name(), Duration: elapsed, Err: err}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.countFetch(ctx, "error")

		l.mu.Lock()
		l.current = nil
		l.loadedAt = time.Time{}
		l.lastErr = err
		l.lastErrAt = l.now()
		onLoad := l.onLoad
		l.mu.Unlock()

		logger.Error("table load failed", "source", l.source.Name(), "duration", elapsed, "error", err)
		if onLoad != nil {
			onLoad(res)
		}
		return nil, err
	}

	fp := t.Fingerprint()
	res.Rows = t.Len()
	res.Columns = len(t.Columns())
	res.Fingerprint = fp
	span.SetAttributes(
		attribute.Int("rows", res.Rows),
		attribute.Int("columns", res.Columns),
	)
	l.countFetch(ctx, "success")

	l.mu.Lock()
	changed := fp != l.lastFingerprint || l.lastErr != nil
	l.current = t
	l.loadedAt = l.now()
	l.lastFingerprint = fp
	l.lastErr = nil
	onLoad := l.onLoad
	l.mu.Unlock()

	attrs := []any{
		"source", l.source.Name(),
		"rows", res.Rows,
		"columns", res.Columns,
		"fingerprint", fmt.Sprintf("%016x", fp),
		"duration", elapsed,
	}
	if changed {
		logger.Info("table loaded", attrs...)
		if len(l.keyColumns) == 2 {
			if dups := t.DuplicateKeys(l.keyColumns...); dups > 0 {
				logger.Warn("table has rows with the same id and name, the first one wins", "duplicates", dups)
			}
		}
	} else {
		logger.Debug("table reloaded, unchanged", attrs...)
	}

	if onLoad != nil {
		onLoad(res)
	}
	return t, nil
}

func (l *TableLoader) countFetch(ctx context.Context, result string) {
	if l.fetches == nil {
		return
	}
	l.fetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", l.source.Name()),
		attribute.String("result", result),
	))
}

var _ TableProvider = (*TableLoader)(nil)
