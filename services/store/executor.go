// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store executes parameterized report queries against the retail
// Postgres database. Report templates use :name placeholders which are
// rewritten to positional arguments before execution; raw string
// interpolation into SQL is rejected outright.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ==== Observability ====

var (
	queryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storebot_report_query_latency_seconds",
		Help:    "Latency of report query execution, labeled by outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	queryRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storebot_report_query_retries_total",
		Help: "Number of report queries retried after a timeout.",
	})
)

var storeTracer = otel.Tracer("storebot.store")

// ==== Errors ====

var (
	// ErrUnsafeTemplate indicates a query template that carries format verbs
	// instead of named placeholders. Such templates are never executed.
	ErrUnsafeTemplate = errors.New("store: query template contains format verbs")

	// ErrQueryFailed wraps database errors so callers can distinguish
	// execution failures from binding problems.
	ErrQueryFailed = errors.New("store: query execution failed")
)

// ==== Types ====

// Row is a single result row keyed by column name. Byte slices from the
// driver are converted to strings so rows serialize cleanly as JSON.
type Row map[string]any

// Executor runs named-parameter SQL templates with a per-call timeout.
//
// Thread Safety: safe for concurrent use; *sql.DB manages its own pool.
type Executor struct {
	db           *sql.DB
	queryTimeout time.Duration
	logger       *slog.Logger
}

// ==== Construction ====

// Open connects to Postgres using a lib/pq connection string or URL and
// verifies the connection with a ping.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	return db, nil
}

// NewExecutor wraps db with the given per-query timeout. A zero timeout
// defaults to 15 seconds.
func NewExecutor(db *sql.DB, queryTimeout time.Duration, logger *slog.Logger) *Executor {
	if queryTimeout <= 0 {
		queryTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{db: db, queryTimeout: queryTimeout, logger: logger}
}

// ==== Execution ====

// Execute binds params into the named-placeholder template and runs it,
// returning all rows. A query that times out is retried exactly once; an
// empty result set is a valid outcome, not an error.
func (e *Executor) Execute(ctx context.Context, template string, params map[string]any) ([]Row, error) {
	ctx, span := storeTracer.Start(ctx, "store.Execute")
	defer span.End()

	query, args, err := bindNamed(template, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bind failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("store.param_count", len(args)))

	start := time.Now()
	rows, err := e.query(ctx, query, args)
	if err != nil && isTimeout(err) && ctx.Err() == nil {
		queryRetriesTotal.Inc()
		e.logger.Warn("report query timed out, retrying once")
		rows, err = e.query(ctx, query, args)
	}
	if err != nil {
		queryLatency.WithLabelValues("error").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	queryLatency.WithLabelValues("success").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("store.row_count", len(rows)))
	return rows, nil
}

func (e *Executor) query(ctx context.Context, query string, args []any) ([]Row, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.db.QueryContext(callCtx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ==== Named parameter binding ====

// bindNamed rewrites :name placeholders to $1..$N positional arguments.
// Repeated names reuse the same position. The `::` cast operator is left
// untouched. Every placeholder must have a value and every value must be
// referenced, so a mis-declared report fails loudly instead of silently
// running with defaults.
func bindNamed(template string, params map[string]any) (string, []any, error) {
	for _, verb := range []string{"%s", "%d", "%v"} {
		if strings.Contains(template, verb) {
			return "", nil, ErrUnsafeTemplate
		}
	}

	var (
		sb       strings.Builder
		args     []any
		position = make(map[string]int)
	)
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != ':' {
			sb.WriteByte(c)
			continue
		}
		// Postgres cast operator.
		if i+1 < len(template) && template[i+1] == ':' {
			sb.WriteString("::")
			i++
			continue
		}
		start := i + 1
		end := start
		for end < len(template) && isIdentChar(template[end]) {
			end++
		}
		if end == start {
			sb.WriteByte(c)
			continue
		}
		name := template[start:end]
		idx, seen := position[name]
		if !seen {
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("store: no value bound for placeholder :%s", name)
			}
			args = append(args, value)
			idx = len(args)
			position[name] = idx
		}
		fmt.Fprintf(&sb, "$%d", idx)
		i = end - 1
	}

	if len(position) != len(params) {
		var unused []string
		for name := range params {
			if _, ok := position[name]; !ok {
				unused = append(unused, name)
			}
		}
		sort.Strings(unused)
		return "", nil, fmt.Errorf("store: parameters not referenced by template: %s", strings.Join(unused, ", "))
	}
	return sb.String(), args, nil
}

func isIdentChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
