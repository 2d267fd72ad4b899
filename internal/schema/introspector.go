// Package schema summarizes the tables and columns of a target database for prompt grounding.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nl2sql/nl2sql/internal/observability"
	"github.com/nl2sql/nl2sql/internal/targetdb"
)

// SentinelPrefix marks a summary that carries an introspection failure instead of schema.
const SentinelPrefix = "SCHEMA-ERROR:"

const (
	tablesTruncatedMarker  = "... (more tables truncated)"
	columnsTruncatedMarker = "  - ... (more columns truncated)"
)

type Limits struct {
	MaxTables          int
	MaxColumnsPerTable int
	// Timeout bounds the whole introspection, connection included. Zero means no bound.
	Timeout time.Duration
}

type Column struct {
	Name string
	Type string
	Size int64
}

type Table struct {
	Name             string
	Columns          []Column
	ColumnsTruncated bool
}

type Snapshot struct {
	Tables          []Table
	TablesTruncated bool
}

type Introspector struct {
	Opener targetdb.Opener
	Logger *slog.Logger
}

func NewIntrospector(opener targetdb.Opener, logger *slog.Logger) *Introspector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Introspector{Opener: opener, Logger: logger}
}

// FetchSummary never fails: on any error it returns a SentinelPrefix string carrying the message.
func (i *Introspector) FetchSummary(ctx context.Context, dialect targetdb.Dialect, params targetdb.Params, limits Limits) string {
	snapshot, err := i.Inspect(ctx, dialect, params, limits)
	if err != nil {
		observability.ObserveSchemaIntrospection("error")
		i.logger().WarnContext(ctx, "schema introspection failed",
			slog.String("target", params.URL(dialect)),
			slog.Any("error", err),
		)
		return Sentinel(err)
	}
	observability.ObserveSchemaIntrospection("ok")
	i.logger().DebugContext(ctx, "schema introspection completed",
		slog.String("target", params.URL(dialect)),
		slog.Int("tables", len(snapshot.Tables)),
		slog.Bool("tables_truncated", snapshot.TablesTruncated),
	)
	return snapshot.Summary()
}

// Inspect reads at most limits.MaxTables tables and limits.MaxColumnsPerTable columns per table
// within limits.Timeout. The connection is released before returning.
func (i *Introspector) Inspect(ctx context.Context, dialect targetdb.Dialect, params targetdb.Params, limits Limits) (Snapshot, error) {
	if i == nil || i.Opener == nil {
		return Snapshot{}, fmt.Errorf("schema introspection is not configured")
	}
	if limits.MaxTables <= 0 || limits.MaxColumnsPerTable <= 0 {
		return Snapshot{}, fmt.Errorf("schema limits must be > 0")
	}
	queries, err := queriesFor(dialect)
	if err != nil {
		return Snapshot{}, err
	}
	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.Timeout)
		defer cancel()
	}

	db, err := i.Opener.Open(ctx, dialect, params)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = db.Close() }()

	names, truncated, err := listTables(ctx, db, queries.tables, limits.MaxTables)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{Tables: make([]Table, 0, len(names)), TablesTruncated: truncated}
	for _, name := range names {
		columns, colsTruncated, err := listColumns(ctx, db, queries.columns, name, limits.MaxColumnsPerTable)
		if err != nil {
			return Snapshot{}, err
		}
		snapshot.Tables = append(snapshot.Tables, Table{Name: name, Columns: columns, ColumnsTruncated: colsTruncated})
	}
	return snapshot, nil
}

func (s Snapshot) Summary() string {
	var b strings.Builder
	for _, table := range s.Tables {
		b.WriteString("TABLE: ")
		b.WriteString(table.Name)
		b.WriteByte('\n')
		for _, column := range table.Columns {
			b.WriteString("  - ")
			b.WriteString(column.Name)
			b.WriteByte(' ')
			b.WriteString(column.Type)
			if column.Size > 0 {
				b.WriteString("(" + strconv.FormatInt(column.Size, 10) + ")")
			}
			b.WriteByte('\n')
		}
		if table.ColumnsTruncated {
			b.WriteString(columnsTruncatedMarker + "\n")
		}
	}
	if s.TablesTruncated {
		b.WriteString(tablesTruncatedMarker + "\n")
	}
	return strings.TrimSpace(b.String())
}

func Sentinel(err error) string {
	return SentinelPrefix + " Unable to fetch schema: " + err.Error()
}

func IsSentinel(summary string) bool {
	return strings.HasPrefix(summary, SentinelPrefix)
}

func (i *Introspector) logger() *slog.Logger {
	if i == nil || i.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return i.Logger
}

type dialectQueries struct {
	tables  string
	columns string
}

func queriesFor(dialect targetdb.Dialect) (dialectQueries, error) {
	switch dialect {
	case targetdb.MySQL:
		return dialectQueries{
			tables: `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`,
			columns: `
SELECT column_name, data_type, COALESCE(character_maximum_length, numeric_precision, 0)
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`,
		}, nil
	case targetdb.Postgres:
		return dialectQueries{
			tables: `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`,
			columns: `
SELECT column_name, data_type, COALESCE(character_maximum_length, numeric_precision, 0)
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`,
		}, nil
	case targetdb.DuckDB:
		return dialectQueries{
			tables: `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type IN ('BASE TABLE', 'VIEW')
ORDER BY table_name`,
			columns: `
SELECT column_name, data_type, COALESCE(character_maximum_length, numeric_precision, 0)
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = ?
ORDER BY ordinal_position`,
		}, nil
	default:
		return dialectQueries{}, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func listTables(ctx context.Context, db *sql.DB, query string, max int) ([]string, bool, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	truncated := false
	for rows.Next() {
		if len(names) == max {
			truncated = true
			break
		}
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, false, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate tables: %w", err)
	}
	return names, truncated, nil
}

func listColumns(ctx context.Context, db *sql.DB, query, table string, max int) ([]Column, bool, error) {
	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, false, fmt.Errorf("list columns for %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	truncated := false
	for rows.Next() {
		if len(columns) == max {
			truncated = true
			break
		}
		var (
			name     string
			dataType string
			size     sql.NullInt64
		)
		if err := rows.Scan(&name, &dataType, &size); err != nil {
			return nil, false, fmt.Errorf("scan column for %q: %w", table, err)
		}
		columns = append(columns, Column{Name: name, Type: strings.ToUpper(dataType), Size: size.Int64})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate columns for %q: %w", table, err)
	}
	return columns, truncated, nil
}
