// Package sqlexec runs raw SQL against the target database through a targetdb.Opener.
package sqlexec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nl2sql/nl2sql/internal/query"
	"github.com/nl2sql/nl2sql/internal/targetdb"
)

type Engine struct {
	Opener   targetdb.Opener
	RowLimit int
	Timeout  time.Duration
}

func NewEngine(opener targetdb.Opener, rowLimit int, timeout time.Duration) *Engine {
	return &Engine{Opener: opener, RowLimit: rowLimit, Timeout: timeout}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if e.Opener == nil {
		return query.Result{}, fmt.Errorf("database opener is required")
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	start := time.Now()
	db, err := e.Opener.Open(ctx, request.Dialect, request.Params)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = db.Close() }()

	if !query.ReturnsRows(sqlText) && !strings.EqualFold(strings.TrimSpace(request.QueryType), query.DefaultQueryType) {
		res, err := db.ExecContext(ctx, sqlText)
		if err != nil {
			return query.Result{}, fmt.Errorf("execute statement: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		return query.Result{
			Columns:      []string{},
			Rows:         []query.Row{},
			RowsAffected: affected,
			Duration:     time.Since(start),
		}, nil
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	limit := e.rowLimit(request.RowLimit)
	resultRows := make([]query.Row, 0)
	truncated := false
	for rows.Next() {
		if limit > 0 && len(resultRows) == limit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, query.Row{Columns: columns, Values: normalizeValues(values)})
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func (e *Engine) rowLimit(requested int) int {
	if requested > 0 && (e.RowLimit <= 0 || requested < e.RowLimit) {
		return requested
	}
	return e.RowLimit
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
