// Package query describes raw SQL execution against a user supplied database.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nl2sql/nl2sql/internal/targetdb"
)

const DefaultQueryType = "SELECT"

type Request struct {
	Dialect   targetdb.Dialect
	Params    targetdb.Params
	SQL       string
	QueryType string
	RowLimit  int
}

type Result struct {
	Columns      []string
	Rows         []Row
	RowsAffected int64
	Truncated    bool
	Duration     time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// Row is one result row. It encodes as a JSON object whose keys keep column order.
type Row struct {
	Columns []string
	Values  []any
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var value any
		if i < len(r.Values) {
			value = r.Values[i]
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Map returns the row keyed by column name.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, column := range r.Columns {
		if i < len(r.Values) {
			out[column] = r.Values[i]
		} else {
			out[column] = nil
		}
	}
	return out
}

// ResolveQueryType returns the upper-cased declared type, defaulting to SELECT.
// SQL text that itself begins with SELECT always resolves to SELECT.
func ResolveQueryType(declared, sqlText string) string {
	if leadingKeyword(sqlText) == "SELECT" {
		return DefaultQueryType
	}
	if value := strings.ToUpper(strings.TrimSpace(declared)); value != "" {
		return value
	}
	return DefaultQueryType
}

// ReturnsRows reports whether the statement is expected to produce a result set.
func ReturnsRows(sqlText string) bool {
	switch leadingKeyword(sqlText) {
	case "SELECT", "WITH", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "PRAGMA", "VALUES", "TABLE":
		return true
	default:
		return false
	}
}

func leadingKeyword(sqlText string) string {
	trimmed := strings.TrimLeft(sqlText, " \t\r\n(")
	end := strings.IndexFunc(trimmed, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		end = len(trimmed)
	}
	return strings.ToUpper(trimmed[:end])
}
