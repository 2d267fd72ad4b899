package schema

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/nl2sql/nl2sql/internal/targetdb"
)

func TestFetchSummaryTruncatesTables(t *testing.T) {
	db, mock := newSQLMock(t)
	queries, _ := queriesFor(targetdb.MySQL)

	mock.ExpectQuery(regexp.QuoteMeta(queries.tables)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("customers").AddRow("orders").AddRow("products").AddRow("refunds").AddRow("stores"))
	mock.ExpectQuery(regexp.QuoteMeta(queries.columns)).
		WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "size"}).
			AddRow("id", "int", int64(10)).
			AddRow("name", "varchar", int64(255)))
	mock.ExpectQuery(regexp.QuoteMeta(queries.columns)).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "size"}).
			AddRow("id", "int", int64(10)).
			AddRow("created_at", "datetime", nil))
	mock.ExpectClose()

	introspector := NewIntrospector(&stubOpener{db: db}, nil)
	summary := introspector.FetchSummary(context.Background(), targetdb.MySQL, targetdb.Params{}, Limits{MaxTables: 2, MaxColumnsPerTable: 10})

	if got := strings.Count(summary, "TABLE: "); got != 2 {
		t.Fatalf("table blocks = %d, summary=%q", got, summary)
	}
	if !strings.HasSuffix(summary, tablesTruncatedMarker) {
		t.Fatalf("summary missing table truncation marker: %q", summary)
	}
	if !strings.Contains(summary, "  - name VARCHAR(255)") {
		t.Fatalf("summary missing sized column: %q", summary)
	}
	if !strings.Contains(summary, "  - created_at DATETIME\n") {
		t.Fatalf("summary should omit size when absent: %q", summary)
	}
	assertSQLMock(t, mock)
}

func TestFetchSummaryStopsAtTimeout(t *testing.T) {
	db, mock := newSQLMock(t)
	queries, _ := queriesFor(targetdb.MySQL)

	mock.ExpectQuery(regexp.QuoteMeta(queries.tables)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders"))
	mock.ExpectQuery(regexp.QuoteMeta(queries.columns)).
		WithArgs("orders").
		WillDelayFor(2 * time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "size"}).AddRow("id", "int", int64(10)))
	mock.ExpectClose()

	introspector := NewIntrospector(&stubOpener{db: db}, nil)
	start := time.Now()
	summary := introspector.FetchSummary(context.Background(), targetdb.MySQL, targetdb.Params{},
		Limits{MaxTables: 10, MaxColumnsPerTable: 10, Timeout: 50 * time.Millisecond})

	if !IsSentinel(summary) {
		t.Fatalf("summary should be the sentinel, got %q", summary)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("introspection ignored its timeout: %s", elapsed)
	}
}

func TestFetchSummaryTruncatesColumnsPerTable(t *testing.T) {
	db, mock := newSQLMock(t)
	queries, _ := queriesFor(targetdb.Postgres)

	mock.ExpectQuery(regexp.QuoteMeta(queries.tables)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("wide").AddRow("narrow"))
	mock.ExpectQuery(regexp.QuoteMeta(queries.columns)).
		WithArgs("wide").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "size"}).
			AddRow("a", "integer", int64(32)).
			AddRow("b", "integer", int64(32)).
			AddRow("c", "integer", int64(32)))
	mock.ExpectQuery(regexp.QuoteMeta(queries.columns)).
		WithArgs("narrow").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "size"}).
			AddRow("a", "text", nil).
			AddRow("b", "text", nil))
	mock.ExpectClose()

	introspector := NewIntrospector(&stubOpener{db: db}, nil)
	snapshot, err := introspector.Inspect(context.Background(), targetdb.Postgres, targetdb.Params{}, Limits{MaxTables: 5, MaxColumnsPerTable: 2})
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if snapshot.TablesTruncated {
		t.Fatal("tables should not be truncated")
	}
	if !snapshot.Tables[0].ColumnsTruncated || len(snapshot.Tables[0].Columns) != 2 {
		t.Fatalf("wide table = %#v", snapshot.Tables[0])
	}
	if snapshot.Tables[1].ColumnsTruncated {
		t.Fatal("narrow table exactly at cap should not be truncated")
	}

	summary := snapshot.Summary()
	if strings.Count(summary, columnsTruncatedMarker) != 1 {
		t.Fatalf("summary = %q", summary)
	}
	if strings.Contains(summary, tablesTruncatedMarker) {
		t.Fatalf("unexpected table marker: %q", summary)
	}
	assertSQLMock(t, mock)
}

func TestFetchSummaryReturnsSentinelOnConnectFailure(t *testing.T) {
	introspector := NewIntrospector(&stubOpener{err: &targetdb.ConnectionError{Target: "mysql://db:3306/shop", Err: errors.New("access denied")}}, nil)
	summary := introspector.FetchSummary(context.Background(), targetdb.MySQL, targetdb.Params{}, Limits{MaxTables: 50, MaxColumnsPerTable: 50})

	if !IsSentinel(summary) {
		t.Fatalf("summary = %q, want sentinel", summary)
	}
	if !strings.Contains(summary, "access denied") {
		t.Fatalf("sentinel should carry failure message: %q", summary)
	}
}

func TestFetchSummaryClosesConnectionOnQueryFailure(t *testing.T) {
	db, mock := newSQLMock(t)
	queries, _ := queriesFor(targetdb.MySQL)

	mock.ExpectQuery(regexp.QuoteMeta(queries.tables)).WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()

	introspector := NewIntrospector(&stubOpener{db: db}, nil)
	summary := introspector.FetchSummary(context.Background(), targetdb.MySQL, targetdb.Params{}, Limits{MaxTables: 50, MaxColumnsPerTable: 50})
	if !strings.HasPrefix(summary, "SCHEMA-ERROR: Unable to fetch schema: list tables: permission denied") {
		t.Fatalf("summary = %q", summary)
	}
	assertSQLMock(t, mock)
}

func TestFetchSummaryWithoutOpenerIsSentinel(t *testing.T) {
	var introspector *Introspector
	summary := introspector.FetchSummary(context.Background(), targetdb.MySQL, targetdb.Params{}, Limits{MaxTables: 1, MaxColumnsPerTable: 1})
	if !IsSentinel(summary) {
		t.Fatalf("summary = %q", summary)
	}
}

type stubOpener struct {
	db  *sql.DB
	err error
}

func (s *stubOpener) Open(context.Context, targetdb.Dialect, targetdb.Params) (*sql.DB, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.db, nil
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations not met: %v", err)
	}
}
