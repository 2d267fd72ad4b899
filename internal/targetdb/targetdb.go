// Package targetdb opens connections to user-supplied relational databases.
package targetdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

type Dialect string

const (
	MySQL    Dialect = "MYSQL"
	Postgres Dialect = "POSTGRES"
	DuckDB   Dialect = "DUCKDB"
)

const (
	DefaultMySQLPort    = "3306"
	DefaultPostgresPort = "5432"
	defaultHost         = "localhost"
	defaultPingTimeout  = 5 * time.Second
)

// ParseDialect resolves a request dialect. Blank input resolves to MySQL.
func ParseDialect(raw string) (Dialect, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(MySQL), "MARIADB":
		return MySQL, nil
	case string(Postgres), "POSTGRESQL", "PG":
		return Postgres, nil
	case string(DuckDB):
		return DuckDB, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", raw)
	}
}

func (d Dialect) DisplayName() string {
	switch d {
	case Postgres:
		return "PostgreSQL"
	case DuckDB:
		return "DuckDB"
	default:
		return "MySQL"
	}
}

func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case DuckDB:
		return "duckdb"
	default:
		return "mysql"
	}
}

func (d Dialect) DefaultPort() string {
	if d == Postgres {
		return DefaultPostgresPort
	}
	return DefaultMySQLPort
}

type Params struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ToConnectionURL formats a credential-free MySQL connection URL, defaulting a blank port to 3306.
func ToConnectionURL(host, port, database string) string {
	if strings.TrimSpace(port) == "" {
		port = DefaultMySQLPort
	}
	return fmt.Sprintf("mysql://%s:%s/%s", strings.TrimSpace(host), strings.TrimSpace(port), strings.TrimSpace(database))
}

// URL is the credential-free form of the target, safe for logs.
func (p Params) URL(d Dialect) string {
	switch d {
	case Postgres:
		return fmt.Sprintf("postgres://%s/%s", net.JoinHostPort(p.host(), p.port(d)), strings.TrimSpace(p.Database))
	case DuckDB:
		return "duckdb://" + strings.TrimSpace(p.Database)
	default:
		return ToConnectionURL(p.Host, p.Port, p.Database)
	}
}

// DSN builds the driver specific data source name.
func (p Params) DSN(d Dialect) (string, error) {
	switch d {
	case MySQL:
		cfg := mysql.NewConfig()
		cfg.User = p.Username
		cfg.Passwd = p.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(p.host(), p.port(d))
		cfg.DBName = strings.TrimSpace(p.Database)
		cfg.ParseTime = true
		cfg.Timeout = defaultPingTimeout
		return cfg.FormatDSN(), nil
	case Postgres:
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(p.host(), p.port(d)),
			Path:     "/" + strings.TrimSpace(p.Database),
			RawQuery: "connect_timeout=5",
		}
		if p.Username != "" {
			u.User = url.UserPassword(p.Username, p.Password)
		}
		return u.String(), nil
	case DuckDB:
		file := strings.TrimSpace(p.Database)
		if strings.ContainsAny(file, "?#") {
			return "", fmt.Errorf("invalid duckdb database path %q", file)
		}
		// External access stays off so SQL cannot read or write server files.
		return file + "?enable_external_access=false", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", d)
	}
}

func (p Params) host() string {
	if host := strings.TrimSpace(p.Host); host != "" {
		return host
	}
	return defaultHost
}

func (p Params) port(d Dialect) string {
	if port := strings.TrimSpace(p.Port); port != "" {
		return port
	}
	return d.DefaultPort()
}

// ConnectionError reports that a target database could not be reached.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Opener hands out a connection scoped to a single call. Callers must Close it.
type Opener interface {
	Open(ctx context.Context, dialect Dialect, params Params) (*sql.DB, error)
}

// ErrDialectDisabled is returned when a DuckDB target is requested but not enabled.
var ErrDialectDisabled = errors.New("dialect is disabled")

type DriverOpener struct {
	PingTimeout time.Duration
	// AllowDuckDB enables local DuckDB database files as targets.
	AllowDuckDB bool
}

func (o DriverOpener) Open(ctx context.Context, dialect Dialect, params Params) (*sql.DB, error) {
	target := params.URL(dialect)
	if dialect == DuckDB && !o.AllowDuckDB {
		return nil, &ConnectionError{Target: target, Err: ErrDialectDisabled}
	}
	dsn, err := params.DSN(dialect)
	if err != nil {
		return nil, &ConnectionError{Target: target, Err: err}
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, &ConnectionError{Target: target, Err: fmt.Errorf("open: %w", err)}
	}
	db.SetMaxOpenConns(1)

	timeout := o.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Target: target, Err: fmt.Errorf("ping: %w", err)}
	}
	return db, nil
}

// TestConnection opens and immediately releases a connection.
func TestConnection(ctx context.Context, opener Opener, dialect Dialect, params Params) error {
	db, err := opener.Open(ctx, dialect, params)
	if err != nil {
		return err
	}
	return db.Close()
}
