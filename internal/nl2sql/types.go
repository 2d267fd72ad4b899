// Package nl2sql turns natural language (or existing SQL) into SQL through a hosted language model.
package nl2sql

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nl2sql/nl2sql/internal/targetdb"
)

const MaxTextLength = 1000

type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeOptimize Mode = "optimize"
)

var (
	ErrTextRequired = errors.New("text is required")
	ErrTextTooLong  = fmt.Errorf("text must be at most %d characters", MaxTextLength)
)

type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type Request struct {
	Text      string `json:"text"`
	Dialect   string `json:"dialect"`
	QueryType string `json:"queryType"`
	Host      string `json:"host"`
	Port      string `json:"port"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Optimize  bool   `json:"optimize"`
}

func (r Request) Mode() Mode {
	if r.Optimize {
		return ModeOptimize
	}
	return ModeGenerate
}

func (r Request) Params() targetdb.Params {
	return targetdb.Params{
		Host:     r.Host,
		Port:     r.Port,
		Database: r.Database,
		Username: r.Username,
		Password: r.Password,
	}
}

// Validate checks the text constraints and resolves the dialect, defaulting to MYSQL.
func (r Request) Validate() (targetdb.Dialect, error) {
	if strings.TrimSpace(r.Text) == "" {
		return "", &ValidationError{Field: "text", Err: ErrTextRequired}
	}
	if utf8.RuneCountInString(r.Text) > MaxTextLength {
		return "", &ValidationError{Field: "text", Err: ErrTextTooLong}
	}
	dialect, err := targetdb.ParseDialect(r.Dialect)
	if err != nil {
		return "", &ValidationError{Field: "dialect", Err: err}
	}
	return dialect, nil
}

// Result is the wire shape of a translation. Nil pointers and slices encode as JSON null.
type Result struct {
	SQL          string   `json:"sql"`
	Dialect      string   `json:"dialect"`
	Model        string   `json:"model"`
	LatencyMs    int64    `json:"latencyMs"`
	Warning      *string  `json:"warning"`
	Message      *string  `json:"message"`
	Explanation  *string  `json:"explanation"`
	OptimizedSQL *string  `json:"optimizedSql"`
	Suggestions  []string `json:"suggestions"`
	Indexes      []string `json:"indexes"`
	Complexity   *string  `json:"complexity"`
	Cost         *string  `json:"cost"`
}

const (
	WarningRequestFailed   = "Request failed"
	WarningInvalidResponse = "Invalid response format"
	WarningParseFailed     = "Failed to parse model output"
)

func stringPtr(value string) *string {
	return &value
}
