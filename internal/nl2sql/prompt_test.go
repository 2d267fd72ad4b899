package nl2sql

import (
	"strings"
	"testing"

	"github.com/nl2sql/nl2sql/internal/targetdb"
)

func TestBuildPromptIsDeterministic(t *testing.T) {
	summary := "TABLE: customers\n  - id INT(11)\n"
	first := BuildPrompt(ModeGenerate, targetdb.MySQL, "SELECT", "Top 5 customers by revenue", summary)
	second := BuildPrompt(ModeGenerate, targetdb.MySQL, "SELECT", "Top 5 customers by revenue", summary)
	if first != second {
		t.Fatal("BuildPrompt() should be byte-identical for identical input")
	}
}

func TestBuildPromptGenerateEmbedsSchemaBetweenMarkers(t *testing.T) {
	summary := "TABLE: orders\n  - id BIGINT"
	prompt := BuildPrompt(ModeGenerate, targetdb.Postgres, "insert", "add an order", summary)

	start := strings.Index(prompt, SchemaStartMarker)
	end := strings.Index(prompt, SchemaEndMarker)
	if start < 0 || end < 0 || end < start {
		t.Fatalf("schema markers missing or misordered:\n%s", prompt)
	}
	if !strings.Contains(prompt[start:end], summary) {
		t.Fatalf("schema summary not between markers:\n%s", prompt)
	}
	for _, want := range []string{
		"INSERT SQL queries for PostgreSQL",
		"do NOT invent tables or columns",
		"SCHEMA-ERROR",
		`"sql"`,
		`"explanation"`,
		"User intent: add an order",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptGenerateDefaultsQueryType(t *testing.T) {
	prompt := BuildPrompt(ModeGenerate, targetdb.MySQL, " ", "list users", "")
	if !strings.Contains(prompt, "correct SELECT SQL queries for MySQL") {
		t.Fatalf("prompt should default to SELECT:\n%s", prompt)
	}
}

func TestBuildPromptOptimizeEmbedsSQLVerbatim(t *testing.T) {
	sqlText := "SELECT *\n  FROM orders WHERE note = 'a  b'"
	prompt := BuildPrompt(ModeOptimize, targetdb.MySQL, "SELECT", sqlText, "TABLE: ignored")
	if !strings.Contains(prompt, sqlText) {
		t.Fatalf("optimize prompt must embed sql verbatim:\n%s", prompt)
	}
	for _, field := range []string{"optimized_sql", "suggestions", "indexes", "complexity", "cost", "explanation"} {
		if !strings.Contains(prompt, `"`+field+`"`) {
			t.Fatalf("optimize prompt missing field %q", field)
		}
	}
	if strings.Contains(prompt, SchemaStartMarker) {
		t.Fatal("optimize prompt should not embed the schema")
	}
}
