package nl2sql

import (
	"fmt"
	"strings"

	"github.com/nl2sql/nl2sql/internal/targetdb"
)

const (
	SchemaStartMarker = "=== SCHEMA START ==="
	SchemaEndMarker   = "=== SCHEMA END ==="
)

const optimizeTemplate = `You are a SQL optimization engine for %s.
Return a STRICT JSON object with ALL of the following fields ALWAYS present:
  "optimized_sql": string,
  "suggestions": array of strings (at least 2 suggestions),
  "indexes": array of strings (at least 1 index recommendation),
  "complexity": string (Big-O notation),
  "cost": string (Low/Medium/High),
  "explanation": string
Do not wrap the JSON in markdown and do not add any prose around it.

SQL Query:
%s
`

const generateTemplate = `You are an expert at generating correct %s SQL queries for %s.
Below is the actual schema of the target database (tables and columns). Use this schema and do NOT invent tables or columns.
If the schema could not be fetched, you will see a SCHEMA-ERROR message; in that case, respond with a short explanation asking the user to provide valid database credentials or to describe the table.

%s
%s
%s

Now generate a syntactically correct %s query for the user's intent.
Return STRICT JSON ONLY, with no markdown and no prose around it:
{
  "sql": "...",
  "explanation": "..."
}

User intent: %s
`

// BuildPrompt renders the model prompt. It is a pure function of its arguments.
func BuildPrompt(mode Mode, dialect targetdb.Dialect, queryType, userText, schemaSummary string) string {
	if mode == ModeOptimize {
		return fmt.Sprintf(optimizeTemplate, dialect.DisplayName(), userText)
	}
	queryType = strings.ToUpper(strings.TrimSpace(queryType))
	if queryType == "" {
		queryType = "SELECT"
	}
	return fmt.Sprintf(generateTemplate,
		queryType, dialect.DisplayName(),
		SchemaStartMarker, strings.TrimRight(schemaSummary, "\n"), SchemaEndMarker,
		queryType, userText,
	)
}
