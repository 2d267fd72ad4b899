package businessmodel

import (
	"fmt"

	"github.com/nl2sql/nl2sql/internal/targetdb"
)

const promptTemplate = `You are an expert database architect.

Generate a COMPLETE database schema for the following business model:

%s

OUTPUT MUST BE STRICT JSON WITH FIELDS:
{
  "entities": [...],
  "relationships": [...],
  "description": "...",
  "sql_script": "..."
}

RULES:
Entities must include:
  - name
  - attributes: name, data_type, PK, FK, unique, AI, not_null, default

Relationships must include:
  - from_entity
  - to_entity
  - type (one-to-one, one-to-many, many-to-many)
  - FK details

sql_script MUST:
  - contain ONLY SQL (no comments, no markdown)
  - use proper %s syntax
  - include CREATE TABLE statements
  - include PRIMARY KEY, FOREIGN KEY, UNIQUE, NOT NULL and auto-increment columns
  - be ordered so that FOREIGN KEY references do not break

Ensure the output is valid JSON with no text outside the JSON.
`

func BuildPrompt(modelName string, dialect targetdb.Dialect) string {
	return fmt.Sprintf(promptTemplate, modelName, dialect.DisplayName())
}
