package nl2sql

import (
	"encoding/json"
	"fmt"
	"strings"
)

const unknownValue = "Unknown"

// ParsedFields holds the decoded model reply. Diagnostic is set only when decoding failed.
type ParsedFields struct {
	SQL          string
	Explanation  string
	OptimizedSQL string
	Complexity   string
	Cost         string
	Suggestions  []string
	Indexes      []string
	Diagnostic   string
}

func (p ParsedFields) Failed() bool {
	return p.Diagnostic != ""
}

type scalarField struct {
	key          string
	fallback     string
	optimizeOnly bool
	set          func(*ParsedFields, string)
}

type listField struct {
	key          string
	optimizeOnly bool
	set          func(*ParsedFields, []string)
}

var scalarFields = []scalarField{
	{key: "sql", fallback: "", set: func(p *ParsedFields, v string) { p.SQL = v }},
	{key: "explanation", fallback: "", set: func(p *ParsedFields, v string) { p.Explanation = v }},
	{key: "optimized_sql", fallback: "", optimizeOnly: true, set: func(p *ParsedFields, v string) { p.OptimizedSQL = v }},
	{key: "complexity", fallback: unknownValue, optimizeOnly: true, set: func(p *ParsedFields, v string) { p.Complexity = v }},
	{key: "cost", fallback: unknownValue, optimizeOnly: true, set: func(p *ParsedFields, v string) { p.Cost = v }},
}

var listFields = []listField{
	{key: "suggestions", optimizeOnly: true, set: func(p *ParsedFields, v []string) { p.Suggestions = v }},
	{key: "indexes", optimizeOnly: true, set: func(p *ParsedFields, v []string) { p.Indexes = v }},
}

// Parse decodes a model reply. It never fails: undecodable text yields a ParsedFields
// with defaults and a Diagnostic carrying the decode error and the cleaned text.
// Fields that only matter in optimize mode are left zero in generate mode.
func Parse(raw string, mode Mode) ParsedFields {
	cleaned := StripFences(raw)
	object, err := decodeObject(cleaned)
	if err != nil {
		parsed := defaults()
		parsed.Diagnostic = fmt.Sprintf("JSON Parse Error: %v\nRAW: %s", err, cleaned)
		return parsed
	}

	parsed := ParsedFields{}
	for _, field := range scalarFields {
		if field.optimizeOnly && mode != ModeOptimize {
			continue
		}
		value, ok := scalarText(object[field.key])
		if !ok {
			value = field.fallback
		}
		field.set(&parsed, value)
	}
	for _, field := range listFields {
		if field.optimizeOnly && mode != ModeOptimize {
			continue
		}
		field.set(&parsed, stringList(object[field.key]))
	}
	return parsed
}

func defaults() ParsedFields {
	parsed := ParsedFields{}
	for _, field := range scalarFields {
		field.set(&parsed, field.fallback)
	}
	for _, field := range listFields {
		field.set(&parsed, []string{})
	}
	return parsed
}

// decodeObject reads the first JSON value and ignores anything the model wrote after it.
func decodeObject(text string) (map[string]any, error) {
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level JSON value is not an object")
	}
	return object, nil
}

// scalarText renders strings as-is and numbers or booleans as their JSON text.
// Absent, null and container values report false.
func scalarText(value any) (string, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	case bool:
		if typed {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

// stringList accepts only JSON arrays. Elements that are not scalars are skipped.
func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if text, ok := scalarText(item); ok {
			out = append(out, text)
		}
	}
	return out
}

// StripFences removes a surrounding markdown code fence, including an optional language tag.
func StripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimLeftFunc(trimmed, func(r rune) bool {
			return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
		})
	}
	trimmed = strings.TrimSpace(trimmed)
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	return strings.TrimSpace(trimmed)
}
