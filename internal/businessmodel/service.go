// Package businessmodel asks the language model to design a relational schema for a business domain.
package businessmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nl2sql/nl2sql/internal/llm"
	"github.com/nl2sql/nl2sql/internal/nl2sql"
	"github.com/nl2sql/nl2sql/internal/observability"
	"github.com/nl2sql/nl2sql/internal/targetdb"
)

// FallbackDescription is returned as the schema description whenever generation fails.
const FallbackDescription = `{"entities":[],"relationships":[],"description":"Error generating schema"}`

const scriptField = "sql_script"

var ErrModelNameRequired = errors.New("modelName is required")

type Request struct {
	ModelName string `json:"modelName"`
	Dialect   string `json:"dialect"`
	Archive   bool   `json:"archive"`
}

type Response struct {
	ModelName         string  `json:"modelName"`
	SchemaDescription string  `json:"schemaDescription"`
	ERDiagram         *string `json:"erDiagram"`
	Latency           int64   `json:"latency"`
	Error             *string `json:"error"`
	SQLScript         string  `json:"sqlScript"`
	ArchiveKey        *string `json:"archiveKey,omitempty"`
}

// ScriptArchiver stores a generated DDL script and returns its key.
type ScriptArchiver interface {
	ArchiveScript(ctx context.Context, modelName, script string) (string, error)
}

type Service struct {
	Gateway  llm.Gateway
	Archiver ScriptArchiver
	Logger   *slog.Logger
}

func NewService(gateway llm.Gateway, archiver ScriptArchiver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{Gateway: gateway, Archiver: archiver, Logger: logger}
}

// Generate returns an error only for invalid input. Model failures are reported in Response.Error
// together with FallbackDescription.
func (s *Service) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	if strings.TrimSpace(req.ModelName) == "" {
		return Response{}, ErrModelNameRequired
	}
	dialect, err := targetdb.ParseDialect(req.Dialect)
	if err != nil {
		return Response{}, err
	}
	logger := s.logger().With(slog.String("trace_id", observability.TraceIDFromContext(ctx)))

	resp := Response{ModelName: req.ModelName}
	description, script, err := s.generate(ctx, BuildPrompt(req.ModelName, dialect))
	if err != nil {
		logger.WarnContext(ctx, "business_model_failed", slog.String("model_name", req.ModelName), slog.Any("error", err))
		observability.ObserveBusinessModel("error")
		message := err.Error()
		resp.SchemaDescription = FallbackDescription
		resp.Error = &message
		resp.Latency = time.Since(start).Milliseconds()
		return resp, nil
	}
	resp.SchemaDescription = description
	resp.SQLScript = script

	if req.Archive && s.Archiver != nil && strings.TrimSpace(script) != "" {
		key, err := s.Archiver.ArchiveScript(ctx, req.ModelName, script)
		if err != nil {
			logger.WarnContext(ctx, "business_model_archive_failed", slog.Any("error", err))
		} else {
			resp.ArchiveKey = &key
		}
	}

	observability.ObserveBusinessModel("ok")
	resp.Latency = time.Since(start).Milliseconds()
	return resp, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, string, error) {
	if s.Gateway == nil {
		return "", "", fmt.Errorf("no model gateway configured")
	}
	output, err := s.Gateway.Generate(ctx, prompt)
	if err != nil {
		return "", "", err
	}
	return SplitScript(output.Text)
}

// SplitScript removes the sql_script member from the model's JSON object and returns the
// remaining object (member order preserved) together with the script text.
func SplitScript(raw string) (string, string, error) {
	cleaned := nl2sql.StripFences(raw)
	decoder := json.NewDecoder(strings.NewReader(cleaned))
	token, err := decoder.Token()
	if err != nil {
		return "", "", fmt.Errorf("decode schema: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return "", "", fmt.Errorf("decode schema: top-level JSON value is not an object")
	}

	var out bytes.Buffer
	out.WriteByte('{')
	script := ""
	members := 0
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return "", "", fmt.Errorf("decode schema: %w", err)
		}
		key, _ := keyToken.(string)
		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return "", "", fmt.Errorf("decode schema member %q: %w", key, err)
		}
		if key == scriptField {
			var text string
			if err := json.Unmarshal(value, &text); err == nil {
				script = text
			}
			continue
		}
		if members > 0 {
			out.WriteByte(',')
		}
		encodedKey, _ := json.Marshal(key)
		out.Write(encodedKey)
		out.WriteByte(':')
		if err := json.Compact(&out, value); err != nil {
			return "", "", fmt.Errorf("compact schema member %q: %w", key, err)
		}
		members++
	}
	if _, err := decoder.Token(); err != nil {
		return "", "", fmt.Errorf("decode schema: %w", err)
	}
	out.WriteByte('}')
	return out.String(), script, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}
