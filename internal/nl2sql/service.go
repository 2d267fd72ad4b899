package nl2sql

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/nl2sql/nl2sql/internal/llm"
	"github.com/nl2sql/nl2sql/internal/observability"
	"github.com/nl2sql/nl2sql/internal/query"
	"github.com/nl2sql/nl2sql/internal/schema"
	"github.com/nl2sql/nl2sql/internal/targetdb"
)

// SchemaSource returns a schema summary or a schema.SentinelPrefix string. It must not fail.
type SchemaSource interface {
	FetchSummary(ctx context.Context, dialect targetdb.Dialect, params targetdb.Params, limits schema.Limits) string
}

type Service struct {
	Gateway llm.Gateway
	Schema  SchemaSource
	Limits  schema.Limits
	Logger  *slog.Logger
}

func NewService(gateway llm.Gateway, source SchemaSource, limits schema.Limits, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{Gateway: gateway, Schema: source, Limits: limits, Logger: logger}
}

// Translate runs Introspect, BuildPrompt, CallModel and Parse. The returned error is always a
// *ValidationError; every pipeline failure is reported inside the Result instead.
func (s *Service) Translate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	dialect, err := req.Validate()
	if err != nil {
		return Result{}, err
	}
	mode := req.Mode()
	queryType := query.ResolveQueryType(req.QueryType, req.Text)
	logger := s.logger().With(
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("mode", string(mode)),
		slog.String("dialect", string(dialect)),
	)

	result := Result{Dialect: string(dialect), Model: s.model()}
	finish := func(outcome string) (Result, error) {
		elapsed := time.Since(start)
		result.LatencyMs = elapsed.Milliseconds()
		observability.ObserveTranslate(string(mode), outcome, elapsed)
		return result, nil
	}

	summary := s.schemaSummary(ctx, dialect, req.Params())
	if schema.IsSentinel(summary) {
		logger.WarnContext(ctx, "schema_unavailable", slog.String("summary", summary))
	} else {
		logger.DebugContext(ctx, "schema_fetched", slog.Int("bytes", len(summary)))
	}

	prompt := BuildPrompt(mode, dialect, queryType, req.Text, summary)
	logger.DebugContext(ctx, "prompt_built", slog.String("query_type", queryType), slog.Int("bytes", len(prompt)))

	if s.Gateway == nil {
		result.Warning = stringPtr(WarningRequestFailed)
		result.Message = stringPtr("LLM request failed: no model gateway configured")
		return finish("gateway_error")
	}
	output, err := s.Gateway.Generate(ctx, prompt)
	if err != nil {
		var protocolErr *llm.ProtocolError
		if errors.As(err, &protocolErr) {
			result.Warning = stringPtr(WarningInvalidResponse)
			result.Message = stringPtr("LLM response error: " + err.Error())
		} else {
			result.Warning = stringPtr(WarningRequestFailed)
			result.Message = stringPtr("LLM request failed: " + err.Error())
		}
		logger.WarnContext(ctx, "model_call_failed", slog.Any("error", err))
		return finish("gateway_error")
	}
	if output.Model != "" {
		result.Model = output.Model
	}
	logger.DebugContext(ctx, "model_replied", slog.Int("bytes", len(output.Text)))

	parsed := Parse(output.Text, mode)
	if parsed.Failed() {
		result.SQL = parsed.Diagnostic
		result.Warning = stringPtr(WarningParseFailed)
		result.Message = stringPtr(parsed.Diagnostic)
		logger.WarnContext(ctx, "model_output_unparseable", slog.String("diagnostic", parsed.Diagnostic))
		return finish("parse_error")
	}

	result.SQL = parsed.SQL
	result.Explanation = stringPtr(parsed.Explanation)
	if mode == ModeOptimize {
		result.OptimizedSQL = stringPtr(parsed.OptimizedSQL)
		result.Suggestions = parsed.Suggestions
		result.Indexes = parsed.Indexes
		result.Complexity = stringPtr(parsed.Complexity)
		result.Cost = stringPtr(parsed.Cost)
	}
	return finish("ok")
}

func (s *Service) schemaSummary(ctx context.Context, dialect targetdb.Dialect, params targetdb.Params) string {
	if s.Schema == nil {
		return schema.Sentinel(errors.New("schema source is not configured"))
	}
	return s.Schema.FetchSummary(ctx, dialect, params, s.Limits)
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

func (s *Service) model() string {
	if s.Gateway == nil {
		return ""
	}
	return s.Gateway.Model()
}
