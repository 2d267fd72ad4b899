package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/nl2sql/nl2sql/internal/config"
	"github.com/nl2sql/nl2sql/internal/observability"
	"github.com/nl2sql/nl2sql/internal/query"
)

type executeRequest struct {
	connectionRequest
	SQL       string `json:"sql"`
	QueryType string `json:"queryType"`
	RowLimit  int    `json:"rowLimit"`
	Archive   bool   `json:"archive"`
}

type executeResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	Columns      []string    `json:"columns"`
	Rows         []query.Row `json:"rows"`
	RowsAffected int64       `json:"rowsAffected"`
	Truncated    bool        `json:"truncated"`
	ArchiveKey   *string     `json:"archiveKey,omitempty"`
}

func handleExecute(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.QueryEngine == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXECUTE_NOT_CONFIGURED", "query execution is not configured", false, nil)
		return
	}

	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid execute request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if req.RowLimit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ROW_LIMIT", "rowLimit must be >= 0", false, nil)
		return
	}
	dialect, ok := resolveDialect(cfg, w, r, req.Dialect)
	if !ok {
		return
	}

	rowLimit := req.RowLimit
	if rowLimit == 0 {
		rowLimit = cfg.Execute.RowLimit
	}
	result, err := deps.QueryEngine.Execute(r.Context(), query.Request{
		Dialect:   dialect,
		Params:    req.params(),
		SQL:       req.SQL,
		QueryType: req.QueryType,
		RowLimit:  rowLimit,
	})
	if err != nil {
		observability.ObserveExecute("error")
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "execute_failed",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.String("target", req.params().URL(dialect)),
				slog.Any("error", err),
			)
		}
		writeJSON(w, http.StatusOK, executeResponse{
			Success: false,
			Message: err.Error(),
			Columns: []string{},
			Rows:    []query.Row{},
		})
		return
	}
	observability.ObserveExecute("ok")

	response := executeResponse{
		Success:      true,
		Message:      "",
		Columns:      result.Columns,
		Rows:         result.Rows,
		RowsAffected: result.RowsAffected,
		Truncated:    result.Truncated,
	}
	if req.Archive && deps.Archive != nil && len(result.Columns) > 0 {
		key, err := deps.Archive.ArchiveResult(r.Context(), req.SQL, result)
		if err != nil {
			response.Message = "result archive failed: " + err.Error()
		} else {
			response.ArchiveKey = &key
		}
	}
	writeJSON(w, http.StatusOK, response)
}
