package api

import (
	"log/slog"
	"net/http"

	"github.com/nl2sql/nl2sql/internal/config"
	"github.com/nl2sql/nl2sql/internal/observability"
	"github.com/nl2sql/nl2sql/internal/targetdb"
)

type connectionRequest struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Dialect  string `json:"dialect"`
}

func (c connectionRequest) params() targetdb.Params {
	return targetdb.Params{Host: c.Host, Port: c.Port, Database: c.Database, Username: c.Username, Password: c.Password}
}

// apiResponse is the generic success envelope used by the connection test.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	SQL     any    `json:"sql"`
	Rows    any    `json:"rows"`
}

func handleConnect(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Connector == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CONNECT_NOT_CONFIGURED", "database connector is not configured", false, nil)
		return
	}

	var req connectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid connection request body", false, map[string]any{"details": err.Error()})
		return
	}
	dialect, ok := resolveDialect(cfg, w, r, req.Dialect)
	if !ok {
		return
	}

	if err := targetdb.TestConnection(r.Context(), deps.Connector, dialect, req.params()); err != nil {
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "connection_test_failed",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.String("target", req.params().URL(dialect)),
				slog.Any("error", err),
			)
		}
		writeJSON(w, http.StatusOK, apiResponse{Success: false, Message: "Connection failed"})
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Connected successfully"})
}

// resolveDialect writes a 400 and reports false for unknown or disabled dialects.
func resolveDialect(cfg config.Config, w http.ResponseWriter, r *http.Request, raw string) (targetdb.Dialect, bool) {
	dialect, err := targetdb.ParseDialect(raw)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DIALECT", err.Error(), false, nil)
		return "", false
	}
	if dialect == targetdb.DuckDB && !cfg.Targets.DuckDBEnabled {
		writeError(r.Context(), w, http.StatusBadRequest, "DIALECT_DISABLED", "DUCKDB targets are disabled on this server", false, map[string]any{"dialect": string(dialect)})
		return "", false
	}
	return dialect, true
}
