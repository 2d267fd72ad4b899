package api

import (
	"errors"
	"net/http"

	"github.com/nl2sql/nl2sql/internal/nl2sql"
)

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}

	var req nl2sql.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Translator.Translate(r.Context(), req)
	if err != nil {
		var validationErr *nl2sql.ValidationError
		if errors.As(err, &validationErr) {
			writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_FAILED", validationErr.Error(), false, map[string]any{"field": validationErr.Field})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "TRANSLATE_FAILED", "failed to translate query", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
