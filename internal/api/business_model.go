package api

import (
	"errors"
	"net/http"

	"github.com/nl2sql/nl2sql/internal/businessmodel"
)

func handleBusinessModel(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.BusinessModel == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "BUSINESS_MODEL_NOT_CONFIGURED", "business model generation is not configured", false, nil)
		return
	}

	var req businessmodel.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid business model request body", false, map[string]any{"details": err.Error()})
		return
	}

	resp, err := deps.BusinessModel.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, businessmodel.ErrModelNameRequired) {
			writeError(r.Context(), w, http.StatusBadRequest, "MODEL_NAME_REQUIRED", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DIALECT", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
