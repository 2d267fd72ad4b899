package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/nl2sql/nl2sql/internal/storage"
)

func handleArchiveDownload(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "archive is not configured", false, nil)
		return
	}

	key := r.PathValue("key")
	body, info, err := deps.Archive.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "ARCHIVE_OBJECT_NOT_FOUND", "archived object not found", false, map[string]any{"key": key})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_READ_FAILED", "failed to read archived object", true, map[string]any{"details": err.Error()})
		return
	}
	defer func() { _ = body.Close() }()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Filename()}))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.Kind != "" {
		w.Header().Set("X-Artifact-Kind", string(info.Kind))
	}
	// Header values cannot carry newlines.
	if source := strings.Join(strings.Fields(info.Source), " "); source != "" {
		w.Header().Set("X-Artifact-Source", source)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}
