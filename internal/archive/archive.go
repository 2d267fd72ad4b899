// Package archive keeps generated DDL scripts and execute result snapshots in an object store.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nl2sql/nl2sql/internal/observability"
	"github.com/nl2sql/nl2sql/internal/query"
	"github.com/nl2sql/nl2sql/internal/storage"
)

type Archiver struct {
	Store  storage.ArtifactStore
	Logger *slog.Logger

	now   func() time.Time
	newID func() string
}

func New(store storage.ArtifactStore, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Archiver{
		Store:  store,
		Logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// ArchiveScript stores a DDL script and returns its object key.
func (a *Archiver) ArchiveScript(ctx context.Context, modelName, script string) (string, error) {
	if strings.TrimSpace(script) == "" {
		return "", fmt.Errorf("script is empty")
	}
	return a.put(ctx, storage.KindDDLScript, modelName, modelName, []byte(script))
}

// ArchiveResult stores execute rows as a parquet snapshot and returns its object key.
func (a *Archiver) ArchiveResult(ctx context.Context, sqlText string, result query.Result) (string, error) {
	encoded, err := EncodeRowsToParquet(sqlText, result.Columns, result.Rows)
	if err != nil {
		observability.ObserveArchiveWrite(string(storage.KindResultSample), "error")
		return "", err
	}
	return a.put(ctx, storage.KindResultSample, "", sqlText, encoded.Data)
}

// Open returns the artifact body and its metadata. Missing keys yield storage.ErrObjectNotFound.
func (a *Archiver) Open(ctx context.Context, key string) (io.ReadCloser, storage.ArtifactInfo, error) {
	if a == nil || a.Store == nil {
		return nil, storage.ArtifactInfo{}, fmt.Errorf("archive is not configured")
	}
	return a.Store.Open(ctx, key)
}

// put stores data under a fresh key; source records what the artifact was produced from.
func (a *Archiver) put(ctx context.Context, kind storage.ArtifactKind, name, source string, data []byte) (string, error) {
	if a == nil || a.Store == nil {
		return "", fmt.Errorf("archive is not configured")
	}
	key, err := storage.BuildArtifactPath(kind, name, a.clock(), a.id())
	if err != nil {
		observability.ObserveArchiveWrite(string(kind), "error")
		return "", err
	}
	artifact := storage.Artifact{Key: key, Kind: kind, Source: source, Data: data}
	if _, err := a.Store.Put(ctx, artifact); err != nil {
		observability.ObserveArchiveWrite(string(kind), "error")
		a.logger().WarnContext(ctx, "archive_write_failed",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("kind", string(kind)),
			slog.String("key", key),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("archive %s: %w", kind, err)
	}
	observability.ObserveArchiveWrite(string(kind), "ok")
	a.logger().InfoContext(ctx, "archive_written",
		slog.String("trace_id", observability.TraceIDFromContext(ctx)),
		slog.String("kind", string(kind)),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)
	return key, nil
}

func (a *Archiver) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func (a *Archiver) id() string {
	if a.newID == nil {
		return uuid.NewString()
	}
	return a.newID()
}

func (a *Archiver) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return a.Logger
}
