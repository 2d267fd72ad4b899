package storage

import (
	"context"
	"errors"
	"io"
	"path"
)

var ErrObjectNotFound = errors.New("object not found")

// Artifact is one archived object: a generated DDL script or an execute result snapshot.
type Artifact struct {
	Key  string
	Kind ArtifactKind
	// Source is what the artifact was produced from: the business model name or the executed SQL.
	Source string
	Data   []byte
}

type ArtifactInfo struct {
	Key         string
	Kind        ArtifactKind
	Source      string
	Size        int64
	ContentType string
}

// Filename is the name offered to clients downloading the artifact.
func (i ArtifactInfo) Filename() string {
	return path.Base(i.Key)
}

// ArtifactStore keeps archived artifacts together with their kind and source.
type ArtifactStore interface {
	Put(ctx context.Context, artifact Artifact) (ArtifactInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactInfo, error)
}
