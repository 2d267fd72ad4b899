// Package s3 keeps archive artifacts in an S3 compatible bucket through MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nl2sql/nl2sql/internal/config"
	"github.com/nl2sql/nl2sql/internal/storage"
)

// User metadata keys. MinIO reports them back in canonical header case.
const (
	metaKind   = "Artifact-Kind"
	metaSource = "Artifact-Source"
)

// S3 caps user metadata at 2 KiB per object.
const maxSourceMetadata = 1024

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// ConfigFromArchive maps the service archive settings onto a store config.
func ConfigFromArchive(cfg config.ArchiveConfig) Config {
	return Config{
		Endpoint:         cfg.Endpoint,
		Region:           cfg.Region,
		Bucket:           cfg.Bucket,
		AccessKeyID:      cfg.AccessKeyID,
		SecretAccessKey:  cfg.SecretAccessKey,
		UseSSL:           cfg.UseSSL,
		Prefix:           cfg.Prefix,
		AutoCreateBucket: cfg.AutoCreateBucket,
	}
}

// bucket is the part of the MinIO API the archive needs, bound to one bucket.
type bucket interface {
	put(ctx context.Context, key string, data []byte, opts minio.PutObjectOptions) error
	stat(ctx context.Context, key string) (minio.ObjectInfo, error)
	get(ctx context.Context, key string) (io.ReadCloser, error)
	exists(ctx context.Context) (bool, error)
	create(ctx context.Context, region string) error
}

type Store struct {
	bucket bucket
	name   string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}

	store := newStore(name, cfg.Prefix, &minioBucket{client: client, name: name})
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newStore(name, prefix string, b bucket) *Store {
	prefix = path.Clean(strings.Trim(strings.TrimSpace(prefix), "/"))
	if prefix == "." {
		prefix = ""
	}
	return &Store{bucket: b, name: name, prefix: prefix}
}

// Put writes the artifact with its kind and source as user metadata and a download disposition.
func (s *Store) Put(ctx context.Context, artifact storage.Artifact) (storage.ArtifactInfo, error) {
	objectKey, err := s.objectKey(artifact.Key)
	if err != nil {
		return storage.ArtifactInfo{}, err
	}
	info := storage.ArtifactInfo{
		Key:         artifact.Key,
		Kind:        artifact.Kind,
		Source:      artifact.Source,
		Size:        int64(len(artifact.Data)),
		ContentType: artifact.Kind.ContentType(),
	}
	opts := minio.PutObjectOptions{
		ContentType:        info.ContentType,
		ContentDisposition: attachmentDisposition(info.Filename()),
		UserMetadata: map[string]string{
			metaKind:   string(artifact.Kind),
			metaSource: encodeSource(artifact.Source),
		},
	}
	if err := s.bucket.put(ctx, objectKey, artifact.Data, opts); err != nil {
		return storage.ArtifactInfo{}, fmt.Errorf("put %s artifact %q: %w", artifact.Kind, objectKey, mapMinioErr(err))
	}
	return info, nil
}

// Open returns the artifact body and the metadata recorded by Put.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, storage.ArtifactInfo, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, storage.ArtifactInfo{}, err
	}
	object, err := s.bucket.stat(ctx, objectKey)
	if err != nil {
		return nil, storage.ArtifactInfo{}, wrapLookup(objectKey, err)
	}
	body, err := s.bucket.get(ctx, objectKey)
	if err != nil {
		return nil, storage.ArtifactInfo{}, wrapLookup(objectKey, err)
	}
	return body, artifactInfo(strings.TrimPrefix(key, "/"), object), nil
}

// Ready reports whether the configured bucket is reachable.
func (s *Store) Ready(ctx context.Context) error {
	exists, err := s.bucket.exists(ctx)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.name, err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.name)
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.bucket.exists(ctx)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.name, err)
	}
	if exists {
		return nil
	}
	if err := s.bucket.create(ctx, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.name, err)
	}
	return nil
}

// objectKey maps an archive key to the bucket key, refusing keys that escape the prefix.
func (s *Store) objectKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("artifact key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return path.Join(s.prefix, cleaned), nil
}

func artifactInfo(key string, object minio.ObjectInfo) storage.ArtifactInfo {
	info := storage.ArtifactInfo{
		Key:         key,
		Kind:        storage.ArtifactKind(metadataValue(object, metaKind)),
		Source:      decodeSource(metadataValue(object, metaSource)),
		Size:        object.Size,
		ContentType: object.ContentType,
	}
	if info.Kind == "" {
		info.Kind, _ = storage.KindFromKey(key)
	}
	if info.ContentType == "" {
		info.ContentType = info.Kind.ContentType()
	}
	return info
}

func metadataValue(object minio.ObjectInfo, key string) string {
	for name, value := range object.UserMetadata {
		if strings.EqualFold(name, key) || strings.EqualFold(name, "X-Amz-Meta-"+key) {
			return value
		}
	}
	return object.Metadata.Get("X-Amz-Meta-" + key)
}

// encodeSource collapses whitespace and query-escapes the source so it is a valid header value.
func encodeSource(source string) string {
	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(source), " ") {
		escaped := url.QueryEscape(string(r))
		if b.Len()+len(escaped) > maxSourceMetadata {
			break
		}
		b.WriteString(escaped)
	}
	return b.String()
}

func decodeSource(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func attachmentDisposition(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

func wrapLookup(objectKey string, err error) error {
	err = mapMinioErr(err)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	return fmt.Errorf("read artifact %q: %w", objectKey, err)
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("archive endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse archive endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("archive endpoint host is required")
	}
	return parsed.Host, useSSL || parsed.Scheme == "https", nil
}

func mapMinioErr(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return storage.ErrObjectNotFound
	}
	return err
}

type minioBucket struct {
	client *minio.Client
	name   string
}

func (m *minioBucket) put(ctx context.Context, key string, data []byte, opts minio.PutObjectOptions) error {
	_, err := m.client.PutObject(ctx, m.name, key, bytes.NewReader(data), int64(len(data)), opts)
	return err
}

func (m *minioBucket) stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, m.name, key, minio.StatObjectOptions{})
}

func (m *minioBucket) get(ctx context.Context, key string) (io.ReadCloser, error) {
	return m.client.GetObject(ctx, m.name, key, minio.GetObjectOptions{})
}

func (m *minioBucket) exists(ctx context.Context) (bool, error) {
	return m.client.BucketExists(ctx, m.name)
}

func (m *minioBucket) create(ctx context.Context, region string) error {
	return m.client.MakeBucket(ctx, m.name, minio.MakeBucketOptions{Region: region})
}
