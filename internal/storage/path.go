package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

type ArtifactKind string

const (
	KindDDLScript    ArtifactKind = "ddl"
	KindResultSample ArtifactKind = "results"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLength = 48

// BuildArtifactPath returns "<kind>/date=YYYY-MM-DD/<slug>-<id>.<ext>" using the UTC date of createdAt.
func BuildArtifactPath(kind ArtifactKind, name string, createdAt time.Time, id string) (string, error) {
	ext, err := kind.extension()
	if err != nil {
		return "", err
	}
	if err := validatePathComponent(id, "artifact id"); err != nil {
		return "", err
	}
	ts := createdAt.UTC()
	return path.Join(
		string(kind),
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s.%s", Slug(name, string(kind)), id, ext),
	), nil
}

// Slug lowercases name and collapses anything outside [a-z0-9] into single dashes.
func Slug(name, fallback string) string {
	slug := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return fallback
	}
	return slug
}

func (k ArtifactKind) extension() (string, error) {
	switch k {
	case KindDDLScript:
		return "sql", nil
	case KindResultSample:
		return "parquet", nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", k)
	}
}

// KindFromKey reads the artifact kind from the first segment of an archive key.
func KindFromKey(key string) (ArtifactKind, bool) {
	first, _, _ := strings.Cut(strings.TrimPrefix(key, "/"), "/")
	switch kind := ArtifactKind(first); kind {
	case KindDDLScript, KindResultSample:
		return kind, true
	default:
		return "", false
	}
}

func (k ArtifactKind) ContentType() string {
	switch k {
	case KindDDLScript:
		return "application/sql"
	case KindResultSample:
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
