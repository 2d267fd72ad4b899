package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	LLM           LLMConfig
	Schema        SchemaConfig
	Targets       TargetsConfig
	Execute       ExecuteConfig
	CORS          CORSConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LLMConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	JSONOutput  bool
	MaxTokens   int
}

type SchemaConfig struct {
	MaxTables          int
	MaxColumnsPerTable int
	Timeout            time.Duration
}

// TargetsConfig controls which target databases callers may reach.
type TargetsConfig struct {
	// DuckDBEnabled lets callers open DuckDB files on the server's disk.
	DuckDBEnabled bool
}

type ExecuteConfig struct {
	RowLimit int
	Timeout  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type ArchiveConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("NL2SQL_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid NL2SQL_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "NL2SQL_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "NL2SQL_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "NL2SQL_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "NL2SQL_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "NL2SQL_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "NL2SQL_LLM_PROVIDER", &cfg.LLM.Provider) },
		func() error { return applyString(lookup, "NL2SQL_LLM_BASE_URL", &cfg.LLM.BaseURL) },
		func() error { return applyString(lookup, "NL2SQL_LLM_API_KEY", &cfg.LLM.APIKey) },
		func() error { return applyString(lookup, "NL2SQL_LLM_MODEL", &cfg.LLM.Model) },
		func() error { return applyFloat(lookup, "NL2SQL_LLM_TEMPERATURE", &cfg.LLM.Temperature) },
		func() error { return applyDuration(lookup, "NL2SQL_LLM_TIMEOUT", &cfg.LLM.Timeout) },
		func() error { return applyBool(lookup, "NL2SQL_LLM_JSON_OUTPUT", &cfg.LLM.JSONOutput) },
		func() error { return applyInt(lookup, "NL2SQL_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens) },
		func() error { return applyInt(lookup, "NL2SQL_SCHEMA_MAX_TABLES", &cfg.Schema.MaxTables) },
		func() error { return applyInt(lookup, "NL2SQL_SCHEMA_MAX_COLUMNS", &cfg.Schema.MaxColumnsPerTable) },
		func() error { return applyDuration(lookup, "NL2SQL_SCHEMA_TIMEOUT", &cfg.Schema.Timeout) },
		func() error { return applyBool(lookup, "NL2SQL_DUCKDB_ENABLED", &cfg.Targets.DuckDBEnabled) },
		func() error { return applyInt(lookup, "NL2SQL_EXECUTE_ROW_LIMIT", &cfg.Execute.RowLimit) },
		func() error { return applyDuration(lookup, "NL2SQL_EXECUTE_TIMEOUT", &cfg.Execute.Timeout) },
		func() error { return applyList(lookup, "NL2SQL_CORS_ALLOWED_ORIGINS", &cfg.CORS.AllowedOrigins) },
		func() error { return applyBool(lookup, "NL2SQL_ARCHIVE_ENABLED", &cfg.Archive.Enabled) },
		func() error { return applyString(lookup, "NL2SQL_ARCHIVE_ENDPOINT", &cfg.Archive.Endpoint) },
		func() error { return applyString(lookup, "NL2SQL_ARCHIVE_REGION", &cfg.Archive.Region) },
		func() error { return applyString(lookup, "NL2SQL_ARCHIVE_BUCKET", &cfg.Archive.Bucket) },
		func() error { return applyString(lookup, "NL2SQL_ARCHIVE_ACCESS_KEY", &cfg.Archive.AccessKeyID) },
		func() error { return applyString(lookup, "NL2SQL_ARCHIVE_SECRET_KEY", &cfg.Archive.SecretAccessKey) },
		func() error { return applyBool(lookup, "NL2SQL_ARCHIVE_USE_SSL", &cfg.Archive.UseSSL) },
		func() error { return applyString(lookup, "NL2SQL_ARCHIVE_PREFIX", &cfg.Archive.Prefix) },
		func() error {
			return applyBool(lookup, "NL2SQL_ARCHIVE_AUTO_CREATE_BUCKET", &cfg.Archive.AutoCreateBucket)
		},
		func() error { return applyBool(lookup, "NL2SQL_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "NL2SQL_LOG_LEVEL", &cfg.Observability.LogLevel) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Schema.MaxTables <= 0 {
		return Config{}, fmt.Errorf("NL2SQL_SCHEMA_MAX_TABLES must be > 0")
	}
	if cfg.Schema.MaxColumnsPerTable <= 0 {
		return Config{}, fmt.Errorf("NL2SQL_SCHEMA_MAX_COLUMNS must be > 0")
	}
	if cfg.Schema.Timeout <= 0 {
		return Config{}, fmt.Errorf("NL2SQL_SCHEMA_TIMEOUT must be > 0")
	}
	if cfg.LLM.Timeout <= 0 {
		return Config{}, fmt.Errorf("NL2SQL_LLM_TIMEOUT must be > 0")
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	switch cfg.LLM.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return Config{}, fmt.Errorf("invalid NL2SQL_LLM_PROVIDER: %q", cfg.LLM.Provider)
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "nl2sql-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			BaseURL:     "",
			Model:       "",
			Temperature: 0.1,
			Timeout:     8 * time.Second,
			JSONOutput:  true,
			MaxTokens:   2048,
		},
		Schema: SchemaConfig{
			MaxTables:          50,
			MaxColumnsPerTable: 50,
			Timeout:            10 * time.Second,
		},
		Execute: ExecuteConfig{
			RowLimit: 1000,
			Timeout:  15 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Archive: ArchiveConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "nl2sql",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.CORS.AllowedOrigins = nil
		cfg.Archive.UseSSL = true
		cfg.Archive.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

// applyList splits a comma separated value, dropping empty entries.
func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
