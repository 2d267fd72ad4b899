package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nl2sql/nl2sql/internal/cli/nl2sqlctl"
)

func main() {
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("NL2SQL_CLI_TIMEOUT")), 30*time.Second)
	options := nl2sqlctl.Options{
		BaseURL:  envOr("NL2SQL_API_URL", "http://localhost:8080"),
		Password: os.Getenv("NL2SQL_DB_PASSWORD"),
		Timeout:  timeout,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}

	code := nl2sqlctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid NL2SQL_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
