package nl2sqlctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

type connectionFlags struct {
	dialect  *string
	host     *string
	port     *string
	database *string
	username *string
	password *string
}

func (c connectionFlags) payload() map[string]any {
	return map[string]any{
		"dialect":  strings.ToUpper(strings.TrimSpace(*c.dialect)),
		"host":     *c.host,
		"port":     *c.port,
		"database": *c.database,
		"username": *c.username,
		"password": *c.password,
	}
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("nl2sqlctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "nl2sql API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	conn := connectionFlags{
		dialect:  fs.String("dialect", "MYSQL", "target dialect: MYSQL, POSTGRESQL or DUCKDB"),
		host:     fs.String("host", "localhost", "target database host"),
		port:     fs.String("port", "", "target database port (dialect default when empty)"),
		database: fs.String("database", "", "target database name"),
		username: fs.String("username", "", "target database user"),
		password: fs.String("password", defaults.Password, "target database password"),
	}
	queryType := fs.String("query-type", "SELECT", "statement type hint for translate and execute")
	rowLimit := fs.Int("row-limit", 0, "maximum rows returned by execute (0 uses the server default)")
	archive := fs.Bool("archive", false, "archive execute results or business model scripts")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	argument := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	method := http.MethodGet
	path := ""
	var body map[string]any

	switch command {
	case "health":
		path = "/api/health"
	case "ready":
		path = "/api/ready"
	case "translate", "optimize":
		if argument == "" {
			_, _ = fmt.Fprintf(stderr, "%s requires text\n", command)
			return 2
		}
		method, path = http.MethodPost, "/api/translate"
		body = conn.payload()
		body["text"] = argument
		body["queryType"] = *queryType
		body["optimize"] = command == "optimize"
	case "connect":
		method, path = http.MethodPost, "/api/connect"
		body = conn.payload()
	case "execute":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "execute requires sql")
			return 2
		}
		method, path = http.MethodPost, "/api/execute"
		body = conn.payload()
		body["sql"] = argument
		body["queryType"] = *queryType
		body["rowLimit"] = *rowLimit
		body["archive"] = *archive
	case "business-model":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "business-model requires a model name")
			return 2
		}
		method, path = http.MethodPost, "/api/business-model"
		body = map[string]any{
			"modelName": argument,
			"dialect":   strings.ToUpper(strings.TrimSpace(*conn.dialect)),
			"archive":   *archive,
		}
	case "archive-get":
		if argument == "" {
			_, _ = fmt.Fprintln(stderr, "archive-get requires an object key")
			return 2
		}
		path = "/api/archive/" + escapeKey(argument)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if command == "archive-get" {
		_, _ = stdout.Write(responseBody)
		return 0
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url string, payload map[string]any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: nl2sqlctl [flags] <command> [argument]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                 GET /api/health")
	_, _ = fmt.Fprintln(w, "  ready                  GET /api/ready")
	_, _ = fmt.Fprintln(w, "  translate <text>       POST /api/translate")
	_, _ = fmt.Fprintln(w, "  optimize <sql>         POST /api/translate with optimize=true")
	_, _ = fmt.Fprintln(w, "  connect                POST /api/connect")
	_, _ = fmt.Fprintln(w, "  execute <sql>          POST /api/execute")
	_, _ = fmt.Fprintln(w, "  business-model <name>  POST /api/business-model")
	_, _ = fmt.Fprintln(w, "  archive-get <key>      GET /api/archive/<key>")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
