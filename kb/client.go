// Package kb is the HTTP client for the Stylus knowledge-base backend.
//
// Information Hiding:
// - URL layout of the skills API (base with or without a /skills suffix)
// - Request encoding and response validation
// - Health probing semantics (never fatal)
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const skillsSegment = "/skills"

// maxErrorBody bounds the response text carried by StatusError.
const maxErrorBody = 200

var tracer = otel.Tracer("sifter/kb")

// ErrEmptyQuery is returned when a search is attempted without a query.
var ErrEmptyQuery = errors.New("search query is required")

// StatusError is a non-2xx answer from the knowledge-base backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// Health is the readiness of the backend.
type Health struct {
	Ready      bool
	StatusCode int
	URL        string
}

// Client talks to the skills API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL joins a skills path onto the base. A base already ending in /skills
// absorbs the leading /skills of the path; an empty base returns the path.
func (c *Client) URL(path string) string {
	if c.baseURL == "" {
		return path
	}
	if strings.HasSuffix(c.baseURL, skillsSegment) && strings.HasPrefix(path, skillsSegment+"/") {
		return c.baseURL + strings.TrimPrefix(path, skillsSegment)
	}
	return c.baseURL + path
}

// HealthURL is the backend root (without /skills) plus /health.
func (c *Client) HealthURL() string {
	if c.baseURL == "" {
		return "/health"
	}
	return strings.TrimSuffix(c.baseURL, skillsSegment) + "/health"
}

// Search posts {"prompt": query} to the skill's search path and returns the
// response JSON compacted but otherwise verbatim.
func (c *Client) Search(ctx context.Context, skillPath, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := tracer.Start(ctx, "kb.search")
	defer span.End()
	endpoint := c.URL(skillPath)
	span.SetAttributes(attribute.String("kb.url", endpoint), attribute.Int("kb.query_len", len(query)))

	payload, err := json.Marshal(map[string]string{"prompt": query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, body); err != nil {
		err = fmt.Errorf("invalid JSON response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	slog.DebugContext(ctx, "knowledge base search completed",
		"url", endpoint,
		"bytes", compacted.Len(),
		"references", gjson.GetBytes(compacted.Bytes(), "references.#").Int())
	return json.RawMessage(compacted.Bytes()), nil
}

// Health probes the backend. Transport errors are returned; any HTTP
// answer, including non-2xx, is reported through Health.Ready.
func (c *Client) Health(ctx context.Context) (Health, error) {
	health := Health{URL: c.HealthURL()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, health.URL, nil)
	if err != nil {
		return health, fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return health, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	health.StatusCode = resp.StatusCode
	health.Ready = resp.StatusCode >= 200 && resp.StatusCode < 300
	return health, nil
}

// SystemPrompt fetches the published system prompt for a skill. An empty
// string with a nil error means the skill has no published prompt.
func (c *Client) SystemPrompt(ctx context.Context, skillID string) (string, error) {
	ctx, span := tracer.Start(ctx, "kb.system_prompt")
	defer span.End()
	span.SetAttributes(attribute.String("skill.id", skillID))

	endpoint := c.URL(skillsSegment + "/" + url.PathEscape(skillID))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid JSON response from %s", endpoint)
	}
	return strings.TrimSpace(gjson.GetBytes(body, "system_prompt").String()), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), maxErrorBody)}
	}
	return body, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
