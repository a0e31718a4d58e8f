// Package admin is the HTTP client for the backend's admin surface: token
// authentication, log pagination and streaming, conversation export and
// platform feedback.
package admin

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
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultLogLimit is the page size of LogSlice when none is given.
	DefaultLogLimit = 5000
	// DefaultMaxTurns bounds ExportConversations when MaxTurns is zero.
	DefaultMaxTurns = 500
	// DefaultFeedbackLimit is the page size of PlatformFeedback.
	DefaultFeedbackLimit = 100

	streamChunkSize = 4096
)

var tracer = otel.Tracer("sifter/admin")

var (
	ErrSourceRequired   = errors.New("log source is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrMissingToken     = errors.New("authentication response did not include a token")
	ErrTokenRequired    = errors.New("admin token is required to load platform feedback")
)

// StatusError is a non-2xx admin answer. Op names the failed action.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if body == "" {
		body = "unknown error"
	}
	return fmt.Sprintf("%s (%d): %s", e.Op, e.StatusCode, body)
}

// LogSlice is one page of a log source.
type LogSlice struct {
	Data       json.RawMessage
	Offset     int64
	NextOffset int64
	HasMore    bool
}

// Text returns Data as plain text when it is a JSON string, else the raw JSON.
func (s LogSlice) Text() string {
	data := gjson.ParseBytes(s.Data)
	if data.Type == gjson.String {
		return data.String()
	}
	return string(s.Data)
}

// ExportOptions filters ExportConversations. Zero values are omitted.
type ExportOptions struct {
	MinRating      int
	SinceTimestamp string
	MaxTurns       int
}

// FeedbackPage is one page of platform feedback.
type FeedbackPage struct {
	Feedback   []json.RawMessage
	NextOffset int64
	HasMore    bool
}

// Client calls the admin API. A Client is not safe for concurrent SetToken.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates a client for baseURL. A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	return c.token
}

// URL joins path onto the base. An empty base returns the path.
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if c.baseURL == "" {
		return path
	}
	return c.baseURL + path
}

// Authenticate exchanges the admin password for a token and keeps it.
func (c *Client) Authenticate(ctx context.Context, password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", ErrPasswordRequired
	}
	ctx, span := tracer.Start(ctx, "admin.authenticate")
	defer span.End()

	payload, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return "", fmt.Errorf("failed to encode auth request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, c.URL("/admin/auth"), payload, "Authentication failed")
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(gjson.GetBytes(body, "token").String())
	if token == "" {
		return "", ErrMissingToken
	}
	c.token = token
	slog.InfoContext(ctx, "admin authenticated")
	return token, nil
}

// LogSlice fetches limit bytes of a log source starting at offset. A zero
// limit uses DefaultLogLimit.
func (c *Client) LogSlice(ctx context.Context, source string, offset, limit int64) (LogSlice, error) {
	escaped, err := escapeSource(source)
	if err != nil {
		return LogSlice{}, err
	}
	if offset < 0 {
		return LogSlice{}, errors.New("offset must be 0 or higher")
	}
	if limit == 0 {
		limit = DefaultLogLimit
	}
	if limit < 0 {
		return LogSlice{}, errors.New("limit must be greater than 0")
	}

	ctx, span := tracer.Start(ctx, "admin.log_slice")
	defer span.End()
	span.SetAttributes(attribute.String("admin.source", source), attribute.Int64("admin.offset", offset))

	query := url.Values{}
	query.Set("offset", strconv.FormatInt(offset, 10))
	query.Set("limit", strconv.FormatInt(limit, 10))
	endpoint := c.URL("/admin/logs/"+escaped+"/paginate") + "?" + query.Encode()

	body, err := c.do(ctx, http.MethodGet, endpoint, nil, "failed to load logs")
	if err != nil {
		return LogSlice{}, err
	}
	if !gjson.ValidBytes(body) {
		return LogSlice{}, fmt.Errorf("invalid JSON response from %s", endpoint)
	}

	result := gjson.ParseBytes(body)
	slice := LogSlice{
		Offset:     result.Get("offset").Int(),
		NextOffset: result.Get("next_offset").Int(),
		HasMore:    result.Get("has_more").Bool(),
	}
	if data := result.Get("data"); data.Exists() {
		slice.Data = json.RawMessage(data.Raw)
	}
	return slice, nil
}

// StreamLogs follows a log source, calling onChunk with each piece of text
// until the server closes the stream or ctx is cancelled. Chunks never split
// a UTF-8 sequence.
func (c *Client) StreamLogs(ctx context.Context, source string, onChunk func(string)) error {
	escaped, err := escapeSource(source)
	if err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "admin.stream_logs")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL("/admin/logs/"+escaped+"/stream"), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		return &StatusError{Op: "unable to stream logs", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	buf := make([]byte, streamChunkSize)
	var pending []byte
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completePrefix(pending)
			if cut > 0 && onChunk != nil {
				onChunk(string(pending[:cut]))
			}
			pending = append(pending[:0], pending[cut:]...)
		}
		if readErr == io.EOF {
			if len(pending) > 0 && onChunk != nil {
				onChunk(string(pending))
			}
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream interrupted: %w", readErr)
		}
	}
}

// ExportConversations returns rated conversation turns as raw JSON objects.
func (c *Client) ExportConversations(ctx context.Context, opts ExportOptions) ([]json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "admin.export_conversations")
	defer span.End()

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	query := url.Values{}
	if opts.MinRating != 0 {
		query.Set("min_rating", strconv.Itoa(opts.MinRating))
	}
	if opts.SinceTimestamp != "" {
		query.Set("since_timestamp", opts.SinceTimestamp)
	}
	query.Set("max_turns", strconv.Itoa(maxTurns))

	body, err := c.do(ctx, http.MethodGet, c.URL("/admin/conversations/export")+"?"+query.Encode(), nil, "failed to export conversations")
	if err != nil {
		return nil, err
	}
	return rawArray(gjson.GetBytes(body, "turns")), nil
}

// PlatformFeedback lists feedback entries. It requires a token.
func (c *Client) PlatformFeedback(ctx context.Context, limit, offset int) (FeedbackPage, error) {
	if c.token == "" {
		return FeedbackPage{}, ErrTokenRequired
	}
	if limit <= 0 {
		return FeedbackPage{}, errors.New("limit must be greater than 0")
	}
	if offset < 0 {
		return FeedbackPage{}, errors.New("offset must be 0 or higher")
	}
	ctx, span := tracer.Start(ctx, "admin.platform_feedback")
	defer span.End()

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	body, err := c.do(ctx, http.MethodGet, c.URL("/admin/platform-feedback")+"?"+query.Encode(), nil, "failed to load platform feedback")
	if err != nil {
		return FeedbackPage{}, err
	}
	result := gjson.ParseBytes(body)
	return FeedbackPage{
		Feedback:   rawArray(result.Get("feedback")),
		NextOffset: result.Get("next_offset").Int(),
		HasMore:    result.Get("has_more").Bool(),
	}, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, op string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

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
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func escapeSource(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", ErrSourceRequired
	}
	return url.PathEscape(source), nil
}

func rawArray(value gjson.Result) []json.RawMessage {
	items := []json.RawMessage{}
	if !value.IsArray() {
		return items
	}
	value.ForEach(func(_, item gjson.Result) bool {
		items = append(items, json.RawMessage(item.Raw))
		return true
	})
	return items
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a UTF-8 sequence.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
