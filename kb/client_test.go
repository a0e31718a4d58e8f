package kb

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestURL(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{"https://api.example", "/skills/x/search", "https://api.example/skills/x/search"},
		{"https://api.example/", "/skills/x/search", "https://api.example/skills/x/search"},
		{"https://api.example/skills", "/skills/x/search", "https://api.example/skills/x/search"},
		{"https://api.example/skills///", "/skills/x/search", "https://api.example/skills/x/search"},
		{"", "/skills/x/search", "/skills/x/search"},
		{"https://api.example/skills", "/other", "https://api.example/skills/other"},
	}
	for _, tt := range tests {
		c := NewClient(tt.base, nil)
		if got := c.URL(tt.path); got != tt.want {
			t.Errorf("URL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestHealthURL(t *testing.T) {
	tests := map[string]string{
		"https://api.example/skills": "https://api.example/health",
		"https://api.example/":       "https://api.example/health",
		"":                           "/health",
	}
	for base, want := range tests {
		if got := NewClient(base, nil).HealthURL(); got != want {
			t.Errorf("HealthURL(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestSearch(t *testing.T) {
	var gotBody map[string]string
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{ "answer": "yes",
			"references": [ {"title": "T", "url": "https://t.example"} ] }`))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/skills", server.Client())
	raw, err := c.Search(context.Background(), "/skills/sift-stylus-research/search", "  what is stylus  ")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotPath != "/skills/sift-stylus-research/search" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["prompt"] != "what is stylus" {
		t.Errorf("prompt = %q", gotBody["prompt"])
	}
	want := `{"answer":"yes","references":[{"title":"T","url":"https://t.example"}]}`
	if string(raw) != want {
		t.Errorf("raw = %s, want %s", raw, want)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := NewClient("https://unused.example", nil)
	if _, err := c.Search(context.Background(), "/skills/x/search", "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, server.Client()).Search(context.Background(), "/skills/x/search", "q")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || statusErr.Body != "backend down" {
		t.Errorf("unexpected error: %+v", statusErr)
	}
}

func TestHealth(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := NewClient(server.URL+"/skills", server.Client())
	h, err := c.Health(context.Background())
	if err != nil || !h.Ready {
		t.Fatalf("expected ready, got %+v, %v", h, err)
	}

	status = http.StatusServiceUnavailable
	h, err = c.Health(context.Background())
	if err != nil {
		t.Fatalf("non-2xx must not be an error: %v", err)
	}
	if h.Ready || h.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected not ready, got %+v", h)
	}
}

func TestSystemPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/skills/sift-stylus-research" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id":"sift-stylus-research","system_prompt":"  Be precise.  "}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, server.Client())
	prompt, err := c.SystemPrompt(context.Background(), "sift-stylus-research")
	if err != nil {
		t.Fatalf("SystemPrompt failed: %v", err)
	}
	if prompt != "Be precise." {
		t.Errorf("prompt = %q", prompt)
	}

	if _, err := c.SystemPrompt(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown skill")
	}
}
