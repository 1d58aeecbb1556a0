package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPProviderChat(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"content":"pong"}}],"usage":{"total_tokens":7}}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("sk-test", srv.URL+"/v1/chat/completions", "", "gpt-test", 5*time.Second)
	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "ping"}}, "", nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Content != "pong" || resp.Usage == nil || resp.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody["model"] != "gpt-test" {
		t.Fatalf("default model not applied: %v", gotBody["model"])
	}
}

func TestHTTPProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTPProvider("", srv.URL, "", "m", time.Second)
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "x"}}, "", nil)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestParseResponseWithoutChoices(t *testing.T) {
	resp, err := parseResponse([]byte(`{"choices":[]}`))
	if err != nil {
		t.Fatalf("parseResponse error: %v", err)
	}
	if resp.Content != "" || resp.FinishReason != "stop" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestNormalizeAPIBase_CompatibilityPaths(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080/v1/chat/completions", "http://localhost:8080/v1"},
		{"http://localhost:8080/v1/chat", "http://localhost:8080/v1"},
		{"http://localhost:8080/v1/", "http://localhost:8080/v1"},
		{"http://localhost:8080/v1", "http://localhost:8080/v1"},
		{"", ""},
	}

	for _, tt := range tests {
		got := normalizeAPIBase(tt.in)
		if got != tt.want {
			t.Fatalf("normalizeAPIBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
