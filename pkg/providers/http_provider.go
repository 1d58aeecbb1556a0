// gewebridge - WeChat bridge for the gewechat gateway
// Inspired by nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 gewebridge contributors

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gewebridge/pkg/config"
	"gewebridge/pkg/logger"
)

type HTTPProvider struct {
	apiKey       string
	apiBase      string
	authMode     string
	defaultModel string
	timeout      time.Duration
	httpClient   *http.Client
}

func NewHTTPProvider(apiKey, apiBase, authMode, defaultModel string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		apiKey:       apiKey,
		apiBase:      normalizeAPIBase(apiBase),
		authMode:     authMode,
		defaultModel: defaultModel,
		timeout:      timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *HTTPProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if p.apiBase == "" {
		return nil, fmt.Errorf("API base not configured")
	}
	if model == "" {
		model = p.defaultModel
	}

	logger.DebugCF("provider", "HTTP chat request", map[string]interface{}{
		"api_base":       p.apiBase,
		"model":          model,
		"messages_count": len(messages),
		"timeout":        p.timeout.String(),
	})

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}

	if maxTokens, ok := options["max_tokens"].(int); ok {
		requestBody["max_tokens"] = maxTokens
	}

	if temperature, ok := options["temperature"].(float64); ok {
		requestBody["temperature"] = temperature
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		if strings.Contains(p.apiBase, "googleapis.com") && p.authMode != "oauth" {
			// Gemini direct API uses x-goog-api-key header or key query param
			req.Header.Set("x-goog-api-key", p.apiKey)
		} else {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return parseResponse(body)
}

func parseResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *UsageInfo `json:"usage"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(apiResponse.Choices) == 0 {
		return &LLMResponse{
			Content:      "",
			FinishReason: "stop",
		}, nil
	}

	choice := apiResponse.Choices[0]
	content := ""
	if choice.Message.Content != nil {
		content = *choice.Message.Content
	}

	return &LLMResponse{
		Content:      content,
		FinishReason: choice.FinishReason,
		Usage:        apiResponse.Usage,
	}, nil
}

func (p *HTTPProvider) GetDefaultModel() string {
	return p.defaultModel
}

// normalizeAPIBase accepts a base URL or a full endpoint URL and returns the
// base the /chat/completions suffix is appended to.
func normalizeAPIBase(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return strings.TrimRight(trimmed, "/")
	}

	path := strings.TrimRight(u.Path, "/")
	for _, suffix := range []string{
		"/chat/completions",
		"/chat",
	} {
		if strings.HasSuffix(path, suffix) {
			path = strings.TrimSuffix(path, suffix)
			break
		}
	}
	u.Path = path
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}

func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	pc := cfg.Provider
	if pc.APIBase == "" {
		return nil, fmt.Errorf("no provider api_base configured")
	}
	if pc.TimeoutSec <= 0 {
		return nil, fmt.Errorf("invalid provider.timeout_sec: %d", pc.TimeoutSec)
	}

	return NewHTTPProvider(pc.APIKey, pc.APIBase, pc.Auth, cfg.Agent.Model, time.Duration(pc.TimeoutSec)*time.Second), nil
}
