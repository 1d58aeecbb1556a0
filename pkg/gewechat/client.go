package gewechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gewebridge/pkg/logger"
)

const (
	tokenHeader           = "X-GEWE-TOKEN"
	defaultRequestTimeout = 60 * time.Second
	maxErrorBodyBytes     = 2048
)

// Client talks to the gewechat HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// call posts body to endpoint and decodes the envelope. Any failure comes
// back as *RemoteCallError.
func (c *Client) call(ctx context.Context, endpoint string, body interface{}) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &RemoteCallError{Endpoint: endpoint, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &RemoteCallError{Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set(tokenHeader, token)
	}

	logger.DebugCF("gewechat", "Gateway request", map[string]interface{}{
		"endpoint": endpoint,
		"bytes":    len(payload),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteCallError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteCallError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteCallError{Endpoint: endpoint, Status: resp.StatusCode, Body: clip(raw)}
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &RemoteCallError{Endpoint: endpoint, Status: resp.StatusCode, Body: clip(raw), Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Ret != retOK {
		return &out, &RemoteCallError{Endpoint: endpoint, Status: resp.StatusCode, Ret: out.Ret, Msg: out.Msg, Body: clip(raw)}
	}
	return &out, nil
}

func clip(b []byte) string {
	if len(b) > maxErrorBodyBytes {
		return string(b[:maxErrorBodyBytes])
	}
	return string(b)
}

// GetToken fetches a new API token. The caller stores it.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, "tools/getTokenId", struct{}{})
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(resp.Data, &token); err != nil || token == "" {
		return "", &RemoteCallError{Endpoint: "tools/getTokenId", Ret: resp.Ret, Msg: "empty token in response"}
	}
	return token, nil
}

// SetCallback registers url as the webhook the gateway posts messages to.
// The gateway checks the URL with a self-test callback before answering.
func (c *Client) SetCallback(ctx context.Context, token, url string) (*Response, error) {
	return c.call(ctx, "tools/setCallback", map[string]string{
		"token":       token,
		"callbackUrl": url,
	})
}

func (c *Client) CheckOnline(ctx context.Context, appID string) (bool, error) {
	resp, err := c.call(ctx, "login/checkOnline", map[string]string{"appId": appID})
	if err != nil {
		return false, err
	}
	var online bool
	if err := json.Unmarshal(resp.Data, &online); err != nil {
		return false, &RemoteCallError{Endpoint: "login/checkOnline", Ret: resp.Ret, Body: clip(resp.Data), Err: fmt.Errorf("decode data: %w", err)}
	}
	return online, nil
}

func (c *Client) PostText(ctx context.Context, appID, toWxid, content, ats string) (*Response, error) {
	return c.call(ctx, "message/postText", map[string]string{
		"appId":   appID,
		"toWxid":  toWxid,
		"content": content,
		"ats":     ats,
	})
}

func (c *Client) PostImage(ctx context.Context, appID, toWxid, imgURL string) (*Response, error) {
	return c.call(ctx, "message/postImage", map[string]string{
		"appId":  appID,
		"toWxid": toWxid,
		"imgUrl": imgURL,
	})
}

// PostVoice sends a silk voice note; durationMS is in milliseconds.
func (c *Client) PostVoice(ctx context.Context, appID, toWxid, voiceURL string, durationMS int) (*Response, error) {
	return c.call(ctx, "message/postVoice", map[string]interface{}{
		"appId":         appID,
		"toWxid":        toWxid,
		"voiceUrl":      voiceURL,
		"voiceDuration": durationMS,
	})
}

// PostVideo sends a video by URL; durationSec is in seconds.
func (c *Client) PostVideo(ctx context.Context, appID, toWxid, videoURL, thumbURL string, durationSec int) (*Response, error) {
	return c.call(ctx, "message/postVideo", map[string]interface{}{
		"appId":         appID,
		"toWxid":        toWxid,
		"videoUrl":      videoURL,
		"thumbUrl":      thumbURL,
		"videoDuration": durationSec,
	})
}
