package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Gewechat GewechatConfig `json:"gewechat"`
	Media    MediaConfig    `json:"media"`
	Filter   FilterConfig   `json:"filter"`
	Render   RenderConfig   `json:"render"`
	Agent    AgentConfig    `json:"agent"`
	Provider ProviderConfig `json:"provider"`
	Metrics  MetricsConfig  `json:"metrics"`
	Sentinel SentinelConfig `json:"sentinel"`
	Logging  LoggingConfig  `json:"logging"`
	mu       sync.RWMutex
}

// GewechatConfig describes the gateway and how it reaches us. Token and
// AppID are written back after the first successful fetch and login.
type GewechatConfig struct {
	BaseURL     string `json:"base_url" env:"GEWEBRIDGE_GEWECHAT_BASE_URL"`
	Token       string `json:"token" env:"GEWEBRIDGE_GEWECHAT_TOKEN"`
	AppID       string `json:"app_id" env:"GEWEBRIDGE_GEWECHAT_APP_ID"`
	CallbackURL string `json:"callback_url" env:"GEWEBRIDGE_GEWECHAT_CALLBACK_URL"`
	DownloadURL string `json:"download_url" env:"GEWEBRIDGE_GEWECHAT_DOWNLOAD_URL"`
	ListenHost  string `json:"listen_host" env:"GEWEBRIDGE_GEWECHAT_LISTEN_HOST"`
	TimeoutSec  int    `json:"timeout_sec" env:"GEWEBRIDGE_GEWECHAT_TIMEOUT_SEC"`
}

type MediaConfig struct {
	TmpDir             string     `json:"tmp_dir" env:"GEWEBRIDGE_MEDIA_TMP_DIR"`
	FFmpeg             string     `json:"ffmpeg" env:"GEWEBRIDGE_MEDIA_FFMPEG"`
	FFprobe            string     `json:"ffprobe" env:"GEWEBRIDGE_MEDIA_FFPROBE"`
	VoiceCommands      [][]string `json:"voice_commands"`
	VoiceSampleRate    int        `json:"voice_sample_rate" env:"GEWEBRIDGE_MEDIA_VOICE_SAMPLE_RATE"`
	DownloadTimeoutSec int        `json:"download_timeout_sec" env:"GEWEBRIDGE_MEDIA_DOWNLOAD_TIMEOUT_SEC"`
}

type FilterConfig struct {
	MaxAgeSec int `json:"max_age_sec" env:"GEWEBRIDGE_FILTER_MAX_AGE_SEC"`
}

type RenderConfig struct {
	SegmentDelimiter         string `json:"segment_delimiter" env:"GEWEBRIDGE_RENDER_SEGMENT_DELIMITER"`
	SegmentIntervalMS        int    `json:"segment_interval_ms" env:"GEWEBRIDGE_RENDER_SEGMENT_INTERVAL_MS"`
	VideoFallbackDurationSec int    `json:"video_fallback_duration_sec" env:"GEWEBRIDGE_RENDER_VIDEO_FALLBACK_DURATION_SEC"`
}

type AgentConfig struct {
	GroupPrefixes   []string `json:"group_prefixes" env:"GEWEBRIDGE_AGENT_GROUP_PREFIXES"`
	PrivatePrefixes []string `json:"private_prefixes" env:"GEWEBRIDGE_AGENT_PRIVATE_PREFIXES"`
	Model           string   `json:"model" env:"GEWEBRIDGE_AGENT_MODEL"`
	ModelFallbacks  []string `json:"model_fallbacks" env:"GEWEBRIDGE_AGENT_MODEL_FALLBACKS"`
	SystemPrompt    string   `json:"system_prompt" env:"GEWEBRIDGE_AGENT_SYSTEM_PROMPT"`
	MaxTokens       int      `json:"max_tokens" env:"GEWEBRIDGE_AGENT_MAX_TOKENS"`
	Temperature     float64  `json:"temperature" env:"GEWEBRIDGE_AGENT_TEMPERATURE"`
	Workers         int      `json:"workers" env:"GEWEBRIDGE_AGENT_WORKERS"`
}

type ProviderConfig struct {
	APIKey     string `json:"api_key" env:"GEWEBRIDGE_PROVIDER_API_KEY"`
	APIBase    string `json:"api_base" env:"GEWEBRIDGE_PROVIDER_API_BASE"`
	Auth       string `json:"auth" env:"GEWEBRIDGE_PROVIDER_AUTH"`
	TimeoutSec int    `json:"timeout_sec" env:"GEWEBRIDGE_PROVIDER_TIMEOUT_SEC"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"GEWEBRIDGE_METRICS_ENABLED"`
	Path    string `json:"path" env:"GEWEBRIDGE_METRICS_PATH"`
}

// SentinelConfig drives the housekeeping loop. A zero TmpRetentionSec keeps
// staged files forever.
type SentinelConfig struct {
	Enabled         bool `json:"enabled" env:"GEWEBRIDGE_SENTINEL_ENABLED"`
	IntervalSec     int  `json:"interval_sec" env:"GEWEBRIDGE_SENTINEL_INTERVAL_SEC"`
	AutoHeal        bool `json:"auto_heal" env:"GEWEBRIDGE_SENTINEL_AUTO_HEAL"`
	TmpRetentionSec int  `json:"tmp_retention_sec" env:"GEWEBRIDGE_SENTINEL_TMP_RETENTION_SEC"`
}

type LoggingConfig struct {
	Level         string `json:"level" env:"GEWEBRIDGE_LOGGING_LEVEL"`
	Enabled       bool   `json:"enabled" env:"GEWEBRIDGE_LOGGING_ENABLED"`
	Dir           string `json:"dir" env:"GEWEBRIDGE_LOGGING_DIR"`
	Filename      string `json:"filename" env:"GEWEBRIDGE_LOGGING_FILENAME"`
	MaxSizeMB     int    `json:"max_size_mb" env:"GEWEBRIDGE_LOGGING_MAX_SIZE_MB"`
	RetentionDays int    `json:"retention_days" env:"GEWEBRIDGE_LOGGING_RETENTION_DAYS"`
}

var (
	isDebug bool
	muDebug sync.RWMutex
)

func SetDebugMode(debug bool) {
	muDebug.Lock()
	defer muDebug.Unlock()
	isDebug = debug
}

func IsDebugMode() bool {
	muDebug.RLock()
	defer muDebug.RUnlock()
	return isDebug
}

func GetConfigDir() string {
	if IsDebugMode() {
		return ".gewebridge"
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gewebridge")
}

func DefaultConfig() *Config {
	configDir := GetConfigDir()
	return &Config{
		Gewechat: GewechatConfig{
			BaseURL:     "http://127.0.0.1:2531/v2/api",
			CallbackURL: "http://127.0.0.1:1145/v2/api/callback/collect",
			DownloadURL: "http://127.0.0.1:2532/download",
			ListenHost:  "0.0.0.0",
			TimeoutSec:  60,
		},
		Media: MediaConfig{
			TmpDir:             filepath.Join(configDir, "tmp"),
			FFmpeg:             "ffmpeg",
			FFprobe:            "ffprobe",
			VoiceSampleRate:    24000,
			DownloadTimeoutSec: 60,
		},
		Filter: FilterConfig{
			MaxAgeSec: 300,
		},
		Render: RenderConfig{
			SegmentDelimiter:         "//n",
			SegmentIntervalMS:        500,
			VideoFallbackDurationSec: 10,
		},
		Agent: AgentConfig{
			GroupPrefixes:   []string{},
			PrivatePrefixes: []string{""},
			Model:           "gpt-4o-mini",
			ModelFallbacks:  []string{},
			SystemPrompt:    "You are a helpful assistant chatting on WeChat. Keep replies short.",
			MaxTokens:       2048,
			Temperature:     0.7,
			Workers:         4,
		},
		Provider: ProviderConfig{
			APIBase:    "http://localhost:8080/v1",
			TimeoutSec: 90,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
		Sentinel: SentinelConfig{
			Enabled:         true,
			IntervalSec:     600,
			AutoHeal:        true,
			TmpRetentionSec: 86400,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Enabled:       true,
			Dir:           filepath.Join(configDir, "logs"),
			Filename:      "gewebridge.log",
			MaxSizeMB:     20,
			RetentionDays: 3,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := unmarshalConfigStrict(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func unmarshalConfigStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Credentials returns the gateway token and app id.
func (c *Config) Credentials() (token, appID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Gewechat.Token, c.Gewechat.AppID
}

func (c *Config) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gewechat.Token = token
}

func (c *Config) SetAppID(appID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gewechat.AppID = appID
}

func (c *Config) TmpDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Media.TmpDir)
}

func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := expandHome(c.Logging.Dir)
	filename := c.Logging.Filename
	if filename == "" {
		filename = "gewebridge.log"
	}
	return filepath.Join(dir, filename)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
