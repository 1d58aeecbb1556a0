package config

import (
	"fmt"
	"net/url"
	"strings"

	"gewebridge/pkg/logger"
)

// Validate returns configuration problems found in cfg.
// It does not mutate cfg.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	var errs []error

	gw := cfg.Gewechat
	errs = append(errs, validateHTTPURL("gewechat.base_url", gw.BaseURL)...)
	errs = append(errs, validateHTTPURL("gewechat.callback_url", gw.CallbackURL)...)
	if gw.DownloadURL != "" {
		errs = append(errs, validateHTTPURL("gewechat.download_url", gw.DownloadURL)...)
	}
	if gw.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("gewechat.timeout_sec must be > 0"))
	}

	if strings.TrimSpace(cfg.Media.TmpDir) == "" {
		errs = append(errs, fmt.Errorf("media.tmp_dir must not be empty"))
	}
	if cfg.Media.VoiceSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("media.voice_sample_rate must be > 0"))
	}
	if cfg.Media.DownloadTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("media.download_timeout_sec must be > 0"))
	}
	for i, step := range cfg.Media.VoiceCommands {
		if len(step) == 0 || strings.TrimSpace(step[0]) == "" {
			errs = append(errs, fmt.Errorf("media.voice_commands[%d] must name a command", i))
		}
	}

	if cfg.Filter.MaxAgeSec <= 0 {
		errs = append(errs, fmt.Errorf("filter.max_age_sec must be > 0"))
	}

	if cfg.Render.SegmentDelimiter == "" {
		errs = append(errs, fmt.Errorf("render.segment_delimiter must not be empty"))
	}
	if cfg.Render.SegmentIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("render.segment_interval_ms must be >= 0"))
	}
	if cfg.Render.VideoFallbackDurationSec <= 0 {
		errs = append(errs, fmt.Errorf("render.video_fallback_duration_sec must be > 0"))
	}

	if cfg.Agent.Workers <= 0 {
		errs = append(errs, fmt.Errorf("agent.workers must be > 0"))
	}
	if cfg.Agent.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_tokens must be > 0"))
	}

	if cfg.Provider.APIBase == "" {
		errs = append(errs, fmt.Errorf("provider.api_base is required"))
	}
	if cfg.Provider.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("provider.timeout_sec must be > 0"))
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("metrics.path must start with /"))
		} else if u, err := url.Parse(gw.CallbackURL); err == nil && u.Path == cfg.Metrics.Path {
			errs = append(errs, fmt.Errorf("metrics.path must differ from the callback path"))
		}
	}

	if cfg.Sentinel.Enabled && cfg.Sentinel.IntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("sentinel.interval_sec must be > 0 when sentinel.enabled=true"))
	}
	if cfg.Sentinel.TmpRetentionSec < 0 {
		errs = append(errs, fmt.Errorf("sentinel.tmp_retention_sec must be >= 0"))
	}

	if _, err := logger.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %v", err))
	}
	if cfg.Logging.Enabled {
		if cfg.Logging.Dir == "" {
			errs = append(errs, fmt.Errorf("logging.dir is required when logging.enabled=true"))
		}
		if cfg.Logging.MaxSizeMB <= 0 {
			errs = append(errs, fmt.Errorf("logging.max_size_mb must be > 0"))
		}
		if cfg.Logging.RetentionDays <= 0 {
			errs = append(errs, fmt.Errorf("logging.retention_days must be > 0"))
		}
	}

	return errs
}

func validateHTTPURL(path, raw string) []error {
	if strings.TrimSpace(raw) == "" {
		return []error{fmt.Errorf("%s is required", path)}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("%s is not a valid url: %v", path, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []error{fmt.Errorf("%s must use http or https", path)}
	}
	if u.Host == "" {
		return []error{fmt.Errorf("%s must include a host", path)}
	}
	return nil
}
