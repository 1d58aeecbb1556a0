package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigRejectsUnknownField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	content := `{
  "gewechat": {
    "base_url": "http://gw:2531/v2/api",
    "unknown_field": 1
  }
}`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := LoadConfig(cfgPath)
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unknown field") {
		t.Fatalf("expected unknown field error, got: %v", err)
	}
}

func TestLoadConfigRejectsTrailingJSONContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	content := `{"filter":{"max_age_sec":120}}{"extra":true}`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := LoadConfig(cfgPath)
	if err == nil {
		t.Fatalf("expected trailing json content error")
	}
	if !strings.Contains(err.Error(), "trailing JSON content") {
		t.Fatalf("expected trailing JSON content error, got: %v", err)
	}
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	content := `{
  "gewechat": {
    "base_url": "http://gw:2531/v2/api",
    "callback_url": "http://bridge:9919/v2/api/callback/collect"
  },
  "render": {"segment_interval_ms": 250},
  "agent": {"group_prefixes": ["bot"]}
}`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Gewechat.CallbackURL != "http://bridge:9919/v2/api/callback/collect" {
		t.Fatalf("callback_url mismatch: %q", cfg.Gewechat.CallbackURL)
	}
	if cfg.Render.SegmentIntervalMS != 250 {
		t.Fatalf("segment_interval_ms mismatch: %d", cfg.Render.SegmentIntervalMS)
	}
	if cfg.Render.SegmentDelimiter != "//n" {
		t.Fatalf("default delimiter lost: %q", cfg.Render.SegmentDelimiter)
	}
	if cfg.Filter.MaxAgeSec != 300 {
		t.Fatalf("default max age lost: %d", cfg.Filter.MaxAgeSec)
	}
	if len(cfg.Agent.GroupPrefixes) != 1 || cfg.Agent.GroupPrefixes[0] != "bot" {
		t.Fatalf("group_prefixes mismatch: %#v", cfg.Agent.GroupPrefixes)
	}
}

func TestLoadConfigEnvOverlay(t *testing.T) {
	t.Setenv("GEWEBRIDGE_GEWECHAT_TOKEN", "env-token")
	t.Setenv("GEWEBRIDGE_FILTER_MAX_AGE_SEC", "60")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if token, _ := cfg.Credentials(); token != "env-token" {
		t.Fatalf("env token not applied: %q", token)
	}
	if cfg.Filter.MaxAgeSec != 60 {
		t.Fatalf("env max age not applied: %d", cfg.Filter.MaxAgeSec)
	}
}

func TestValidateDefaultConfig(t *testing.T) {
	t.Parallel()

	if errs := Validate(DefaultConfig()); len(errs) != 0 {
		t.Fatalf("default config should validate, got %v", errs)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Gewechat.CallbackURL = "ftp://bridge/cb"
	cfg.Gewechat.BaseURL = ""
	cfg.Filter.MaxAgeSec = 0
	cfg.Render.SegmentDelimiter = ""
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "metrics"
	cfg.Sentinel.IntervalSec = 0
	cfg.Sentinel.TmpRetentionSec = -1
	cfg.Logging.Level = "chatty"

	errs := Validate(cfg)
	joined := ""
	for _, err := range errs {
		joined += err.Error() + "\n"
	}
	for _, want := range []string{
		"gewechat.base_url is required",
		"gewechat.callback_url must use http or https",
		"filter.max_age_sec",
		"render.segment_delimiter",
		"metrics.path must start with /",
		"sentinel.interval_sec",
		"sentinel.tmp_retention_sec",
		"logging.level",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in validation errors, got:\n%s", want, joined)
		}
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.SetToken("tok")
	cfg.SetAppID("wx_app")
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	token, appID := loaded.Credentials()
	if token != "tok" || appID != "wx_app" {
		t.Fatalf("credentials not persisted: %q %q", token, appID)
	}
}
