package configops

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gewebridge/pkg/config"
)

func TestNormalizeConfigPath(t *testing.T) {
	tests := map[string]string{
		"logging.enable": "logging.enabled",
		".gewe.appid.":   "gewechat.app_id",
		"gewechat.token": "gewechat.token",
		"metrics.enable": "metrics.enabled",
		"render.gewe":    "render.gewe",
	}
	for in, want := range tests {
		if got := NormalizeConfigPath(in); got != want {
			t.Fatalf("NormalizeConfigPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseConfigValue(t *testing.T) {
	if v := ParseConfigValue("true"); v != true {
		t.Fatalf("expected bool, got %#v", v)
	}
	if v := ParseConfigValue("300"); v != int64(300) {
		t.Fatalf("expected int64, got %#v", v)
	}
	if v := ParseConfigValue("0.5"); v != 0.5 {
		t.Fatalf("expected float, got %#v", v)
	}
	if v := ParseConfigValue(`"//n"`); v != "//n" {
		t.Fatalf("expected unquoted string, got %#v", v)
	}
}

func TestSetAndGetByPath(t *testing.T) {
	root := map[string]interface{}{}
	if err := SetMapValueByPath(root, "gewechat.base_url", "http://gw"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := GetMapValueByPath(root, "gewechat.base_url")
	if !ok || got != "http://gw" {
		t.Fatalf("get mismatch: %#v %v", got, ok)
	}
	if err := SetMapValueByPath(root, "gewechat.base_url.x", 1); err == nil {
		t.Fatalf("expected error when descending into a scalar")
	}
}

func TestPersistGewechatKeepsOtherKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"gewechat":{"base_url":"http://gw:2531/v2/api"},"filter":{"max_age_sec":120}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := PersistGewechat(path, "tok-9", "wx_app_9"); err != nil {
		t.Fatalf("persist: %v", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	token, appID := cfg.Credentials()
	if token != "tok-9" || appID != "wx_app_9" {
		t.Fatalf("credentials not persisted: %q %q", token, appID)
	}
	if cfg.Gewechat.BaseURL != "http://gw:2531/v2/api" || cfg.Filter.MaxAgeSec != 120 {
		t.Fatalf("other keys lost: %+v %+v", cfg.Gewechat, cfg.Filter)
	}

	backup, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("expected backup: %v", err)
	}
	var old map[string]interface{}
	if err := json.Unmarshal(backup, &old); err != nil {
		t.Fatalf("backup is not json: %v", err)
	}
	if _, ok := GetMapValueByPath(old, "gewechat.token"); ok {
		t.Fatalf("backup should hold the previous content")
	}
}

func TestRollbackConfigFromBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	backup, err := WriteConfigAtomicWithBackup(path, []byte(`{"a":2}`))
	if err != nil {
		t.Fatalf("atomic write: %v", err)
	}
	if err := RollbackConfigFromBackup(path, backup); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != `{"a":1}` {
		t.Fatalf("rollback content mismatch: %s", data)
	}
}

func TestGatewayPID(t *testing.T) {
	errNotRunning := errors.New("gateway not running")
	path := filepath.Join(t.TempDir(), "config.json")

	if _, err := GatewayPID(path, errNotRunning); !errors.Is(err, errNotRunning) {
		t.Fatalf("expected not running, got %v", err)
	}
	if _, err := WritePIDFile(path); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	pid, err := GatewayPID(path, errNotRunning)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("expected own pid, got %d %v", pid, err)
	}
}
