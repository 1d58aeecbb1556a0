package sentinel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gewebridge/pkg/config"
	"gewebridge/pkg/lifecycle"
	"gewebridge/pkg/logger"
)

const alertCooldown = 5 * time.Minute

// stagedPrefixes are the name prefixes the renderer stages under.
var stagedPrefixes = []string{"voice_", "img_", "video_", "thumb_"}

type AlertFunc func(msg string)

// Service is the housekeeping loop next to the bridge: it watches the config
// file, keeps the temp and log directories present and purges staged media
// the gateway has had time to fetch.
type Service struct {
	cfgPath    string
	tmpDir     string
	interval   time.Duration
	retention  time.Duration
	autoHeal   bool
	onAlert    AlertFunc
	runner     *lifecycle.LoopRunner
	now        func() time.Time
	mu         sync.RWMutex
	lastAlerts map[string]time.Time
}

func NewService(cfgPath, tmpDir string, sc config.SentinelConfig, onAlert AlertFunc) *Service {
	intervalSec := sc.IntervalSec
	if intervalSec <= 0 {
		intervalSec = 60
	}
	return &Service{
		cfgPath:    cfgPath,
		tmpDir:     tmpDir,
		interval:   time.Duration(intervalSec) * time.Second,
		retention:  time.Duration(sc.TmpRetentionSec) * time.Second,
		autoHeal:   sc.AutoHeal,
		onAlert:    onAlert,
		runner:     lifecycle.NewLoopRunner(),
		now:        time.Now,
		lastAlerts: map[string]time.Time{},
	}
}

func (s *Service) Start(ctx context.Context) {
	if !s.runner.Start(ctx, s.loop) {
		return
	}
	logger.InfoCF("sentinel", "Sentinel started", map[string]interface{}{
		"interval":      s.interval.String(),
		"auto_heal":     s.autoHeal,
		"tmp_retention": s.retention.String(),
	})
}

func (s *Service) Stop() {
	if !s.runner.Stop() {
		return
	}
	logger.InfoC("sentinel", "Sentinel stopped")
}

func (s *Service) loop(ctx context.Context) {
	tk := time.NewTicker(s.interval)
	defer tk.Stop()

	s.RunChecks()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			s.RunChecks()
		}
	}
}

// RunChecks runs one round and returns the issues found, alerted or not.
func (s *Service) RunChecks() []string {
	issues := s.checkConfig()
	issues = append(issues, s.checkTempDir()...)
	issues = append(issues, s.checkLogs()...)

	for _, issue := range issues {
		s.alert(issue)
	}
	return issues
}

func (s *Service) checkConfig() []string {
	if s.cfgPath == "" {
		return nil
	}
	_, err := os.Stat(s.cfgPath)
	if err != nil {
		return []string{fmt.Sprintf("sentinel: config file missing: %s", s.cfgPath)}
	}

	cfg, err := config.LoadConfig(s.cfgPath)
	if err != nil {
		return []string{fmt.Sprintf("sentinel: config parse failed: %v", err)}
	}

	verrs := config.Validate(cfg)
	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, fmt.Sprintf("sentinel: config validation issue: %v", e))
	}
	return out
}

func (s *Service) checkTempDir() []string {
	if _, err := os.Stat(s.tmpDir); err != nil {
		if s.autoHeal {
			if mkErr := os.MkdirAll(s.tmpDir, 0755); mkErr == nil {
				return []string{"sentinel: temp dir missing, auto-healed"}
			}
		}
		return []string{fmt.Sprintf("sentinel: temp dir missing: %s", s.tmpDir)}
	}

	if s.retention <= 0 {
		return nil
	}
	removed, err := s.purgeStaged()
	if err != nil {
		return []string{fmt.Sprintf("sentinel: temp purge failed: %v", err)}
	}
	if removed > 0 {
		logger.InfoCF("sentinel", "Purged staged media", map[string]interface{}{
			"removed":        removed,
			logger.FieldPath: s.tmpDir,
		})
	}
	return nil
}

// purgeStaged removes staged files older than the retention window. Files
// that do not look staged are left alone.
func (s *Service) purgeStaged() (int, error) {
	entries, err := os.ReadDir(s.tmpDir)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isStaged(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.tmpDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			logger.WarnCF("sentinel", "Failed to remove staged file", map[string]interface{}{
				logger.FieldPath:  entry.Name(),
				logger.FieldError: err.Error(),
			})
			continue
		}
		removed++
	}
	return removed, nil
}

func isStaged(name string) bool {
	for _, prefix := range stagedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (s *Service) checkLogs() []string {
	if s.cfgPath == "" {
		return nil
	}
	cfg, err := config.LoadConfig(s.cfgPath)
	if err != nil || !cfg.Logging.Enabled {
		return nil
	}
	logDir := filepath.Clean(filepath.Dir(cfg.LogFilePath()))
	if _, err := os.Stat(logDir); err != nil {
		if s.autoHeal {
			if mkErr := os.MkdirAll(logDir, 0755); mkErr == nil {
				return []string{"sentinel: log dir missing, auto-healed"}
			}
		}
		return []string{fmt.Sprintf("sentinel: log dir missing: %s", logDir)}
	}
	return nil
}

func (s *Service) alert(msg string) {
	now := s.now()
	s.mu.Lock()
	last, ok := s.lastAlerts[msg]
	if ok && now.Sub(last) < alertCooldown {
		s.mu.Unlock()
		return
	}
	s.lastAlerts[msg] = now
	s.mu.Unlock()

	logger.WarnCF("sentinel", msg, nil)
	if s.onAlert != nil {
		s.onAlert(msg)
	}
}
