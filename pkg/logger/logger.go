// Package logger is the bridge's component logger. Every line carries a
// component name and sorted key/value fields; console output is plain text,
// the optional file sink writes one JSON object per line and rotates by size.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// ParseLevel accepts debug, info, warn/warning, error and fatal in any case.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "fatal":
		return FATAL, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

var (
	currentLevel atomic.Int32
	sink         = &fileSink{}

	observersMu sync.RWMutex
	observers   = map[int]func(LogEntry){}
	observerSeq int
)

func init() {
	currentLevel.Store(int32(INFO))
}

type LogEntry struct {
	Level     string                 `json:"level"`
	Timestamp string                 `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

func SetLevel(level LogLevel) {
	currentLevel.Store(int32(level))
}

func enabled(level LogLevel) bool {
	return int32(level) >= currentLevel.Load()
}

// Observe registers fn to receive every entry that passes the level filter.
// The returned func removes the observer.
func Observe(fn func(LogEntry)) func() {
	observersMu.Lock()
	observerSeq++
	id := observerSeq
	observers[id] = fn
	observersMu.Unlock()

	return func() {
		observersMu.Lock()
		delete(observers, id)
		observersMu.Unlock()
	}
}

func notifyObservers(entry LogEntry) {
	observersMu.RLock()
	defer observersMu.RUnlock()
	for _, fn := range observers {
		fn(entry)
	}
}

// fileSink owns the JSON log file. All state is guarded by mu.
type fileSink struct {
	mu           sync.Mutex
	file         *os.File
	path         string
	maxSizeBytes int64
	maxAgeDays   int
}

// EnableFileLoggingWithRotation starts writing JSON lines to filePath,
// rotating at maxSizeMB and deleting rotated files older than maxAgeDays.
func EnableFileLoggingWithRotation(filePath string, maxSizeMB, maxAgeDays int) error {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 3
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	sink.mu.Lock()
	if sink.file != nil {
		sink.file.Close()
	}
	sink.file = file
	sink.path = filePath
	sink.maxSizeBytes = int64(maxSizeMB) * 1024 * 1024
	sink.maxAgeDays = maxAgeDays
	cleanupErr := sink.cleanupRotated()
	sink.mu.Unlock()

	if cleanupErr != nil {
		log.Println("Failed to clean up old log files:", cleanupErr)
	}
	return nil
}

func DisableFileLogging() {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.file != nil {
		sink.file.Close()
	}
	*sink = fileSink{}
}

func logMessage(level LogLevel, component string, message string, fields map[string]interface{}) {
	if !enabled(level) {
		return
	}

	entry := LogEntry{
		Level:     level.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Component: component,
		Message:   message,
		Fields:    fields,
	}
	if pc, file, line, ok := runtime.Caller(2); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			entry.Caller = fmt.Sprintf("%s:%d (%s)", file, line, fn.Name())
		}
	}

	notifyObservers(entry)

	if data, err := json.Marshal(entry); err == nil {
		if err := sink.write(append(data, '\n')); err != nil {
			log.Println("Failed to write file log:", err)
		}
	}

	line := fmt.Sprintf("[%s] [%s]", entry.Timestamp, entry.Level)
	if component != "" {
		line += " " + component + ":"
	}
	line += " " + message
	if len(fields) > 0 {
		line += " " + formatFields(fields)
	}
	log.Println(line)

	if level == FATAL {
		os.Exit(1)
	}
}

func (s *fileSink) write(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	if s.maxSizeBytes > 0 {
		if err := s.rotateIfNeeded(int64(len(line))); err != nil {
			return err
		}
	}
	_, err := s.file.Write(line)
	return err
}

// rotateIfNeeded renames the current file to <path>.<utc stamp> when the next
// write would push it past the size limit.
func (s *fileSink) rotateIfNeeded(nextWrite int64) error {
	info, err := s.file.Stat()
	if err != nil {
		return err
	}
	if info.Size()+nextWrite <= s.maxSizeBytes {
		return nil
	}
	if err := s.file.Close(); err != nil {
		return err
	}

	rotated := s.path + "." + time.Now().UTC().Format("20060102-150405")
	if err := os.Rename(s.path, rotated); err != nil {
		return err
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.file = nil
		return err
	}
	s.file = file
	return s.cleanupRotated()
}

func (s *fileSink) cleanupRotated() error {
	if s.maxAgeDays <= 0 || s.path == "" {
		return nil
	}
	dir, base := filepath.Split(s.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -s.maxAgeDays)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, base+".") {
			continue
		}
		if info, err := entry.Info(); err == nil && info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func DebugCF(component string, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func InfoC(component string, message string) {
	logMessage(INFO, component, message, nil)
}

func InfoCF(component string, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func WarnC(component string, message string) {
	logMessage(WARN, component, message, nil)
}

func WarnCF(component string, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func ErrorCF(component string, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}

// FatalCF logs and exits the process with status 1. Deferred calls do not run.
func FatalCF(component string, message string, fields map[string]interface{}) {
	logMessage(FATAL, component, message, fields)
}
