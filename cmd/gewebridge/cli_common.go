package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gewebridge/pkg/config"
	"gewebridge/pkg/logger"
)

func normalizeCLIArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := []string{args[0]}
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--debug" || arg == "-d" {
			continue
		}
		if arg == "--config" {
			if i+1 < len(args) {
				i++
			}
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			continue
		}
		normalized = append(normalized, arg)
	}
	return normalized
}

func detectConfigPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" && i+1 < len(args) {
			return strings.TrimSpace(args[i+1])
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimSpace(strings.TrimPrefix(arg, "--config="))
		}
	}
	return ""
}

func printHelp() {
	fmt.Printf("gewebridge - WeChat bridge for gewechat v%s\n\n", version)
	fmt.Println("Usage: gewebridge <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  onboard     Write a default config file")
	fmt.Println("  gateway     Run the bridge in the foreground")
	fmt.Println("  login       Fetch a token and log the account in (QR code)")
	fmt.Println("  send        Send a reply to a wxid through the gateway")
	fmt.Println("  ask         Ask the model directly, without WeChat")
	fmt.Println("  status      Show config, gateway process and account status")
	fmt.Println("  config      Get/set/check config values")
	fmt.Println("  version     Show version information")
	fmt.Println()
	fmt.Println("Global options:")
	fmt.Println("  --config <path>         Use custom config file")
	fmt.Println("  --debug, -d             Enable debug logging")
}

func getConfigPath() string {
	if strings.TrimSpace(globalConfigPathOverride) != "" {
		return globalConfigPathOverride
	}
	if fromEnv := strings.TrimSpace(os.Getenv("GEWEBRIDGE_CONFIG")); fromEnv != "" {
		return fromEnv
	}
	return filepath.Join(config.GetConfigDir(), "config.json")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, err
	}
	configureLogging(cfg)
	return cfg, nil
}

func configureLogging(cfg *config.Config) {
	if !config.IsDebugMode() {
		if level, err := logger.ParseLevel(cfg.Logging.Level); err == nil {
			logger.SetLevel(level)
		}
	}
	if !cfg.Logging.Enabled {
		logger.DisableFileLogging()
		return
	}

	logFile := cfg.LogFilePath()
	if err := logger.EnableFileLoggingWithRotation(logFile, cfg.Logging.MaxSizeMB, cfg.Logging.RetentionDays); err != nil {
		fmt.Printf("Warning: failed to enable file logging: %v\n", err)
	}
}

// flagValues picks "--name value" pairs out of args and returns the rest.
func flagValues(args []string, names ...string) (map[string]string, []string) {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	values := make(map[string]string)
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if known[args[i]] && i+1 < len(args) {
			values[args[i]] = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	return values, rest
}
