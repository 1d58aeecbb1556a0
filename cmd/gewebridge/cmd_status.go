package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gewebridge/pkg/configops"
	"gewebridge/pkg/gewechat"
)

func statusCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}

	configPath := getConfigPath()

	fmt.Println("gewebridge Status")
	fmt.Println()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗")
	}

	if pid, err := configops.GatewayPID(configPath, errGatewayNotRunning); err == nil {
		fmt.Printf("Gateway: running (pid %d)\n", pid)
	} else {
		fmt.Printf("Gateway: %v\n", err)
	}

	fmt.Printf("Gateway API: %s\n", cfg.Gewechat.BaseURL)
	fmt.Printf("Callback URL: %s\n", cfg.Gewechat.CallbackURL)
	fmt.Printf("Temp Dir: %s\n", cfg.TmpDir())
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	fmt.Printf("Provider Base: %s\n", cfg.Provider.APIBase)

	token, appID := cfg.Credentials()
	if token == "" {
		fmt.Println("Token: not set")
	} else {
		fmt.Println("Token: ✓")
	}
	if appID == "" {
		fmt.Println("Account: not logged in")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client := gewechat.NewClient(cfg.Gewechat.BaseURL, token, 10*time.Second)
		online, err := client.CheckOnline(ctx, appID)
		switch {
		case err != nil:
			fmt.Printf("Account: %s (check failed: %v)\n", appID, err)
		case online:
			fmt.Printf("Account: %s online ✓\n", appID)
		default:
			fmt.Printf("Account: %s offline ✗\n", appID)
		}
	}

	fmt.Printf("Logging: %v\n", cfg.Logging.Enabled)
	if cfg.Logging.Enabled {
		fmt.Printf("Log File: %s\n", cfg.LogFilePath())
	}
}
