package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gewebridge/pkg/configops"
	"gewebridge/pkg/gewechat"
)

func loginCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	token, appID := cfg.Credentials()
	client := gewechat.NewClient(cfg.Gewechat.BaseURL, token, time.Duration(cfg.Gewechat.TimeoutSec)*time.Second)
	if token == "" {
		fmt.Println("Fetching a new gateway token...")
		token, err = client.GetToken(ctx)
		if err != nil {
			fmt.Printf("✗ Failed to fetch token: %v\n", err)
			os.Exit(1)
		}
		client.SetToken(token)
	}

	fmt.Println("Checking login state (scan the QR code if one is shown)...")
	newAppID, err := client.Login(ctx, appID, gewechat.LoginOptions{QROutput: os.Stdout})
	if err != nil {
		fmt.Printf("✗ Login failed: %v\n", err)
		os.Exit(1)
	}

	if err := configops.PersistGewechat(getConfigPath(), token, newAppID); err != nil {
		fmt.Printf("✗ Failed to save credentials: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Logged in, app id %s saved to %s\n", newAppID, getConfigPath())
}
