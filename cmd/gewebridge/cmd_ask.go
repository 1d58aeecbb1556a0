package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gewebridge/pkg/agent"
	"gewebridge/pkg/bus"
	"gewebridge/pkg/providers"
)

// askCmd sends one prompt straight to the model, bypassing WeChat.
func askCmd() {
	prompt := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if prompt == "" {
		fmt.Println("Usage: gewebridge ask <prompt>")
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		fmt.Printf("Error creating provider: %v\n", err)
		os.Exit(1)
	}

	loop := agent.NewAgentLoop(cfg, bus.NewMessageBus(), provider)
	answer, err := loop.ProcessDirect(context.Background(), prompt)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		os.Exit(1)
	}
	fmt.Println(answer)
}
