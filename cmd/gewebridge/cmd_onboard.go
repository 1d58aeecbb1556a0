package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gewebridge/pkg/config"
)

func onboard() {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(line), "y") {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Config written to %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set gewechat.base_url and gewechat.callback_url (reachable from the gateway)")
	fmt.Println("  2. Set provider.api_base and provider.api_key")
	fmt.Println("  3. Run: gewebridge login")
	fmt.Println("  4. Run: gewebridge gateway")
}
