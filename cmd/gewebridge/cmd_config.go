package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gewebridge/pkg/config"
	"gewebridge/pkg/configops"
)

func configCmd() {
	if len(os.Args) < 3 {
		configHelp()
		return
	}

	switch os.Args[2] {
	case "set":
		configSetCmd()
	case "get":
		configGetCmd()
	case "check":
		configCheckCmd()
	default:
		fmt.Printf("Unknown config command: %s\n", os.Args[2])
		configHelp()
	}
}

func configHelp() {
	fmt.Println("\nConfig commands:")
	fmt.Println("  set <path> <value>     Set config value (validated, rolled back if invalid)")
	fmt.Println("  get <path>             Get config value")
	fmt.Println("  check                  Validate current config")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  gewebridge config set gewe.callback_url http://10.0.0.2:1145/v2/api/callback/collect")
	fmt.Println("  gewebridge config set agent.group_prefixes '[\"@bot\"]'")
	fmt.Println("  gewebridge config get gewechat.appid")
	fmt.Println("  gewebridge config check")
}

func configSetCmd() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: gewebridge config set <path> <value>")
		return
	}

	configPath := getConfigPath()
	cfgMap, err := configops.LoadConfigAsMap(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}

	path := configops.NormalizeConfigPath(os.Args[3])
	// Global flags were already stripped from os.Args in main.
	valueParts := os.Args[4:]
	if len(valueParts) == 0 {
		fmt.Println("Error: value is required")
		return
	}
	value := configops.ParseConfigValue(strings.Join(valueParts, " "))
	if err := configops.SetMapValueByPath(cfgMap, path, value); err != nil {
		fmt.Printf("Error setting value: %v\n", err)
		return
	}

	data, err := json.MarshalIndent(cfgMap, "", "  ")
	if err != nil {
		fmt.Printf("Error serializing config: %v\n", err)
		return
	}
	backupPath, err := configops.WriteConfigAtomicWithBackup(configPath, data)
	if err != nil {
		fmt.Printf("Error writing config: %v\n", err)
		return
	}

	if err := checkConfigFile(configPath); err != nil {
		if rbErr := configops.RollbackConfigFromBackup(configPath, backupPath); rbErr != nil {
			fmt.Printf("Invalid value and rollback failed: %v\n", rbErr)
		} else {
			fmt.Printf("Invalid value, config rolled back: %v\n", err)
		}
		return
	}

	fmt.Printf("✓ Updated %s = %v\n", path, value)
	if pid, err := configops.GatewayPID(configPath, errGatewayNotRunning); err == nil {
		fmt.Printf("Gateway is running (pid %d); restart it to apply the change\n", pid)
	}
}

// checkConfigFile loads and validates the config on disk.
func checkConfigFile(path string) error {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func configGetCmd() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: gewebridge config get <path>")
		return
	}

	configPath := getConfigPath()
	cfgMap, err := configops.LoadConfigAsMap(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}

	path := configops.NormalizeConfigPath(os.Args[3])
	value, ok := configops.GetMapValueByPath(cfgMap, path)
	if !ok {
		fmt.Printf("Path not found: %s\n", path)
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		fmt.Printf("%v\n", value)
		return
	}
	fmt.Println(string(data))
}

func configCheckCmd() {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		fmt.Printf("Config load failed: %v\n", err)
		return
	}
	validationErrors := config.Validate(cfg)
	if len(validationErrors) == 0 {
		fmt.Println("✓ Config validation passed")
		return
	}

	fmt.Println("✗ Config validation failed:")
	for _, ve := range validationErrors {
		fmt.Printf("  - %v\n", ve)
	}
}
