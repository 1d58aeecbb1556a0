// gewebridge - WeChat bridge for the gewechat gateway
// Inspired by nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 gewebridge contributors

package main

import (
	"errors"
	"fmt"
	"os"

	"gewebridge/pkg/config"
	"gewebridge/pkg/logger"
)

const version = "0.1.0"

var globalConfigPathOverride string

var errGatewayNotRunning = errors.New("gateway not running")

func main() {
	globalConfigPathOverride = detectConfigPathFromArgs(os.Args)

	for _, arg := range os.Args {
		if arg == "--debug" || arg == "-d" {
			config.SetDebugMode(true)
			logger.SetLevel(logger.DEBUG)
			break
		}
	}

	os.Args = normalizeCLIArgs(os.Args)

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "onboard":
		onboard()
	case "gateway":
		gatewayCmd()
	case "login":
		loginCmd()
	case "send":
		sendCmd()
	case "ask":
		askCmd()
	case "status":
		statusCmd()
	case "config":
		configCmd()
	case "version", "--version", "-v":
		fmt.Printf("gewebridge v%s\n", version)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}
