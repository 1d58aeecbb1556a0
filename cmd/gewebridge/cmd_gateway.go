package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gewebridge/pkg/agent"
	"gewebridge/pkg/bus"
	"gewebridge/pkg/channels"
	"gewebridge/pkg/config"
	"gewebridge/pkg/configops"
	"gewebridge/pkg/filter"
	"gewebridge/pkg/logger"
	"gewebridge/pkg/providers"
	"gewebridge/pkg/sentinel"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	healthInterval  = time.Minute
)

func gatewayCmd() {
	cfg, err := loadConfig()
	if err != nil {
		logger.FatalCF("gateway", "Failed to load config", map[string]interface{}{
			"config":          getConfigPath(),
			logger.FieldError: err.Error(),
		})
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		problems := make([]string, 0, len(errs))
		for _, ve := range errs {
			problems = append(problems, ve.Error())
		}
		logger.FatalCF("gateway", "Config validation failed", map[string]interface{}{
			"config":   getConfigPath(),
			"problems": problems,
		})
	}

	if err := filter.Register(prometheus.DefaultRegisterer); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			logger.FatalCF("gateway", "Failed to register metrics", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgBus := bus.NewMessageBus()
	agentLoop, channelManager, err := buildGatewayRuntime(cfg, msgBus)
	if err != nil {
		logger.FatalCF("gateway", "Failed to initialize gateway runtime", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}

	if err := channelManager.StartAll(ctx); err != nil {
		channelManager.StopAll(context.Background())
		logger.FatalCF("gateway", "Failed to start channels", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}

	// Written only after a successful start; FatalCF skips deferred cleanup.
	pidFile, err := configops.WritePIDFile(getConfigPath())
	if err != nil {
		logger.WarnCF("gateway", "Failed to write PID file", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	} else {
		defer os.Remove(pidFile)
	}
	agentLoop.Start(ctx)

	sentinelService := sentinel.NewService(getConfigPath(), cfg.TmpDir(), cfg.Sentinel, nil)
	if cfg.Sentinel.Enabled {
		sentinelService.Start(ctx)
		fmt.Println("✓ Sentinel service started")
	}

	fmt.Printf("✓ Channels enabled: %s\n", channelManager.GetEnabledChannels())
	fmt.Printf("✓ Callback server listening for %s\n", cfg.Gewechat.CallbackURL)
	fmt.Println("Press Ctrl+C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watchHealth(gctx, channelManager, healthInterval)
	})
	_ = g.Wait()

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sentinelService.Stop()
	agentLoop.Stop()
	channelManager.StopAll(shutdownCtx)
	msgBus.Close()
	logger.InfoC("gateway", "Gateway stopped")
	fmt.Println("✓ Gateway stopped")
}

func buildGatewayRuntime(cfg *config.Config, msgBus *bus.MessageBus) (*agent.AgentLoop, *channels.Manager, error) {
	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create provider: %w", err)
	}
	agentLoop := agent.NewAgentLoop(cfg, msgBus, provider)

	var deps channels.GeWeChatDeps
	if cfg.Metrics.Enabled {
		deps.Metrics = prometheus.DefaultGatherer
	}
	gw, err := channels.NewGeWeChatChannel(cfg, getConfigPath(), msgBus, deps)
	if err != nil {
		return nil, nil, fmt.Errorf("create gewechat channel: %w", err)
	}

	manager := channels.NewManager(msgBus)
	manager.RegisterChannel(gw)
	return agentLoop, manager, nil
}

// watchHealth logs channels that report unhealthy until ctx ends.
func watchHealth(ctx context.Context, manager *channels.Manager, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval/2)
			for name, err := range manager.CheckHealth(checkCtx) {
				if err != nil {
					logger.WarnCF("gateway", "Channel unhealthy", map[string]interface{}{
						logger.FieldChannel: name,
						logger.FieldError:   err.Error(),
					})
				}
			}
			cancel()
		}
	}
}
