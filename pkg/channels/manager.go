// gewebridge - WeChat bridge for the gewechat gateway
// Inspired by nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 gewebridge contributors

package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gewebridge/pkg/bus"
	"gewebridge/pkg/lifecycle"
	"gewebridge/pkg/logger"
	"gewebridge/pkg/reply"
)

const defaultDispatchConcurrency = 32

type Manager struct {
	channels    map[string]Channel
	bus         *bus.MessageBus
	dispatcher  *lifecycle.LoopRunner
	dispatchSem chan struct{}
	dispatchWG  sync.WaitGroup
	mu          sync.RWMutex
}

func NewManager(messageBus *bus.MessageBus) *Manager {
	return &Manager{
		channels:   make(map[string]Channel),
		bus:        messageBus,
		dispatcher: lifecycle.NewLoopRunner(),
		// Limit concurrent outbound sends to avoid unbounded goroutine growth.
		dispatchSem: make(chan struct{}, defaultDispatchConcurrency),
	}
}

// StartAll starts the outbound dispatcher and every registered channel. The
// first channel start error is returned after the rest have been attempted.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		logger.WarnC("channels", "No channels enabled")
		return nil
	}

	logger.InfoC("channels", "Starting all channels")
	m.dispatcher.Start(ctx, m.dispatchOutbound)

	var firstErr error
	for _, name := range m.sortedNames() {
		logger.InfoCF("channels", "Starting channel", map[string]interface{}{
			logger.FieldChannel: name,
		})
		if err := m.channels[name].Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel", map[string]interface{}{
				logger.FieldChannel: name,
				logger.FieldError:   err.Error(),
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("start channel %s: %w", name, err)
			}
		}
	}

	logger.InfoC("channels", "All channels started")
	return firstErr
}

func (m *Manager) StopAll(ctx context.Context) error {
	logger.InfoC("channels", "Stopping all channels")
	m.dispatcher.Stop()
	m.dispatchWG.Wait()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.sortedNames() {
		logger.InfoCF("channels", "Stopping channel", map[string]interface{}{
			logger.FieldChannel: name,
		})
		if err := m.channels[name].Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Error stopping channel", map[string]interface{}{
				logger.FieldChannel: name,
				logger.FieldError:   err.Error(),
			})
		}
	}

	logger.InfoC("channels", "All channels stopped")
	return nil
}

func (m *Manager) CheckHealth(ctx context.Context) map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]error)
	for name, channel := range m.channels {
		results[name] = channel.HealthCheck(ctx)
	}
	return results
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	logger.InfoC("channels", "Outbound dispatcher started")

	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			logger.InfoC("channels", "Outbound dispatcher stopped")
			return
		}

		m.mu.RLock()
		channel, exists := m.channels[msg.Channel]
		m.mu.RUnlock()

		if !exists {
			logger.WarnCF("channels", "Unknown channel for outbound message", map[string]interface{}{
				logger.FieldChannel: msg.Channel,
			})
			continue
		}

		// Bound fan-out concurrency to prevent goroutine explosion under burst traffic.
		select {
		case m.dispatchSem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		m.dispatchWG.Add(1)
		go func(c Channel, outbound bus.OutboundMessage) {
			defer m.dispatchWG.Done()
			defer func() { <-m.dispatchSem }()
			if err := c.Send(ctx, outbound); err != nil {
				logger.ErrorCF("channels", "Error sending message to channel", map[string]interface{}{
					logger.FieldChannel: outbound.Channel,
					logger.FieldChatID:  outbound.ChatID,
					logger.FieldError:   err.Error(),
				})
			}
		}(channel, msg)
	}
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedNames()
}

func (m *Manager) sortedNames() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) RegisterChannel(channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channel.Name()] = channel
}

func (m *Manager) UnregisterChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, name)
}

// SendToChannel delivers r directly, bypassing the outbound queue.
func (m *Manager) SendToChannel(ctx context.Context, channelName, chatID, atUser string, r reply.Reply) error {
	m.mu.RLock()
	channel, exists := m.channels[channelName]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("channel %s not found", channelName)
	}

	return channel.Send(ctx, bus.OutboundMessage{
		Channel: channelName,
		ChatID:  chatID,
		AtUser:  atUser,
		Reply:   r,
	})
}
