// gewebridge - WeChat bridge for the gewechat gateway
// Inspired by nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 gewebridge contributors

package agent

import (
	"context"
	"fmt"
	"strings"

	"gewebridge/pkg/bus"
	"gewebridge/pkg/config"
	"gewebridge/pkg/lifecycle"
	"gewebridge/pkg/logger"
	"gewebridge/pkg/providers"
	"gewebridge/pkg/reply"

	"golang.org/x/sync/errgroup"
)

type AgentLoop struct {
	bus            *bus.MessageBus
	provider       providers.LLMProvider
	model          string
	modelFallbacks []string
	systemPrompt   string
	maxTokens      int
	temperature    float64
	workers        int
	runner         *lifecycle.LoopRunner
}

func NewAgentLoop(cfg *config.Config, msgBus *bus.MessageBus, provider providers.LLMProvider) *AgentLoop {
	workers := cfg.Agent.Workers
	if workers <= 0 {
		workers = 1
	}
	return &AgentLoop{
		bus:            msgBus,
		provider:       provider,
		model:          cfg.Agent.Model,
		modelFallbacks: cfg.Agent.ModelFallbacks,
		systemPrompt:   cfg.Agent.SystemPrompt,
		maxTokens:      cfg.Agent.MaxTokens,
		temperature:    cfg.Agent.Temperature,
		workers:        workers,
		runner:         lifecycle.NewLoopRunner(),
	}
}

// Start consumes the inbound queue in the background until Stop or ctx ends.
func (al *AgentLoop) Start(ctx context.Context) {
	al.runner.Start(ctx, al.run)
}

func (al *AgentLoop) Stop() {
	al.runner.Stop()
}

func (al *AgentLoop) run(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(al.workers)

	for {
		msg, ok := al.bus.ConsumeInbound(gctx)
		if !ok {
			break
		}
		g.Go(func() error {
			al.handle(gctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

func (al *AgentLoop) handle(ctx context.Context, msg bus.InboundMessage) {
	out := bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
	}
	if msg.IsGroup {
		out.AtUser = msg.SenderID
	}

	response, err := al.ProcessDirect(ctx, msg.Content)
	switch {
	case err != nil:
		logger.ErrorCF("agent", "Failed to generate reply", map[string]interface{}{
			logger.FieldChatID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
		out.Reply = reply.Error{Content: fmt.Sprintf("Error processing message: %v", err)}
	case strings.TrimSpace(response) == "":
		return
	default:
		out.Reply = reply.Text{Content: response}
	}

	if err := al.bus.PublishOutbound(out); err != nil {
		logger.WarnCF("agent", "Reply dropped", map[string]interface{}{
			logger.FieldChatID: msg.ChatID,
			logger.FieldError:  err.Error(),
		})
	}
}

// ProcessDirect runs one provider turn for content, outside the queue.
func (al *AgentLoop) ProcessDirect(ctx context.Context, content string) (string, error) {
	logger.InfoCF("agent", "Processing message", map[string]interface{}{
		logger.FieldPreview:              truncate(content, 80),
		logger.FieldMessageContentLength: len(content),
	})

	messages := BuildMessages(al.systemPrompt, &Context{Content: content})
	options := map[string]interface{}{
		"max_tokens":  al.maxTokens,
		"temperature": al.temperature,
	}
	resp, err := al.callLLMWithModelFallback(ctx, messages, options)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (al *AgentLoop) callLLMWithModelFallback(
	ctx context.Context,
	messages []providers.Message,
	options map[string]interface{},
) (*providers.LLMResponse, error) {
	candidates := al.modelCandidates()
	var lastErr error

	for idx, model := range candidates {
		response, err := al.provider.Chat(ctx, messages, model, options)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !isQuotaOrRateLimitError(err) {
			return nil, err
		}

		if idx < len(candidates)-1 {
			logger.WarnCF("agent", "Model quota/rate-limit reached, trying fallback model", map[string]interface{}{
				"failed_model":    model,
				"next_model":      candidates[idx+1],
				logger.FieldError: err.Error(),
			})
		}
	}

	return nil, fmt.Errorf("all configured models failed; last error: %w", lastErr)
}

func (al *AgentLoop) modelCandidates() []string {
	candidates := []string{}
	seen := map[string]bool{}

	add := func(model string) {
		m := strings.TrimSpace(model)
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		candidates = append(candidates, m)
	}

	add(al.model)
	for _, m := range al.modelFallbacks {
		add(m)
	}
	if len(candidates) == 0 {
		candidates = append(candidates, al.provider.GetDefaultModel())
	}

	return candidates
}

func isQuotaOrRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	keywords := []string{
		"status 429",
		"insufficient_quota",
		"quota",
		"rate limit",
		"rate_limit",
		"too many requests",
		"billing",
	}

	for _, keyword := range keywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
