package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gewebridge/pkg/bus"
	"gewebridge/pkg/config"
	"gewebridge/pkg/providers"
	"gewebridge/pkg/reply"
)

type stubProvider struct {
	mu     sync.Mutex
	models []string
	fail   map[string]error
	answer string
}

func (p *stubProvider) Chat(_ context.Context, messages []providers.Message, model string, _ map[string]interface{}) (*providers.LLMResponse, error) {
	p.mu.Lock()
	p.models = append(p.models, model)
	p.mu.Unlock()
	if err := p.fail[model]; err != nil {
		return nil, err
	}
	return &providers.LLMResponse{Content: p.answer + ":" + messages[len(messages)-1].Content}, nil
}

func (p *stubProvider) GetDefaultModel() string { return "default" }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Agent.Model = "primary"
	cfg.Agent.ModelFallbacks = []string{"backup"}
	cfg.Agent.Workers = 2
	return cfg
}

func nextOutbound(t *testing.T, mb *bus.MessageBus) bus.OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, ok := mb.SubscribeOutbound(ctx)
	if !ok {
		t.Fatalf("no outbound message")
	}
	return out
}

func TestAgentLoopPublishesTextReply(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	al := NewAgentLoop(testConfig(), mb, &stubProvider{answer: "ok"})
	al.Start(context.Background())
	defer al.Stop()

	_ = mb.PublishInbound(bus.InboundMessage{Channel: "gewechat", ChatID: "123@chatroom", SenderID: "wxid_alice", Content: "hi", IsGroup: true})

	out := nextOutbound(t, mb)
	text, ok := out.Reply.(reply.Text)
	if !ok || text.Content != "ok:hi" {
		t.Fatalf("unexpected reply: %#v", out.Reply)
	}
	if out.ChatID != "123@chatroom" || out.AtUser != "wxid_alice" {
		t.Fatalf("unexpected addressing: %+v", out)
	}
}

func TestAgentLoopPublishesErrorReply(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	p := &stubProvider{fail: map[string]error{"primary": errors.New("boom")}}
	al := NewAgentLoop(testConfig(), mb, p)
	al.Start(context.Background())
	defer al.Stop()

	_ = mb.PublishInbound(bus.InboundMessage{Channel: "gewechat", ChatID: "wxid_alice", Content: "hi"})

	out := nextOutbound(t, mb)
	if _, ok := out.Reply.(reply.Error); !ok {
		t.Fatalf("expected error reply, got %#v", out.Reply)
	}
	if out.AtUser != "" {
		t.Fatalf("private replies carry no mention")
	}
}

func TestModelFallbackOnRateLimit(t *testing.T) {
	p := &stubProvider{answer: "fb", fail: map[string]error{"primary": errors.New("API error (status 429): too many requests")}}
	al := NewAgentLoop(testConfig(), bus.NewMessageBus(), p)

	got, err := al.ProcessDirect(context.Background(), "ping")
	if err != nil {
		t.Fatalf("ProcessDirect: %v", err)
	}
	if got != "fb:ping" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if len(p.models) != 2 || p.models[1] != "backup" {
		t.Fatalf("expected fallback to backup, got %v", p.models)
	}
}

func TestNoFallbackOnOtherErrors(t *testing.T) {
	p := &stubProvider{fail: map[string]error{"primary": errors.New("bad request")}}
	al := NewAgentLoop(testConfig(), bus.NewMessageBus(), p)

	if _, err := al.ProcessDirect(context.Background(), "ping"); err == nil {
		t.Fatalf("expected error")
	}
	if len(p.models) != 1 {
		t.Fatalf("expected a single attempt, got %v", p.models)
	}
}
