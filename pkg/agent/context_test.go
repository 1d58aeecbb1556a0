package agent

import (
	"testing"

	"gewebridge/pkg/message"
)

func groupMsg(content string, isAt bool) *message.Message {
	return &message.Message{
		SenderID:       "123@chatroom",
		ActualSenderID: "wxid_alice",
		IsGroup:        true,
		IsAt:           isAt,
		Content:        content,
		ContentType:    message.ContentText,
	}
}

func privateMsg(content string) *message.Message {
	return &message.Message{
		SenderID:       "wxid_alice",
		ActualSenderID: "wxid_alice",
		Content:        content,
		ContentType:    message.ContentText,
	}
}

func TestComposeContextGroup(t *testing.T) {
	c := NewComposer([]string{"bot"}, nil)

	tests := []struct {
		name    string
		content string
		isAt    bool
		want    string
		nilCtx  bool
	}{
		{name: "mention", content: "@Bot what time is it", isAt: true, want: "what time is it"},
		{name: "mention with space", content: "@Bot  hi", isAt: true, want: "hi"},
		{name: "prefix", content: "bot tell a joke", want: "tell a joke"},
		{name: "neither", content: "just chatting", nilCtx: true},
		{name: "mention only", content: "@Bot ", isAt: true, nilCtx: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := groupMsg(tt.content, tt.isAt)
			ctx := c.ComposeContext(m.ContentType, m.Content, true, m)
			if tt.nilCtx {
				if ctx != nil {
					t.Fatalf("expected nil context, got %+v", ctx)
				}
				return
			}
			if ctx == nil {
				t.Fatalf("expected context")
			}
			if ctx.Content != tt.want {
				t.Fatalf("content = %q, want %q", ctx.Content, tt.want)
			}
			if ctx.Receiver != "123@chatroom" || ctx.AtUser != "wxid_alice" {
				t.Fatalf("unexpected addressing: %+v", ctx)
			}
		})
	}
}

func TestComposeContextPrivate(t *testing.T) {
	everything := NewComposer(nil, nil)
	m := privateMsg("hello")
	ctx := everything.ComposeContext(m.ContentType, m.Content, false, m)
	if ctx == nil || ctx.Content != "hello" || ctx.AtUser != "" || ctx.Receiver != "wxid_alice" {
		t.Fatalf("unexpected context: %+v", ctx)
	}

	prefixed := NewComposer(nil, []string{"bot"})
	if ctx := prefixed.ComposeContext(m.ContentType, m.Content, false, m); ctx != nil {
		t.Fatalf("expected nil without prefix, got %+v", ctx)
	}
	m = privateMsg("bot hello")
	if ctx := prefixed.ComposeContext(m.ContentType, m.Content, false, m); ctx == nil || ctx.Content != "hello" {
		t.Fatalf("expected stripped prefix, got %+v", ctx)
	}
}

func TestComposeContextSkipsNonText(t *testing.T) {
	c := NewComposer(nil, nil)
	m := privateMsg("<msg><img/></msg>")
	for _, ct := range []message.ContentType{message.ContentImage, message.ContentVoice, message.ContentVideo, message.ContentOther} {
		if ctx := c.ComposeContext(ct, m.Content, false, m); ctx != nil {
			t.Fatalf("%v: expected nil context", ct)
		}
	}
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("be brief", &Context{Content: "hi"})
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if msgs := BuildMessages("", &Context{Content: "hi"}); len(msgs) != 1 {
		t.Fatalf("empty system prompt should be omitted: %+v", msgs)
	}
}
