package agent

import (
	"regexp"
	"strings"

	"gewebridge/pkg/message"
	"gewebridge/pkg/providers"
)

// Context is an inbound message the bot has agreed to answer.
type Context struct {
	Type     message.ContentType
	Content  string
	IsGroup  bool
	Receiver string
	AtUser   string
	Message  message.Message
}

// leadingMention matches "@name" followed by a space, the U+2005 separator
// WeChat inserts after a mention, or the end of the text.
var leadingMention = regexp.MustCompile(`^@[^\s\x{2005}]+(?:[\s\x{2005}]+|$)`)

type Composer struct {
	groupPrefixes   []string
	privatePrefixes []string
}

func NewComposer(groupPrefixes, privatePrefixes []string) *Composer {
	if privatePrefixes == nil {
		privatePrefixes = []string{""}
	}
	return &Composer{
		groupPrefixes:   groupPrefixes,
		privatePrefixes: privatePrefixes,
	}
}

// ComposeContext decides whether a message is for the bot. It returns nil
// for non-text messages, for group text that neither mentions the bot nor
// starts with a group prefix, and for private text without a private prefix.
func (c *Composer) ComposeContext(contentType message.ContentType, content string, isGroup bool, msg *message.Message) *Context {
	if contentType != message.ContentText || msg == nil {
		return nil
	}

	content = strings.TrimSpace(content)
	ctx := &Context{
		Type:     contentType,
		IsGroup:  isGroup,
		Receiver: msg.ChatID(),
		Message:  *msg,
	}

	if isGroup {
		stripped, matched := matchPrefix(content, c.groupPrefixes)
		if msg.IsAt {
			stripped = stripMentions(stripped)
			matched = true
		}
		if !matched {
			return nil
		}
		ctx.Content = stripped
		ctx.AtUser = msg.ActualSenderID
	} else {
		stripped, matched := matchPrefix(content, c.privatePrefixes)
		if !matched {
			return nil
		}
		ctx.Content = stripped
	}

	if ctx.Content == "" {
		return nil
	}
	return ctx
}

func matchPrefix(content string, prefixes []string) (string, bool) {
	for _, prefix := range prefixes {
		if strings.HasPrefix(content, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(content, prefix)), true
		}
	}
	return content, false
}

func stripMentions(content string) string {
	for {
		next := leadingMention.ReplaceAllString(content, "")
		if next == content {
			return strings.TrimSpace(content)
		}
		content = next
	}
}

// BuildMessages assembles the provider request for one turn.
func BuildMessages(systemPrompt string, ctx *Context) []providers.Message {
	messages := make([]providers.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, providers.Message{Role: "system", Content: systemPrompt})
	}
	return append(messages, providers.Message{Role: "user", Content: ctx.Content})
}
