package message

import (
	"fmt"
	"regexp"
	"strings"
)

var atUserListPattern = regexp.MustCompile(`(?s)<atuserlist>(.*?)</atuserlist>`)

// Normalize builds the canonical message from a parsed payload. Sender id and
// the content container are required; every other field defaults to zero.
func Normalize(p *Payload) (*Message, error) {
	if p == nil || p.Data == nil {
		return nil, fmt.Errorf("%w: Data", ErrMalformedPayload)
	}
	d := p.Data
	if d.FromUserName == nil || strings.TrimSpace(d.FromUserName.String) == "" {
		return nil, fmt.Errorf("%w: Data.FromUserName", ErrMalformedPayload)
	}
	if d.Content == nil {
		return nil, fmt.Errorf("%w: Data.Content", ErrMalformedPayload)
	}

	from := strings.TrimSpace(d.FromUserName.String)
	to := ""
	if d.ToUserName != nil {
		to = strings.TrimSpace(d.ToUserName.String)
	}

	m := &Message{
		MsgID:             d.MsgID,
		NewMsgID:          d.NewMsgID,
		AppID:             p.Appid,
		BotWxid:           p.Wxid,
		MsgType:           d.MsgType,
		SenderID:          from,
		ActualSenderID:    from,
		ToUserID:          to,
		Content:           d.Content.String,
		PushContent:       d.PushContent,
		CreateTime:        d.CreateTime,
		RawSourceMetadata: d.MsgSource,
		RawContentMarkup:  d.Content.String,
	}

	switch {
	case strings.HasSuffix(from, groupSuffix):
		m.IsGroup = true
		if sender, body, ok := splitGroupContent(d.Content.String); ok {
			m.ActualSenderID = sender
			m.Content = body
		} else {
			m.ActualSenderID = ""
		}
	case p.Wxid != "" && from == p.Wxid && strings.HasSuffix(to, groupSuffix):
		// Sent by the bot account itself from another device into a group.
		m.IsGroup = true
		m.SenderID = to
		m.ActualSenderID = from
	}

	m.IsSelfEcho = p.Wxid != "" && m.ActualSenderID == p.Wxid
	m.IsAt = m.IsGroup && p.Wxid != "" && atUserListContains(d.MsgSource, p.Wxid)
	m.ContentType = classify(d.MsgType, m.SenderID)

	return m, nil
}

func classify(msgType int, senderID string) ContentType {
	switch msgType {
	case MsgTypeStatusSync:
		return ContentStatusSync
	case MsgTypeSystem, MsgTypeSysNotice:
		return ContentNonUser
	}
	if isNonUserSender(senderID) {
		return ContentNonUser
	}
	switch msgType {
	case MsgTypeText:
		return ContentText
	case MsgTypeImage:
		return ContentImage
	case MsgTypeVoice:
		return ContentVoice
	case MsgTypeVideo:
		return ContentVideo
	default:
		return ContentOther
	}
}

// splitGroupContent separates the "wxid:\n" sender prefix the gateway puts in
// front of group message bodies.
func splitGroupContent(content string) (string, string, bool) {
	idx := strings.Index(content, ":\n")
	if idx <= 0 {
		return "", content, false
	}
	sender := content[:idx]
	if strings.ContainsAny(sender, " \t\n<") {
		return "", content, false
	}
	return sender, content[idx+2:], true
}

func atUserListContains(source, wxid string) bool {
	match := atUserListPattern.FindStringSubmatch(source)
	if match == nil {
		return false
	}
	body := strings.TrimSpace(match[1])
	body = strings.TrimPrefix(body, "<![CDATA[")
	body = strings.TrimSuffix(body, "]]>")
	for _, id := range strings.Split(body, ",") {
		if strings.TrimSpace(id) == wxid {
			return true
		}
	}
	return false
}
