package message

import "strings"

// ContentType is the decoded kind of an inbound message.
type ContentType int

const (
	ContentOther ContentType = iota
	ContentText
	ContentStatusSync
	ContentNonUser
	ContentImage
	ContentVoice
	ContentVideo
)

var contentTypeNames = map[ContentType]string{
	ContentOther:      "other",
	ContentText:       "text",
	ContentStatusSync: "status_sync",
	ContentNonUser:    "non_user",
	ContentImage:      "image",
	ContentVoice:      "voice",
	ContentVideo:      "video",
}

func (t ContentType) String() string {
	if name, ok := contentTypeNames[t]; ok {
		return name
	}
	return "other"
}

// Gateway MsgType values.
const (
	MsgTypeText       = 1
	MsgTypeImage      = 3
	MsgTypeVoice      = 34
	MsgTypeVideo      = 43
	MsgTypeStatusSync = 51
	MsgTypeSystem     = 10000
	MsgTypeSysNotice  = 10002
)

const groupSuffix = "@chatroom"

// serviceAccounts are built-in WeChat accounts that never represent a person.
var serviceAccounts = map[string]struct{}{
	"weixin":      {},
	"newsapp":     {},
	"fmessage":    {},
	"floatbottle": {},
	"medianote":   {},
	"qqmail":      {},
	"qmessage":    {},
	"tmessage":    {},
}

// Message is the canonical form of one inbound gateway callback. It is built
// once by Normalize and not mutated afterwards.
type Message struct {
	MsgID    int64
	NewMsgID int64
	AppID    string
	BotWxid  string
	MsgType  int

	SenderID       string
	ActualSenderID string
	ToUserID       string
	IsGroup        bool
	IsAt           bool
	IsSelfEcho     bool

	Content     string
	ContentType ContentType
	PushContent string

	// CreateTime is the gateway-reported unix time in seconds.
	CreateTime int64

	RawSourceMetadata string
	RawContentMarkup  string
}

// ChatID is the conversation a reply should go to: the group for group
// messages, the sender otherwise.
func (m *Message) ChatID() string {
	return m.SenderID
}

func isNonUserSender(id string) bool {
	if strings.HasPrefix(id, "gh_") {
		return true
	}
	_, ok := serviceAccounts[id]
	return ok
}
