package message

import (
	"encoding/json"
	"fmt"
)

const typeNameAddMsg = "AddMsg"

// stringField is the gateway's {"string": "..."} wrapper.
type stringField struct {
	String string `json:"string"`
}

type payloadData struct {
	MsgID        int64        `json:"MsgId"`
	NewMsgID     int64        `json:"NewMsgId"`
	FromUserName *stringField `json:"FromUserName"`
	ToUserName   *stringField `json:"ToUserName"`
	MsgType      int          `json:"MsgType"`
	Content      *stringField `json:"Content"`
	CreateTime   int64        `json:"CreateTime"`
	MsgSource    string       `json:"MsgSource"`
	PushContent  string       `json:"PushContent"`
}

// Payload is the typed intermediate form of a raw callback body.
type Payload struct {
	TypeName string       `json:"TypeName"`
	Appid    string       `json:"Appid"`
	Wxid     string       `json:"Wxid"`
	Data     *payloadData `json:"Data"`

	selfTest bool
}

// Parse decodes a callback body. Only JSON syntax and shape errors are
// reported here; missing fields are left to Normalize.
func Parse(body []byte) (*Payload, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	_, hasTest := keys["testMsg"]
	_, hasToken := keys["token"]
	if hasTest && hasToken {
		return &Payload{selfTest: true}, nil
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return &p, nil
}

// IsSelfTest reports whether the payload is the gateway's connectivity check,
// sent when a callback URL is registered. It carries no message.
func (p *Payload) IsSelfTest() bool {
	return p != nil && p.selfTest
}

// IsChatMessage reports whether the payload is a message notification.
// Contact and session notifications use other type names.
func (p *Payload) IsChatMessage() bool {
	if p == nil || p.selfTest {
		return false
	}
	return p.TypeName == "" || p.TypeName == typeNameAddMsg
}
