package gewechat

import (
	"encoding/json"
	"fmt"
)

const retOK = 200

// Response is the envelope every gateway endpoint answers with.
type Response struct {
	Ret  int             `json:"ret"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// RemoteCallError reports a failed gateway call: transport failure, non-200
// HTTP status, or a ret code other than 200.
type RemoteCallError struct {
	Endpoint string
	Status   int
	Ret      int
	Msg      string
	Body     string
	Err      error
}

func (e *RemoteCallError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("gewechat %s: %v", e.Endpoint, e.Err)
	case e.Status != 0 && e.Status != 200:
		return fmt.Sprintf("gewechat %s: http status %d: %s", e.Endpoint, e.Status, e.Body)
	default:
		return fmt.Sprintf("gewechat %s: ret %d: %s", e.Endpoint, e.Ret, e.Msg)
	}
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

type qrCodeData struct {
	AppID  string `json:"appId"`
	QRData string `json:"qrData"`
	UUID   string `json:"uuid"`
}

type checkLoginData struct {
	UUID     string `json:"uuid"`
	NickName string `json:"nickName"`
	Status   int    `json:"status"`
}

const loginStatusDone = 2
