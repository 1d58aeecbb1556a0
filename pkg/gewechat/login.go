package gewechat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gewebridge/pkg/logger"

	"github.com/mdp/qrterminal/v3"
)

const (
	defaultLoginPollInterval = 5 * time.Second
	defaultLoginTimeout      = 3 * time.Minute
)

// LoginOptions tunes the interactive QR login. Zero values select defaults.
type LoginOptions struct {
	QROutput     io.Writer
	PollInterval time.Duration
	Timeout      time.Duration
}

// Login returns an app id whose account is online. When appID is already
// online it is returned unchanged; otherwise a QR code is printed and the
// gateway is polled until the scan completes. The returned app id may differ
// from the one passed in.
func (c *Client) Login(ctx context.Context, appID string, opts LoginOptions) (string, error) {
	if appID != "" {
		online, err := c.CheckOnline(ctx, appID)
		if err != nil {
			logger.WarnCF("gewechat", "Online check failed, falling back to QR login", map[string]interface{}{
				logger.FieldAppID: appID,
				logger.FieldError: err.Error(),
			})
		} else if online {
			logger.InfoCF("gewechat", "Account already online", map[string]interface{}{
				logger.FieldAppID: appID,
			})
			return appID, nil
		}
	}

	if opts.QROutput == nil {
		opts.QROutput = os.Stdout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultLoginPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLoginTimeout
	}

	resp, err := c.call(ctx, "login/getLoginQrCode", map[string]string{"appId": appID})
	if err != nil {
		return "", err
	}
	var qr qrCodeData
	if err := json.Unmarshal(resp.Data, &qr); err != nil || qr.UUID == "" {
		return "", &RemoteCallError{Endpoint: "login/getLoginQrCode", Ret: resp.Ret, Msg: "missing qr uuid in response"}
	}
	if qr.AppID != "" {
		appID = qr.AppID
	}

	if qr.QRData != "" {
		fmt.Fprintln(opts.QROutput, "Scan the QR code with WeChat to log in:")
		qrterminal.GenerateHalfBlock(qr.QRData, qrterminal.L, opts.QROutput)
	}
	logger.InfoCF("gewechat", "Waiting for QR scan", map[string]interface{}{
		logger.FieldAppID: appID,
		"uuid":            qr.UUID,
	})

	loginCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-loginCtx.Done():
			return "", fmt.Errorf("gewechat login: %w", loginCtx.Err())
		case <-ticker.C:
		}

		resp, err := c.call(loginCtx, "login/checkLogin", map[string]string{
			"appId": appID,
			"uuid":  qr.UUID,
		})
		if err != nil {
			logger.DebugCF("gewechat", "Login poll failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
			continue
		}
		var status checkLoginData
		if err := json.Unmarshal(resp.Data, &status); err != nil {
			continue
		}
		if status.Status == loginStatusDone {
			logger.InfoCF("gewechat", "Login complete", map[string]interface{}{
				logger.FieldAppID: appID,
				"nickname":        status.NickName,
			})
			return appID, nil
		}
	}
}
